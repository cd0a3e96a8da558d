package engine

import (
	"fmt"

	"estimate-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// SkeletonSuffixes lists the measurement rows seeded for each unit class.
var SkeletonSuffixes = map[domain.UnitClass][]string{
	domain.UnitVolume: {"Foundation", "Superstructure", "Additional work"},
	domain.UnitArea:   {"Main area", "Additional area"},
	domain.UnitLinear: {"Main length", "Additional length"},
	domain.UnitCount:  {"Type A", "Type B"},
}

// CreateSkeleton builds the empty measurement lines for a new AbstractItem:
// one non-aggregating specification line carrying the full description,
// followed by the class rows, all linked to the item and coded "<ordinal>.<n>".
// Every class dimension starts at an explicit 0. startPosition is the first
// free position in the part's measurement sheet.
func CreateSkeleton(item domain.AbstractItem, startPosition int) ([]domain.MeasurementLine, error) {
	class, err := item.Class()
	if err != nil {
		return nil, err
	}
	if item.Ordinal <= 0 {
		return nil, domain.Validation("ordinal", "abstract item has no ordinal")
	}
	itemID := item.ItemID
	suffixes := SkeletonSuffixes[class]

	lines := make([]domain.MeasurementLine, 0, len(suffixes)+1)
	lines = append(lines, domain.MeasurementLine{
		PartID:         item.PartID,
		AbstractItemID: &itemID,
		ItemCode:       fmt.Sprintf("%d.0", item.Ordinal),
		Kind:           domain.LineKindSpecification,
		Description:    item.Description,
		Unit:           item.Unit,
		Deduction:      decimal.Zero,
		Total:          decimal.Zero,
		Position:       startPosition,
	})
	for n, suffix := range suffixes {
		l := domain.MeasurementLine{
			PartID:         item.PartID,
			AbstractItemID: &itemID,
			ItemCode:       fmt.Sprintf("%d.%d", item.Ordinal, n+1),
			Kind:           domain.LineKindMeasure,
			Description:    fmt.Sprintf("%s - %s", item.Description, suffix),
			Unit:           item.Unit,
			Deduction:      decimal.Zero,
			Position:       startPosition + n + 1,
		}
		for _, d := range class.Dimensions() {
			l.SetDimension(d, decimal.NewNullDecimal(decimal.Zero))
		}
		if err := RecomputeLine(&l); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}
