package engine

import (
	"fmt"
	"strconv"
	"strings"

	"estimate-backend/internal/domain"

	"github.com/google/uuid"
)

const WarningOrphanLine = "orphan_line"

// Warning is a non-fatal condition surfaced to callers alongside a result.
type Warning struct {
	Code     string    `json:"code"`
	PartID   uuid.UUID `json:"part_id"`
	LineID   uuid.UUID `json:"line_id"`
	ItemCode string    `json:"item_code"`
	Message  string    `json:"message"`
}

// ItemOrdinal returns the integer prefix of a dotted item code ("3.2" -> 3).
func ItemOrdinal(code string) (int, bool) {
	head := strings.TrimSpace(strings.SplitN(strings.TrimSpace(code), ".", 2)[0])
	n, err := strconv.Atoi(head)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Links maps each item of a part to the indexes of the lines that feed it.
type Links struct {
	ByItem  map[uuid.UUID][]int
	Orphans []int
}

// ResolveLinks attaches every aggregating line of a part to its AbstractItem.
// An explicit AbstractItemID wins; otherwise the item-code prefix is matched
// against item ordinals. Lines that resolve to nothing are orphans: they stay
// in the part but feed no sum.
func ResolveLinks(pt *domain.PartTree) (Links, []Warning) {
	links := Links{ByItem: make(map[uuid.UUID][]int, len(pt.Items))}
	byOrdinal := make(map[int]uuid.UUID, len(pt.Items))
	known := make(map[uuid.UUID]bool, len(pt.Items))
	for _, it := range pt.Items {
		byOrdinal[it.Ordinal] = it.ItemID
		known[it.ItemID] = true
	}

	var warnings []Warning
	for i, l := range pt.Lines {
		if !l.Aggregates() {
			continue
		}
		if l.AbstractItemID != nil {
			if known[*l.AbstractItemID] {
				links.ByItem[*l.AbstractItemID] = append(links.ByItem[*l.AbstractItemID], i)
				continue
			}
			links.Orphans = append(links.Orphans, i)
			warnings = append(warnings, orphan(pt.Part, l, fmt.Sprintf("abstract item %s is not in part %q", *l.AbstractItemID, pt.Part.Name)))
			continue
		}
		if n, ok := ItemOrdinal(l.ItemCode); ok {
			if id, ok := byOrdinal[n]; ok {
				links.ByItem[id] = append(links.ByItem[id], i)
				continue
			}
		}
		links.Orphans = append(links.Orphans, i)
		warnings = append(warnings, orphan(pt.Part, l, fmt.Sprintf("item code %q matches no abstract item in part %q", l.ItemCode, pt.Part.Name)))
	}
	return links, warnings
}

func orphan(part domain.Part, l domain.MeasurementLine, msg string) Warning {
	return Warning{
		Code:     WarningOrphanLine,
		PartID:   part.PartID,
		LineID:   l.LineID,
		ItemCode: l.ItemCode,
		Message:  msg,
	}
}
