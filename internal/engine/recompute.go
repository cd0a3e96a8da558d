package engine

import (
	"estimate-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result is what a recompute reports back besides the rewritten snapshot.
type Result struct {
	Warnings []Warning `json:"warnings"`
}

// CheckPart verifies that everything in the subtree belongs to it.
func CheckPart(projectID uuid.UUID, pt *domain.PartTree) error {
	if pt.Part.ProjectID != projectID {
		return domain.Consistency("part %s belongs to project %s, not %s", pt.Part.PartID, pt.Part.ProjectID, projectID)
	}
	ordinals := make(map[int]uuid.UUID, len(pt.Items))
	for _, it := range pt.Items {
		if it.PartID != pt.Part.PartID {
			return domain.Consistency("abstract item %s references part %s, loaded under part %s", it.ItemID, it.PartID, pt.Part.PartID)
		}
		if other, ok := ordinals[it.Ordinal]; ok {
			return domain.Consistency("abstract items %s and %s share ordinal %d in part %s", other, it.ItemID, it.Ordinal, pt.Part.PartID)
		}
		ordinals[it.Ordinal] = it.ItemID
	}
	for _, l := range pt.Lines {
		if l.PartID != pt.Part.PartID {
			return domain.Consistency("measurement line %s references part %s, loaded under part %s", l.LineID, l.PartID, pt.Part.PartID)
		}
	}
	if pt.Entry.EntryID != uuid.Nil && (pt.Entry.PartID != pt.Part.PartID || pt.Entry.ProjectID != projectID) {
		return domain.Consistency("general abstract entry %s does not belong to part %s", pt.Entry.EntryID, pt.Part.PartID)
	}
	return nil
}

// RecomputeLine is step 1: the changed line's total, from its own fields.
func RecomputeLine(line *domain.MeasurementLine) error {
	total, err := LineTotal(*line)
	if err != nil {
		return err
	}
	line.Total = total
	return nil
}

// RecomputePart runs steps 1-4 over one Part: line totals, item quantities,
// item amounts and the part total on its General Abstract entry.
func RecomputePart(pt *domain.PartTree) ([]Warning, error) {
	for i := range pt.Lines {
		if err := RecomputeLine(&pt.Lines[i]); err != nil {
			return nil, err
		}
	}
	links, warnings := ResolveLinks(pt)

	partTotal := decimal.Zero
	for i := range pt.Items {
		it := &pt.Items[i]
		idx := links.ByItem[it.ItemID]
		lines := make([]domain.MeasurementLine, 0, len(idx))
		for _, j := range idx {
			lines = append(lines, pt.Lines[j])
		}
		it.Quantity, it.Amount = ItemTotals(it.Rate, lines)
		partTotal = partTotal.Add(it.Amount)
	}

	pt.Entry.ProjectID = pt.Part.ProjectID
	pt.Entry.PartID = pt.Part.PartID
	pt.Entry.PartName = pt.Part.Name
	pt.Entry.Position = pt.Part.Position
	pt.Entry.PartTotal = partTotal
	return warnings, nil
}

// RecomputeSummary is step 5 over the part totals already on the tree.
func RecomputeSummary(tree *domain.ProjectTree) {
	summary := Summary(tree.Project, tree.Entries())
	summary.Warnings = tree.Summary.Warnings
	tree.Summary = summary
}

// RecomputeProject rebuilds every derived field of the tree from its leaves.
// Running it twice on the same inputs yields identical output.
func RecomputeProject(tree *domain.ProjectTree) (Result, error) {
	var res Result
	for i := range tree.Parts {
		if err := CheckPart(tree.Project.ProjectID, &tree.Parts[i]); err != nil {
			return Result{}, err
		}
		w, err := RecomputePart(&tree.Parts[i])
		if err != nil {
			return Result{}, err
		}
		res.Warnings = append(res.Warnings, w...)
	}
	RecomputeSummary(tree)
	return res, nil
}
