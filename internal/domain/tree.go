package domain

import "github.com/google/uuid"

// PartTree is one Part with everything it owns.
type PartTree struct {
	Part  Part                 `json:"part"`
	Items []AbstractItem       `json:"items"`
	Lines []MeasurementLine    `json:"lines"`
	Entry GeneralAbstractEntry `json:"general_abstract"`
}

// ProjectTree is a consistent snapshot of a whole Project, the unit of load and save.
type ProjectTree struct {
	Project Project        `json:"project"`
	Parts   []PartTree     `json:"parts"`
	Summary ProjectSummary `json:"summary"`
}

// FindPart returns the index of the part with id, or -1.
func (t *ProjectTree) FindPart(id uuid.UUID) int {
	for i := range t.Parts {
		if t.Parts[i].Part.PartID == id {
			return i
		}
	}
	return -1
}

// Entries returns the General Abstract rows in part order.
func (t *ProjectTree) Entries() []GeneralAbstractEntry {
	out := make([]GeneralAbstractEntry, 0, len(t.Parts))
	for _, p := range t.Parts {
		out = append(out, p.Entry)
	}
	return out
}

// FindItem returns the index of the item with id, or -1.
func (p *PartTree) FindItem(id uuid.UUID) int {
	for i := range p.Items {
		if p.Items[i].ItemID == id {
			return i
		}
	}
	return -1
}

// FindLine returns the index of the line with id, or -1.
func (p *PartTree) FindLine(id uuid.UUID) int {
	for i := range p.Lines {
		if p.Lines[i].LineID == id {
			return i
		}
	}
	return -1
}
