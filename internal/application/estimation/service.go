package estimation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"estimate-backend/internal/domain"
	"estimate-backend/internal/engine"
	"estimate-backend/internal/infrastructure/database"
	"estimate-backend/internal/observability"
	"estimate-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service runs every estimate mutation as one propagation: the project's
// writer lock is held and validation, recompute and writes share a single
// transaction, so readers see either the old totals or the new ones.
type Service struct {
	DB                  *gorm.DB
	Logger              zerolog.Logger
	Locks               *ProjectLocks
	DefaultOverheadRate decimal.Decimal
	DefaultTaxRate      decimal.Decimal
}

func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		DB:                  db,
		Logger:              logger,
		Locks:               NewProjectLocks(),
		DefaultOverheadRate: domain.DefaultOverheadRate,
		DefaultTaxRate:      domain.DefaultTaxRate,
	}
}

// EditResult is what every mutation returns: the touched part (nil after a
// part delete), the new project totals and the orphan warnings of the part.
type EditResult struct {
	Part     *domain.PartTree      `json:"part,omitempty"`
	Summary  domain.ProjectSummary `json:"summary"`
	Warnings []engine.Warning      `json:"warnings"`
}

// ItemResult is the outcome of AddAbstractItem.
type ItemResult struct {
	Item     domain.AbstractItem      `json:"item"`
	Skeleton []domain.MeasurementLine `json:"skeleton"`
	EditResult
}

// LineResult is the outcome of a measurement line add or edit.
type LineResult struct {
	Line domain.MeasurementLine `json:"line"`
	EditResult
}

type ProjectInput struct {
	Name         string           `json:"name"`
	Location     string           `json:"location"`
	OverheadRate *decimal.Decimal `json:"overhead_rate"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
}

type ItemInput struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Rate        decimal.Decimal `json:"rate"`
}

// LineInput describes a new measurement line. Dimensions the unit class uses
// multiply together; an unset one counts as 1 and an explicit 0 zeroes the
// line. A line that sets none of its class dimensions (a Count line without
// count, say) totals 0, not 1. Dimensions and deduction keep at most four
// decimal places.
type LineInput struct {
	AbstractItemID *uuid.UUID          `json:"abstract_item_id"`
	ItemCode       string              `json:"item_code"`
	Kind           domain.LineKind     `json:"kind"`
	Description    string              `json:"description"`
	Unit           string              `json:"unit"`
	Count          decimal.NullDecimal `json:"count"`
	Length         decimal.NullDecimal `json:"length"`
	Breadth        decimal.NullDecimal `json:"breadth"`
	Height         decimal.NullDecimal `json:"height"`
	Deduction      decimal.Decimal     `json:"deduction"`
}

// run executes fn under the project's writer lock inside one transaction.
func (s *Service) run(ctx context.Context, op string, projectID uuid.UUID, fn func(repo *database.ProjectRepository) ([]engine.Warning, error)) error {
	start := time.Now()
	unlock := s.Locks.Lock(projectID)
	defer unlock()

	var warnings []engine.Warning
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := fn(database.NewProjectRepository(tx))
		warnings = w
		return err
	})
	if errors.Is(err, domain.ErrConsistency) {
		observability.ConsistencyErrors.Inc()
		s.Logger.Error().Err(err).Str("operation", op).Str("project_id", projectID.String()).Msg("consistency failure, changes rolled back")
	}
	observability.RecordEdit(op, err, len(warnings), time.Since(start))
	return err
}

func (s *Service) reader() *database.ProjectRepository {
	return database.NewProjectRepository(s.DB)
}

func (s *Service) projectOfPart(ctx context.Context, partID uuid.UUID) (uuid.UUID, error) {
	part, err := s.reader().GetPart(ctx, partID)
	if err != nil {
		return uuid.Nil, err
	}
	return part.ProjectID, nil
}

func (s *Service) projectOfItem(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	item, err := s.reader().GetItem(ctx, itemID)
	if err != nil {
		return uuid.Nil, err
	}
	return s.projectOfPart(ctx, item.PartID)
}

func (s *Service) projectOfLine(ctx context.Context, lineID uuid.UUID) (uuid.UUID, error) {
	line, err := s.reader().GetLine(ctx, lineID)
	if err != nil {
		return uuid.Nil, err
	}
	return s.projectOfPart(ctx, line.PartID)
}

// loadPart reads one part subtree together with its project.
func loadPart(ctx context.Context, repo *database.ProjectRepository, partID uuid.UUID) (*domain.Project, *domain.PartTree, error) {
	part, err := repo.GetPart(ctx, partID)
	if err != nil {
		return nil, nil, err
	}
	project, err := repo.GetProject(ctx, part.ProjectID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.Consistency("part %s references missing project %s", part.PartID, part.ProjectID)
	}
	if err != nil {
		return nil, nil, err
	}
	pt, err := repo.LoadPartTree(ctx, *part)
	if err != nil {
		return nil, nil, err
	}
	return project, &pt, nil
}

// propagatePart runs steps 1-5 for one part and writes the results.
func (s *Service) propagatePart(ctx context.Context, repo *database.ProjectRepository, project *domain.Project, pt *domain.PartTree) (*EditResult, error) {
	if err := engine.CheckPart(project.ProjectID, pt); err != nil {
		return nil, err
	}
	warnings, err := engine.RecomputePart(pt)
	if err != nil {
		return nil, err
	}
	if err := repo.SavePartTree(ctx, pt); err != nil {
		return nil, err
	}
	summary, err := propagateSummary(ctx, repo, project, pt.Part.PartID, warnings)
	if err != nil {
		return nil, err
	}
	if warnings == nil {
		warnings = []engine.Warning{}
	}
	return &EditResult{Part: pt, Summary: summary, Warnings: warnings}, nil
}

// propagateSummary is step 5 from the stored part totals. The warnings of
// partID replace the ones stored for it; uuid.Nil keeps them all.
func propagateSummary(ctx context.Context, repo *database.ProjectRepository, project *domain.Project, partID uuid.UUID, warnings []engine.Warning) (domain.ProjectSummary, error) {
	entries, err := repo.ListEntries(ctx, project.ProjectID)
	if err != nil {
		return domain.ProjectSummary{}, err
	}
	prev, err := repo.GetSummary(ctx, project.ProjectID)
	if err != nil {
		return domain.ProjectSummary{}, err
	}
	summary := engine.Summary(*project, entries)
	summary.Warnings, err = mergeWarnings(prev.Warnings, partID, warnings)
	if err != nil {
		return domain.ProjectSummary{}, err
	}
	if err := repo.SaveSummary(ctx, &summary); err != nil {
		return domain.ProjectSummary{}, err
	}
	return summary, nil
}

func mergeWarnings(stored datatypes.JSON, partID uuid.UUID, replace []engine.Warning) (datatypes.JSON, error) {
	var all []engine.Warning
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &all); err != nil {
			return nil, err
		}
	}
	out := make([]engine.Warning, 0, len(all)+len(replace))
	for _, w := range all {
		if partID == uuid.Nil || w.PartID != partID {
			out = append(out, w)
		}
	}
	if partID != uuid.Nil {
		out = append(out, replace...)
	}
	return marshalWarnings(out)
}

func marshalWarnings(w []engine.Warning) (datatypes.JSON, error) {
	if w == nil {
		w = []engine.Warning{}
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func nextLinePosition(lines []domain.MeasurementLine) int {
	pos := 0
	for _, l := range lines {
		if l.Position >= pos {
			pos = l.Position + 1
		}
	}
	return pos
}

func checkRate(field string, d decimal.Decimal, places int32) error {
	if !validation.IsNonNegative(d) {
		return domain.Validation(field, "must not be negative")
	}
	if !validation.FitsScale(d, places) {
		return domain.Validation(field, fmt.Sprintf("must have at most %d decimal places", places))
	}
	return nil
}

// CreateProject stores a new project with an all-zero General Abstract.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*domain.ProjectTree, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.Validation("name", "project name is required")
	}
	project := domain.Project{
		ProjectID:    uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		Location:     strings.TrimSpace(in.Location),
		OverheadRate: s.DefaultOverheadRate,
		TaxRate:      s.DefaultTaxRate,
	}
	if in.OverheadRate != nil {
		project.OverheadRate = *in.OverheadRate
	}
	if in.TaxRate != nil {
		project.TaxRate = *in.TaxRate
	}
	if err := checkRate("overhead_rate", project.OverheadRate, domain.ProjectRatePlaces); err != nil {
		return nil, err
	}
	if err := checkRate("tax_rate", project.TaxRate, domain.ProjectRatePlaces); err != nil {
		return nil, err
	}

	tree := &domain.ProjectTree{Project: project}
	err := s.run(ctx, "create_project", project.ProjectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		if err := repo.Create(ctx, &tree.Project); err != nil {
			return nil, err
		}
		summary, err := propagateSummary(ctx, repo, &tree.Project, uuid.Nil, nil)
		tree.Summary = summary
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// AddPart appends a named part to the project.
func (s *Service) AddPart(ctx context.Context, projectID uuid.UUID, name string) (*EditResult, error) {
	if msg := validation.PartNameError(name); msg != "" {
		return nil, domain.Validation("name", msg)
	}
	name = strings.TrimSpace(name)

	var res *EditResult
	err := s.run(ctx, "add_part", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		project, err := repo.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		parts, err := repo.ListParts(ctx, projectID)
		if err != nil {
			return nil, err
		}
		pos := 0
		for _, p := range parts {
			if validation.SameName(p.Name, name) {
				return nil, domain.Validation("name", fmt.Sprintf("part %q already exists", p.Name))
			}
			if p.Position >= pos {
				pos = p.Position + 1
			}
		}
		pt := &domain.PartTree{Part: domain.Part{ProjectID: projectID, Name: name, Position: pos}}
		if err := repo.Create(ctx, &pt.Part); err != nil {
			return nil, err
		}
		res, err = s.propagatePart(ctx, repo, project, pt)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RenamePart renames a part and its General Abstract row.
func (s *Service) RenamePart(ctx context.Context, partID uuid.UUID, name string) (*EditResult, error) {
	if msg := validation.PartNameError(name); msg != "" {
		return nil, domain.Validation("name", msg)
	}
	name = strings.TrimSpace(name)
	projectID, err := s.projectOfPart(ctx, partID)
	if err != nil {
		return nil, err
	}

	var res *EditResult
	err = s.run(ctx, "rename_part", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		project, pt, err := loadPart(ctx, repo, partID)
		if err != nil {
			return nil, err
		}
		parts, err := repo.ListParts(ctx, project.ProjectID)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			if p.PartID != partID && validation.SameName(p.Name, name) {
				return nil, domain.Validation("name", fmt.Sprintf("part %q already exists", p.Name))
			}
		}
		pt.Part.Name = name
		if err := repo.Save(ctx, &pt.Part); err != nil {
			return nil, err
		}
		res, err = s.propagatePart(ctx, repo, project, pt)
		if err != nil {
			return nil, err
		}
		return res.Warnings, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeletePart removes a part with its items, lines and General Abstract row,
// then recomputes the project totals.
func (s *Service) DeletePart(ctx context.Context, partID uuid.UUID) (*EditResult, error) {
	projectID, err := s.projectOfPart(ctx, partID)
	if err != nil {
		return nil, err
	}
	res := &EditResult{Warnings: []engine.Warning{}}
	err = s.run(ctx, "delete_part", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		project, _, err := loadPart(ctx, repo, partID)
		if err != nil {
			return nil, err
		}
		if err := repo.DeletePartCascade(ctx, partID); err != nil {
			return nil, err
		}
		res.Summary, err = propagateSummary(ctx, repo, project, partID, nil)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddAbstractItem appends an item to the part and generates its measurement
// skeleton.
func (s *Service) AddAbstractItem(ctx context.Context, partID uuid.UUID, in ItemInput) (*ItemResult, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, domain.Validation("description", "description is required")
	}
	if _, err := domain.ParseUnitClass(in.Unit); err != nil {
		return nil, err
	}
	if err := checkRate("rate", in.Rate, domain.MoneyPlaces); err != nil {
		return nil, err
	}
	projectID, err := s.projectOfPart(ctx, partID)
	if err != nil {
		return nil, err
	}

	res := &ItemResult{}
	err = s.run(ctx, "add_abstract_item", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		project, pt, err := loadPart(ctx, repo, partID)
		if err != nil {
			return nil, err
		}
		ordinal := 1
		for _, it := range pt.Items {
			if it.Ordinal >= ordinal {
				ordinal = it.Ordinal + 1
			}
		}
		item := domain.AbstractItem{
			PartID:      partID,
			Ordinal:     ordinal,
			Code:        strings.TrimSpace(in.Code),
			Description: strings.TrimSpace(in.Description),
			Unit:        strings.TrimSpace(in.Unit),
			Rate:        in.Rate,
		}
		if err := repo.Create(ctx, &item); err != nil {
			return nil, err
		}
		skeleton, err := engine.CreateSkeleton(item, nextLinePosition(pt.Lines))
		if err != nil {
			return nil, err
		}
		for i := range skeleton {
			if err := repo.Create(ctx, &skeleton[i]); err != nil {
				return nil, err
			}
		}
		pt.Items = append(pt.Items, item)
		pt.Lines = append(pt.Lines, skeleton...)

		edit, err := s.propagatePart(ctx, repo, project, pt)
		if err != nil {
			return nil, err
		}
		res.EditResult = *edit
		res.Item = pt.Items[pt.FindItem(item.ItemID)]
		res.Skeleton = skeleton
		return edit.Warnings, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyRateEdit sets the rate of an item and propagates the new amount.
func (s *Service) ApplyRateEdit(ctx context.Context, itemID uuid.UUID, rate decimal.Decimal) (*EditResult, error) {
	return s.editItem(ctx, "apply_rate_edit", itemID, map[string]interface{}{"rate": rate})
}

// ApplyItemEdit sets editable item fields (code, description, unit, rate).
func (s *Service) ApplyItemEdit(ctx context.Context, itemID uuid.UUID, changes map[string]interface{}) (*EditResult, error) {
	return s.editItem(ctx, "apply_item_edit", itemID, changes)
}

func (s *Service) editItem(ctx context.Context, op string, itemID uuid.UUID, changes map[string]interface{}) (*EditResult, error) {
	if err := domain.CheckWritable(domain.EntityAbstractItem, sortedKeys(changes)); err != nil {
		return nil, err
	}
	projectID, err := s.projectOfItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var res *EditResult
	err = s.run(ctx, op, projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		item, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		project, pt, err := loadPart(ctx, repo, item.PartID)
		if err != nil {
			return nil, err
		}
		idx := pt.FindItem(itemID)
		if idx < 0 {
			return nil, domain.NotFound("abstract item")
		}
		if err := applyItemChanges(&pt.Items[idx], changes); err != nil {
			return nil, err
		}
		res, err = s.propagatePart(ctx, repo, project, pt)
		if err != nil {
			return nil, err
		}
		return res.Warnings, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func applyItemChanges(item *domain.AbstractItem, changes map[string]interface{}) error {
	for _, field := range sortedKeys(changes) {
		v := changes[field]
		switch field {
		case "rate":
			d, err := validation.ParseDecimal(v)
			if err != nil {
				return domain.Validation(field, "malformed rate")
			}
			if err := checkRate(field, d, domain.MoneyPlaces); err != nil {
				return err
			}
			item.Rate = d
		case "unit":
			unit, _ := v.(string)
			if _, err := domain.ParseUnitClass(unit); err != nil {
				return err
			}
			item.Unit = strings.TrimSpace(unit)
		case "description":
			desc, _ := v.(string)
			if strings.TrimSpace(desc) == "" {
				return domain.Validation(field, "description is required")
			}
			item.Description = strings.TrimSpace(desc)
		case "code":
			code, _ := v.(string)
			item.Code = strings.TrimSpace(code)
		}
	}
	return nil
}

// DeleteAbstractItem removes an item and every line that fed it. Remaining
// ordinals are not renumbered.
func (s *Service) DeleteAbstractItem(ctx context.Context, itemID uuid.UUID) (*EditResult, error) {
	projectID, err := s.projectOfItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var res *EditResult
	err = s.run(ctx, "delete_abstract_item", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		item, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		project, pt, err := loadPart(ctx, repo, item.PartID)
		if err != nil {
			return nil, err
		}
		links, _ := engine.ResolveLinks(pt)
		for _, i := range links.ByItem[itemID] {
			if err := repo.DeleteLine(ctx, pt.Lines[i].LineID); err != nil {
				return nil, err
			}
		}
		if err := repo.DeleteItemCascade(ctx, itemID); err != nil {
			return nil, err
		}
		fresh, err := repo.LoadPartTree(ctx, pt.Part)
		if err != nil {
			return nil, err
		}
		res, err = s.propagatePart(ctx, repo, project, &fresh)
		if err != nil {
			return nil, err
		}
		return res.Warnings, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddMeasurementLine appends a line to the part's measurement sheet. An empty
// unit is taken from the item the line resolves to.
func (s *Service) AddMeasurementLine(ctx context.Context, partID uuid.UUID, in LineInput) (*LineResult, error) {
	kind := in.Kind
	if kind == "" {
		kind = domain.LineKindMeasure
	}
	if kind != domain.LineKindMeasure && kind != domain.LineKindSpecification {
		return nil, domain.Validation("kind", fmt.Sprintf("unknown line kind %q", in.Kind))
	}
	line := domain.MeasurementLine{
		PartID:         partID,
		AbstractItemID: in.AbstractItemID,
		ItemCode:       strings.TrimSpace(in.ItemCode),
		Kind:           kind,
		Description:    strings.TrimSpace(in.Description),
		Unit:           strings.TrimSpace(in.Unit),
		Count:          in.Count,
		Length:         in.Length,
		Breadth:        in.Breadth,
		Height:         in.Height,
		Deduction:      in.Deduction,
	}
	if err := checkDimensions(line); err != nil {
		return nil, err
	}
	projectID, err := s.projectOfPart(ctx, partID)
	if err != nil {
		return nil, err
	}

	res := &LineResult{}
	err = s.run(ctx, "add_measurement_line", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		project, pt, err := loadPart(ctx, repo, partID)
		if err != nil {
			return nil, err
		}
		if line.Unit == "" {
			line.Unit = inheritedUnit(pt, line)
		}
		if _, err := domain.ParseUnitClass(line.Unit); err != nil {
			return nil, err
		}
		line.Position = nextLinePosition(pt.Lines)
		if err := repo.Create(ctx, &line); err != nil {
			return nil, err
		}
		pt.Lines = append(pt.Lines, line)

		edit, err := s.propagatePart(ctx, repo, project, pt)
		if err != nil {
			return nil, err
		}
		res.EditResult = *edit
		res.Line = pt.Lines[pt.FindLine(line.LineID)]
		return edit.Warnings, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func inheritedUnit(pt *domain.PartTree, line domain.MeasurementLine) string {
	if line.AbstractItemID != nil {
		if i := pt.FindItem(*line.AbstractItemID); i >= 0 {
			return pt.Items[i].Unit
		}
		return ""
	}
	if n, ok := engine.ItemOrdinal(line.ItemCode); ok {
		for _, it := range pt.Items {
			if it.Ordinal == n {
				return it.Unit
			}
		}
	}
	return ""
}

func checkDimensions(line domain.MeasurementLine) error {
	for _, d := range domain.AllDimensions {
		v := line.Dimension(d)
		if !v.Valid {
			continue
		}
		if v.Decimal.IsNegative() {
			return domain.Validation(string(d), "must not be negative")
		}
		if !validation.FitsScale(v.Decimal, domain.QuantityPlaces) {
			return domain.Validation(string(d), fmt.Sprintf("must have at most %d decimal places", domain.QuantityPlaces))
		}
	}
	if line.Deduction.IsNegative() {
		return domain.Validation("deduction", "must not be negative")
	}
	if !validation.FitsScale(line.Deduction, domain.QuantityPlaces) {
		return domain.Validation("deduction", fmt.Sprintf("must have at most %d decimal places", domain.QuantityPlaces))
	}
	return nil
}

// ApplyMeasurementEdit sets editable fields of a line and propagates the
// change up to the project totals.
func (s *Service) ApplyMeasurementEdit(ctx context.Context, lineID uuid.UUID, changes map[string]interface{}) (*LineResult, error) {
	if len(changes) == 0 {
		return nil, domain.Validation("", "no fields to update")
	}
	if err := domain.CheckWritable(domain.EntityMeasurementLine, sortedKeys(changes)); err != nil {
		return nil, err
	}
	projectID, err := s.projectOfLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	res := &LineResult{}
	err = s.run(ctx, "apply_measurement_edit", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		line, err := repo.GetLine(ctx, lineID)
		if err != nil {
			return nil, err
		}
		project, pt, err := loadPart(ctx, repo, line.PartID)
		if err != nil {
			return nil, err
		}
		idx := pt.FindLine(lineID)
		if idx < 0 {
			return nil, domain.NotFound("measurement line")
		}
		if err := applyLineChanges(&pt.Lines[idx], changes); err != nil {
			return nil, err
		}
		edit, err := s.propagatePart(ctx, repo, project, pt)
		if err != nil {
			return nil, err
		}
		res.EditResult = *edit
		res.Line = pt.Lines[idx]
		return edit.Warnings, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func applyLineChanges(line *domain.MeasurementLine, changes map[string]interface{}) error {
	for _, field := range sortedKeys(changes) {
		v := changes[field]
		switch field {
		case "abstract_item_id":
			if v == nil {
				line.AbstractItemID = nil
				continue
			}
			str, _ := v.(string)
			id, err := uuid.Parse(str)
			if err != nil {
				return domain.Validation(field, "malformed id")
			}
			line.AbstractItemID = &id
		case "item_code":
			code, _ := v.(string)
			line.ItemCode = strings.TrimSpace(code)
		case "description":
			desc, _ := v.(string)
			line.Description = strings.TrimSpace(desc)
		case "unit":
			unit, _ := v.(string)
			if _, err := domain.ParseUnitClass(unit); err != nil {
				return err
			}
			line.Unit = strings.TrimSpace(unit)
		case "deduction":
			if v == nil {
				line.Deduction = decimal.Zero
				continue
			}
			d, err := validation.ParseDecimal(v)
			if err != nil {
				return domain.Validation(field, "malformed number")
			}
			line.Deduction = d
		default:
			d, err := validation.ParseNullDecimal(v)
			if err != nil {
				return domain.Validation(field, "malformed number")
			}
			line.SetDimension(domain.Dimension(field), d)
		}
	}
	return checkDimensions(*line)
}

// DeleteMeasurementLine removes one line and propagates.
func (s *Service) DeleteMeasurementLine(ctx context.Context, lineID uuid.UUID) (*EditResult, error) {
	projectID, err := s.projectOfLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	var res *EditResult
	err = s.run(ctx, "delete_measurement_line", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		line, err := repo.GetLine(ctx, lineID)
		if err != nil {
			return nil, err
		}
		project, pt, err := loadPart(ctx, repo, line.PartID)
		if err != nil {
			return nil, err
		}
		if err := repo.DeleteLine(ctx, lineID); err != nil {
			return nil, err
		}
		if idx := pt.FindLine(lineID); idx >= 0 {
			pt.Lines = append(pt.Lines[:idx], pt.Lines[idx+1:]...)
		}
		res, err = s.propagatePart(ctx, repo, project, pt)
		if err != nil {
			return nil, err
		}
		return res.Warnings, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateProjectRates changes the overhead and/or tax rate and re-runs step 5.
func (s *Service) UpdateProjectRates(ctx context.Context, projectID uuid.UUID, overhead, tax *decimal.Decimal) (*EditResult, error) {
	if overhead == nil && tax == nil {
		return nil, domain.Validation("", "overhead_rate or tax_rate is required")
	}
	if overhead != nil {
		if err := checkRate("overhead_rate", *overhead, domain.ProjectRatePlaces); err != nil {
			return nil, err
		}
	}
	if tax != nil {
		if err := checkRate("tax_rate", *tax, domain.ProjectRatePlaces); err != nil {
			return nil, err
		}
	}

	res := &EditResult{Warnings: []engine.Warning{}}
	err := s.run(ctx, "update_project_rates", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		project, err := repo.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if overhead != nil {
			project.OverheadRate = *overhead
		}
		if tax != nil {
			project.TaxRate = *tax
		}
		if err := repo.Save(ctx, project); err != nil {
			return nil, err
		}
		res.Summary, err = propagateSummary(ctx, repo, project, uuid.Nil, nil)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RecomputeProject rebuilds every derived value of the project from its
// measurement lines and rates.
func (s *Service) RecomputeProject(ctx context.Context, projectID uuid.UUID) (*domain.ProjectTree, engine.Result, error) {
	var (
		tree   *domain.ProjectTree
		result engine.Result
	)
	err := s.run(ctx, "recompute_project", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		var err error
		tree, err = repo.LoadProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		result, err = engine.RecomputeProject(tree)
		if err != nil {
			return nil, err
		}
		for i := range tree.Parts {
			if err := repo.SavePartTree(ctx, &tree.Parts[i]); err != nil {
				return nil, err
			}
		}
		if tree.Summary.Warnings, err = marshalWarnings(result.Warnings); err != nil {
			return nil, err
		}
		return result.Warnings, repo.SaveSummary(ctx, &tree.Summary)
	})
	if err != nil {
		return nil, engine.Result{}, err
	}
	if result.Warnings == nil {
		result.Warnings = []engine.Warning{}
	}
	s.Logger.Info().
		Str("project_id", projectID.String()).
		Str("grand_total", tree.Summary.GrandTotal.StringFixed(2)).
		Int("warnings", len(result.Warnings)).
		Msg("project recomputed")
	return tree, result, nil
}

// ImportProject recomputes a complete tree and stores it as one snapshot,
// replacing any stored rows of the same project.
func (s *Service) ImportProject(ctx context.Context, tree *domain.ProjectTree) (uuid.UUID, engine.Result, error) {
	if strings.TrimSpace(tree.Project.Name) == "" {
		return uuid.Nil, engine.Result{}, domain.Validation("name", "project name is required")
	}
	if err := checkRate("overhead_rate", tree.Project.OverheadRate, domain.ProjectRatePlaces); err != nil {
		return uuid.Nil, engine.Result{}, err
	}
	if err := checkRate("tax_rate", tree.Project.TaxRate, domain.ProjectRatePlaces); err != nil {
		return uuid.Nil, engine.Result{}, err
	}
	if tree.Project.ProjectID == uuid.Nil {
		tree.Project.ProjectID = uuid.New()
	}
	projectID := tree.Project.ProjectID
	for i := range tree.Parts {
		pt := &tree.Parts[i]
		if msg := validation.PartNameError(pt.Part.Name); msg != "" {
			return uuid.Nil, engine.Result{}, domain.Validation("name", msg)
		}
		for j := 0; j < i; j++ {
			if validation.SameName(tree.Parts[j].Part.Name, pt.Part.Name) {
				return uuid.Nil, engine.Result{}, domain.Validation("name", fmt.Sprintf("part %q already exists", pt.Part.Name))
			}
		}
		if pt.Part.PartID == uuid.Nil {
			pt.Part.PartID = uuid.New()
		}
		pt.Part.ProjectID = projectID
		pt.Entry = domain.GeneralAbstractEntry{}
		if err := assignOrdinals(pt.Items); err != nil {
			return uuid.Nil, engine.Result{}, err
		}
		for j := range pt.Items {
			pt.Items[j].PartID = pt.Part.PartID
			if pt.Items[j].ItemID == uuid.Nil {
				pt.Items[j].ItemID = uuid.New()
			}
			if _, err := domain.ParseUnitClass(pt.Items[j].Unit); err != nil {
				return uuid.Nil, engine.Result{}, err
			}
			if err := checkRate("rate", pt.Items[j].Rate, domain.MoneyPlaces); err != nil {
				return uuid.Nil, engine.Result{}, err
			}
		}
		for j := range pt.Lines {
			pt.Lines[j].PartID = pt.Part.PartID
			if pt.Lines[j].LineID == uuid.Nil {
				pt.Lines[j].LineID = uuid.New()
			}
			if pt.Lines[j].Kind == "" {
				pt.Lines[j].Kind = domain.LineKindMeasure
			}
			if err := checkDimensions(pt.Lines[j]); err != nil {
				return uuid.Nil, engine.Result{}, err
			}
		}
	}

	result, err := engine.RecomputeProject(tree)
	if err != nil {
		return uuid.Nil, engine.Result{}, err
	}
	if tree.Summary.Warnings, err = marshalWarnings(result.Warnings); err != nil {
		return uuid.Nil, engine.Result{}, err
	}
	err = s.run(ctx, "import_project", projectID, func(repo *database.ProjectRepository) ([]engine.Warning, error) {
		_, err := repo.SaveProject(ctx, tree)
		return result.Warnings, err
	})
	if err != nil {
		return uuid.Nil, engine.Result{}, err
	}
	if result.Warnings == nil {
		result.Warnings = []engine.Warning{}
	}
	return projectID, result, nil
}

// assignOrdinals keeps explicit item ordinals, rejecting negative or repeated
// ones, and numbers the rest by position, skipping ordinals already taken.
func assignOrdinals(items []domain.AbstractItem) error {
	taken := make(map[int]bool, len(items))
	for _, it := range items {
		if it.Ordinal < 0 {
			return domain.Validation("ordinal", fmt.Sprintf("ordinal %d must be positive", it.Ordinal))
		}
		if it.Ordinal == 0 {
			continue
		}
		if taken[it.Ordinal] {
			return domain.Validation("ordinal", fmt.Sprintf("ordinal %d is used by more than one item", it.Ordinal))
		}
		taken[it.Ordinal] = true
	}
	for j := range items {
		if items[j].Ordinal != 0 {
			continue
		}
		n := j + 1
		for taken[n] {
			n++
		}
		items[j].Ordinal = n
		taken[n] = true
	}
	return nil
}

// LoadProject reads the committed tree of a project.
func (s *Service) LoadProject(ctx context.Context, projectID uuid.UUID) (*domain.ProjectTree, error) {
	return s.reader().LoadProject(ctx, projectID)
}

// Snapshot reads the whole tree inside one read transaction so every row
// comes from the same committed state.
func (s *Service) Snapshot(ctx context.Context, projectID uuid.UUID) (*domain.ProjectTree, error) {
	var tree *domain.ProjectTree
	read := func(tx *gorm.DB) error {
		var err error
		tree, err = database.NewProjectRepository(tx).LoadProject(ctx, projectID)
		return err
	}
	var err error
	if s.DB.Dialector.Name() == "postgres" {
		err = s.DB.WithContext(ctx).Transaction(read, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	} else {
		err = s.DB.WithContext(ctx).Transaction(read)
	}
	if err != nil {
		return nil, err
	}
	return tree, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
