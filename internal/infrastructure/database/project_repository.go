package database

import (
	"context"
	"errors"

	"estimate-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectRepository reads and writes estimate rows. Build it on a transaction
// handle to make a sequence of calls atomic.
type ProjectRepository struct {
	DB *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{DB: db}
}

func (r *ProjectRepository) db(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx)
}

// GetProject loads the project row.
func (r *ProjectRepository) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var p domain.Project
	if err := r.db(ctx).Where("project_id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("project")
		}
		return nil, err
	}
	return &p, nil
}

// GetPart loads one part row.
func (r *ProjectRepository) GetPart(ctx context.Context, id uuid.UUID) (*domain.Part, error) {
	var p domain.Part
	if err := r.db(ctx).Where("part_id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("part")
		}
		return nil, err
	}
	return &p, nil
}

// GetItem loads one abstract item row.
func (r *ProjectRepository) GetItem(ctx context.Context, id uuid.UUID) (*domain.AbstractItem, error) {
	var it domain.AbstractItem
	if err := r.db(ctx).Where("item_id = ?", id).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("abstract item")
		}
		return nil, err
	}
	return &it, nil
}

// GetLine loads one measurement line row.
func (r *ProjectRepository) GetLine(ctx context.Context, id uuid.UUID) (*domain.MeasurementLine, error) {
	var l domain.MeasurementLine
	if err := r.db(ctx).Where("line_id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("measurement line")
		}
		return nil, err
	}
	return &l, nil
}

// ListParts returns the parts of a project in position order.
func (r *ProjectRepository) ListParts(ctx context.Context, projectID uuid.UUID) ([]domain.Part, error) {
	var parts []domain.Part
	err := r.db(ctx).Where("project_id = ?", projectID).Order("position ASC").Find(&parts).Error
	return parts, err
}

// ListEntries returns the General Abstract rows of a project in part order.
func (r *ProjectRepository) ListEntries(ctx context.Context, projectID uuid.UUID) ([]domain.GeneralAbstractEntry, error) {
	var entries []domain.GeneralAbstractEntry
	err := r.db(ctx).Where("project_id = ?", projectID).Order("position ASC").Find(&entries).Error
	return entries, err
}

// LoadPartTree loads one part with its items, lines and General Abstract entry.
func (r *ProjectRepository) LoadPartTree(ctx context.Context, part domain.Part) (domain.PartTree, error) {
	pt := domain.PartTree{Part: part}
	if err := r.db(ctx).Where("part_id = ?", part.PartID).Order("ordinal ASC").Find(&pt.Items).Error; err != nil {
		return pt, err
	}
	if err := r.db(ctx).Where("part_id = ?", part.PartID).Order("position ASC").Find(&pt.Lines).Error; err != nil {
		return pt, err
	}
	err := r.db(ctx).Where("part_id = ?", part.PartID).First(&pt.Entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pt.Entry = domain.GeneralAbstractEntry{ProjectID: part.ProjectID, PartID: part.PartID, PartName: part.Name, Position: part.Position}
		return pt, nil
	}
	return pt, err
}

// LoadProject loads the full tree of a project.
func (r *ProjectRepository) LoadProject(ctx context.Context, id uuid.UUID) (*domain.ProjectTree, error) {
	p, err := r.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	tree := &domain.ProjectTree{Project: *p}
	parts, err := r.ListParts(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		pt, err := r.LoadPartTree(ctx, part)
		if err != nil {
			return nil, err
		}
		tree.Parts = append(tree.Parts, pt)
	}
	if tree.Summary, err = r.GetSummary(ctx, id); err != nil {
		return nil, err
	}
	if err := r.checkOwnership(ctx, id, parts); err != nil {
		return nil, err
	}
	return tree, nil
}

// checkOwnership fails when a General Abstract entry outlives its part.
func (r *ProjectRepository) checkOwnership(ctx context.Context, projectID uuid.UUID, parts []domain.Part) error {
	if len(parts) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(parts))
	for i, p := range parts {
		ids[i] = p.PartID
	}
	var dangling int64
	err := r.db(ctx).Model(&domain.GeneralAbstractEntry{}).
		Where("project_id = ? AND part_id NOT IN ?", projectID, ids).
		Count(&dangling).Error
	if err != nil {
		return err
	}
	if dangling > 0 {
		return domain.Consistency("project %s has %d general abstract entries for deleted parts", projectID, dangling)
	}
	return nil
}

// GetSummary returns the stored project summary, or an empty one for a project
// that has never been recomputed.
func (r *ProjectRepository) GetSummary(ctx context.Context, projectID uuid.UUID) (domain.ProjectSummary, error) {
	var s domain.ProjectSummary
	err := r.db(ctx).Where("project_id = ?", projectID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ProjectSummary{ProjectID: projectID}, nil
	}
	return s, err
}

// Create inserts one row.
func (r *ProjectRepository) Create(ctx context.Context, value interface{}) error {
	return r.db(ctx).Create(value).Error
}

// Save updates every column of one row.
func (r *ProjectRepository) Save(ctx context.Context, value interface{}) error {
	return r.db(ctx).Save(value).Error
}

// SavePartTree writes the items, lines and entry of one part.
func (r *ProjectRepository) SavePartTree(ctx context.Context, pt *domain.PartTree) error {
	for i := range pt.Items {
		if err := r.db(ctx).Save(&pt.Items[i]).Error; err != nil {
			return err
		}
	}
	for i := range pt.Lines {
		if err := r.db(ctx).Save(&pt.Lines[i]).Error; err != nil {
			return err
		}
	}
	if pt.Entry.EntryID == uuid.Nil {
		return r.db(ctx).Create(&pt.Entry).Error
	}
	return r.db(ctx).Save(&pt.Entry).Error
}

// SaveSummary upserts the project-level record.
func (r *ProjectRepository) SaveSummary(ctx context.Context, s *domain.ProjectSummary) error {
	return r.db(ctx).Save(s).Error
}

// DeletePartCascade removes a part with its items, lines and General Abstract entry.
func (r *ProjectRepository) DeletePartCascade(ctx context.Context, partID uuid.UUID) error {
	for _, model := range []interface{}{&domain.MeasurementLine{}, &domain.AbstractItem{}, &domain.GeneralAbstractEntry{}} {
		if err := r.db(ctx).Where("part_id = ?", partID).Delete(model).Error; err != nil {
			return err
		}
	}
	return r.db(ctx).Where("part_id = ?", partID).Delete(&domain.Part{}).Error
}

// DeleteItemCascade removes an item and every line linked to it by reference.
func (r *ProjectRepository) DeleteItemCascade(ctx context.Context, itemID uuid.UUID) error {
	if err := r.db(ctx).Where("abstract_item_id = ?", itemID).Delete(&domain.MeasurementLine{}).Error; err != nil {
		return err
	}
	return r.db(ctx).Where("item_id = ?", itemID).Delete(&domain.AbstractItem{}).Error
}

// DeleteLine removes one measurement line.
func (r *ProjectRepository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db(ctx).Where("line_id = ?", lineID).Delete(&domain.MeasurementLine{}).Error
}

// SaveProject replaces every stored row of the project with the given snapshot.
// Callers pass a transaction handle so readers never see a half-written tree.
func (r *ProjectRepository) SaveProject(ctx context.Context, tree *domain.ProjectTree) (uuid.UUID, error) {
	p := &tree.Project
	if p.ProjectID == uuid.Nil {
		if err := r.db(ctx).Create(p).Error; err != nil {
			return uuid.Nil, err
		}
	} else if err := r.db(ctx).Save(p).Error; err != nil {
		return uuid.Nil, err
	}

	parts, err := r.ListParts(ctx, p.ProjectID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, old := range parts {
		if err := r.DeletePartCascade(ctx, old.PartID); err != nil {
			return uuid.Nil, err
		}
	}

	for i := range tree.Parts {
		pt := &tree.Parts[i]
		pt.Part.ProjectID = p.ProjectID
		if err := r.db(ctx).Create(&pt.Part).Error; err != nil {
			return uuid.Nil, err
		}
		for j := range pt.Items {
			pt.Items[j].PartID = pt.Part.PartID
			if err := r.db(ctx).Create(&pt.Items[j]).Error; err != nil {
				return uuid.Nil, err
			}
		}
		for j := range pt.Lines {
			pt.Lines[j].PartID = pt.Part.PartID
			if err := r.db(ctx).Create(&pt.Lines[j]).Error; err != nil {
				return uuid.Nil, err
			}
		}
		pt.Entry.EntryID = uuid.Nil
		pt.Entry.ProjectID = p.ProjectID
		pt.Entry.PartID = pt.Part.PartID
		if err := r.db(ctx).Create(&pt.Entry).Error; err != nil {
			return uuid.Nil, err
		}
	}
	tree.Summary.ProjectID = p.ProjectID
	if err := r.SaveSummary(ctx, &tree.Summary); err != nil {
		return uuid.Nil, err
	}
	return p.ProjectID, nil
}
