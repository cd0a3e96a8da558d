package database

import (
	"context"
	"fmt"

	"estimate-backend/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository stores rate catalogs in the RateCatalogEntries table.
// It satisfies catalog.Loader with the source name as key.
type CatalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func (r *CatalogRepository) LoadCatalog(ctx context.Context, source string) ([]domain.RateCatalogEntry, error) {
	var entries []domain.RateCatalogEntry
	if err := r.DB.WithContext(ctx).Where("source = ?", source).Order("code ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog %s: no entries stored", source)
	}
	return entries, nil
}

// Sources lists the distinct catalog names stored.
func (r *CatalogRepository) Sources(ctx context.Context) ([]string, error) {
	var out []string
	err := r.DB.WithContext(ctx).Model(&domain.RateCatalogEntry{}).Distinct("source").Order("source ASC").Pluck("source", &out).Error
	return out, err
}

// Upsert writes entries keyed by (source, code), replacing stored rates and descriptions.
func (r *CatalogRepository) Upsert(ctx context.Context, entries []domain.RateCatalogEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "unit", "rate", "region", "year", "metadata"}),
	}).CreateInBatches(entries, 200)
	return res.RowsAffected, res.Error
}
