package database

import (
	"fmt"
	"strings"

	"estimate-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB for the configured driver ("postgres" or "sqlite").
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind connection poolers (PgBouncer, Supabase, Render).
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		if strings.Contains(dsn, ":memory:") {
			// Every connection to :memory: is a separate database.
			sqlDB, err := db.DB()
			if err != nil {
				return nil, err
			}
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// AutoMigrate creates or updates every estimate table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Project{},
		&domain.Part{},
		&domain.AbstractItem{},
		&domain.MeasurementLine{},
		&domain.GeneralAbstractEntry{},
		&domain.ProjectSummary{},
		&domain.RateCatalogEntry{},
	)
}
