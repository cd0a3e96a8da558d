package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RateCatalogEntry is immutable reference data keyed by (source, code).
type RateCatalogEntry struct {
	Source      string          `gorm:"column:source;primaryKey;type:varchar(64)" json:"source"`
	Code        string          `gorm:"column:code;primaryKey;type:varchar(64)" json:"code"`
	Description string          `gorm:"column:description;not null" json:"description"`
	Unit        string          `gorm:"column:unit" json:"unit"`
	Rate        decimal.Decimal `gorm:"column:rate;type:decimal(18,2);not null" json:"rate"`
	Region      string          `gorm:"column:region" json:"region"`
	Year        int             `gorm:"column:year" json:"year"`
	Metadata    datatypes.JSON  `gorm:"column:metadata;type:json" json:"metadata,omitempty"`
	CreatedAt   time.Time       `gorm:"column:createdAt" json:"createdAt"`
}

func (RateCatalogEntry) TableName() string {
	return "RateCatalogEntries"
}
