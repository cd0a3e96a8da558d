package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineKind separates aggregating measurements from reference-only rows.
type LineKind string

const (
	LineKindMeasure       LineKind = "measure"
	LineKindSpecification LineKind = "specification"
)

// MeasurementLine is one dimensioned entry of a Part's measurement sheet.
// AbstractItemID is nil while the line is unlinked; ItemCode ("1.2") is then
// used to resolve the parent item by ordinal.
type MeasurementLine struct {
	LineID         uuid.UUID           `gorm:"column:line_id;type:uuid;primaryKey" json:"line_id"`
	PartID         uuid.UUID           `gorm:"column:part_id;type:uuid;not null;index" json:"part_id"`
	AbstractItemID *uuid.UUID          `gorm:"column:abstract_item_id;type:uuid;index" json:"abstract_item_id"`
	ItemCode       string              `gorm:"column:item_code" json:"item_code"`
	Kind           LineKind            `gorm:"column:kind;type:varchar(20);not null;default:'measure'" json:"kind"`
	Description    string              `gorm:"column:description" json:"description"`
	Unit           string              `gorm:"column:unit;not null" json:"unit"`
	Count          decimal.NullDecimal `gorm:"column:count;type:decimal(18,4)" json:"count"`
	Length         decimal.NullDecimal `gorm:"column:length;type:decimal(18,4)" json:"length"`
	Breadth        decimal.NullDecimal `gorm:"column:breadth;type:decimal(18,4)" json:"breadth"`
	Height         decimal.NullDecimal `gorm:"column:height;type:decimal(18,4)" json:"height"`
	Deduction      decimal.Decimal     `gorm:"column:deduction;type:decimal(18,4);not null" json:"deduction"`
	Total          decimal.Decimal     `gorm:"column:total;type:decimal(18,4);not null" json:"total"`
	Position       int                 `gorm:"column:position;not null" json:"position"`
	CreatedAt      time.Time           `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `gorm:"column:updatedAt" json:"updatedAt"`
}

func (MeasurementLine) TableName() string {
	return "MeasurementLines"
}

func (m *MeasurementLine) BeforeCreate(tx *gorm.DB) error {
	if m.LineID == uuid.Nil {
		m.LineID = uuid.New()
	}
	if m.Kind == "" {
		m.Kind = LineKindMeasure
	}
	return nil
}

// Aggregates reports whether the line may contribute to an item quantity.
func (m MeasurementLine) Aggregates() bool {
	return m.Kind != LineKindSpecification
}

// Dimension returns the value of one dimension field.
func (m MeasurementLine) Dimension(d Dimension) decimal.NullDecimal {
	switch d {
	case DimCount:
		return m.Count
	case DimLength:
		return m.Length
	case DimBreadth:
		return m.Breadth
	case DimHeight:
		return m.Height
	}
	return decimal.NullDecimal{}
}

// SetDimension sets one dimension field.
func (m *MeasurementLine) SetDimension(d Dimension, v decimal.NullDecimal) {
	switch d {
	case DimCount:
		m.Count = v
	case DimLength:
		m.Length = v
	case DimBreadth:
		m.Breadth = v
	case DimHeight:
		m.Height = v
	}
}
