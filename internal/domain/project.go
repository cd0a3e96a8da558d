package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func init() {
	// API clients read amounts as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Default project-level rates observed on real estimates.
var (
	DefaultOverheadRate = decimal.RequireFromString("0.07")
	DefaultTaxRate      = decimal.RequireFromString("0.13")
)

// Project is the root of an estimate. It owns every Part, AbstractItem and MeasurementLine.
type Project struct {
	ProjectID    uuid.UUID       `gorm:"column:project_id;type:uuid;primaryKey" json:"project_id"`
	Name         string          `gorm:"column:name;not null" json:"name"`
	Location     string          `gorm:"column:location" json:"location"`
	OverheadRate decimal.Decimal `gorm:"column:overhead_rate;type:decimal(9,4);not null" json:"overhead_rate"`
	TaxRate      decimal.Decimal `gorm:"column:tax_rate;type:decimal(9,4);not null" json:"tax_rate"`
	CreatedAt    time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Project) TableName() string {
	return "Projects"
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ProjectID == uuid.Nil {
		p.ProjectID = uuid.New()
	}
	return nil
}

// Part is a named subdivision of a project's scope (a floor, a trade).
type Part struct {
	PartID    uuid.UUID `gorm:"column:part_id;type:uuid;primaryKey" json:"part_id"`
	ProjectID uuid.UUID `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Position  int       `gorm:"column:position;not null" json:"position"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Part) TableName() string {
	return "Parts"
}

func (p *Part) BeforeCreate(tx *gorm.DB) error {
	if p.PartID == uuid.Nil {
		p.PartID = uuid.New()
	}
	return nil
}

// GeneralAbstractEntry is the per-Part row of the General Abstract.
type GeneralAbstractEntry struct {
	EntryID   uuid.UUID       `gorm:"column:entry_id;type:uuid;primaryKey" json:"entry_id"`
	ProjectID uuid.UUID       `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	PartID    uuid.UUID       `gorm:"column:part_id;type:uuid;not null;uniqueIndex" json:"part_id"`
	PartName  string          `gorm:"column:part_name;not null" json:"part_name"`
	Position  int             `gorm:"column:position;not null" json:"position"`
	PartTotal decimal.Decimal `gorm:"column:part_total;type:decimal(18,2);not null" json:"part_total"`
	UpdatedAt time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (GeneralAbstractEntry) TableName() string {
	return "GeneralAbstractEntries"
}

func (e *GeneralAbstractEntry) BeforeCreate(tx *gorm.DB) error {
	if e.EntryID == uuid.Nil {
		e.EntryID = uuid.New()
	}
	return nil
}

// ProjectSummary is the project-level record of the General Abstract.
type ProjectSummary struct {
	ProjectID      uuid.UUID       `gorm:"column:project_id;type:uuid;primaryKey" json:"project_id"`
	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:decimal(18,2);not null" json:"subtotal"`
	OverheadRate   decimal.Decimal `gorm:"column:overhead_rate;type:decimal(9,4);not null" json:"overhead_rate"`
	OverheadCharge decimal.Decimal `gorm:"column:overhead_charge;type:decimal(18,2);not null" json:"overhead_charge"`
	AfterOverhead  decimal.Decimal `gorm:"column:after_overhead;type:decimal(18,2);not null" json:"after_overhead"`
	TaxRate        decimal.Decimal `gorm:"column:tax_rate;type:decimal(9,4);not null" json:"tax_rate"`
	TaxCharge      decimal.Decimal `gorm:"column:tax_charge;type:decimal(18,2);not null" json:"tax_charge"`
	GrandTotal     decimal.Decimal `gorm:"column:grand_total;type:decimal(18,2);not null" json:"grand_total"`
	// Warnings holds the orphan warnings of the last full recompute.
	Warnings  datatypes.JSON `gorm:"column:warnings;type:json" json:"warnings"`
	UpdatedAt time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
}

func (ProjectSummary) TableName() string {
	return "ProjectSummaries"
}
