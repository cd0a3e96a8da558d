package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Decimal places kept by the numeric columns. Inputs with more are rejected so
// a stored amount always equals the stored quantity times the stored rate.
const (
	MoneyPlaces       int32 = 2
	QuantityPlaces    int32 = 4
	ProjectRatePlaces int32 = 4
)

// AbstractItem is a priced line item of a Part. Quantity and Amount are derived.
type AbstractItem struct {
	ItemID      uuid.UUID       `gorm:"column:item_id;type:uuid;primaryKey" json:"item_id"`
	PartID      uuid.UUID       `gorm:"column:part_id;type:uuid;not null;index" json:"part_id"`
	Ordinal     int             `gorm:"column:ordinal;not null" json:"ordinal"`
	Code        string          `gorm:"column:code" json:"code"`
	Description string          `gorm:"column:description;not null" json:"description"`
	Unit        string          `gorm:"column:unit;not null" json:"unit"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:decimal(18,4);not null" json:"quantity"`
	Rate        decimal.Decimal `gorm:"column:rate;type:decimal(18,2);not null" json:"rate"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	CreatedAt   time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (AbstractItem) TableName() string {
	return "AbstractItems"
}

func (a *AbstractItem) BeforeCreate(tx *gorm.DB) error {
	if a.ItemID == uuid.Nil {
		a.ItemID = uuid.New()
	}
	return nil
}

// Class returns the unit class of the item, or an error for an unknown unit.
func (a AbstractItem) Class() (UnitClass, error) {
	return ParseUnitClass(a.Unit)
}
