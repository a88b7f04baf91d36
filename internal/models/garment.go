package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Condition describes the physical state of a garment variant.
type Condition string

const (
	ConditionNew            Condition = "new"
	ConditionGood           Condition = "good"
	ConditionLightlyDamaged Condition = "lightly_damaged"
	ConditionHeavilyDamaged Condition = "heavily_damaged"
)

var damageEstimates = map[Condition]decimal.Decimal{
	ConditionNew:            decimal.Zero,
	ConditionGood:           decimal.Zero,
	ConditionLightlyDamaged: decimal.NewFromInt(25000),
	ConditionHeavilyDamaged: decimal.NewFromInt(100000),
}

var conditionSeverity = map[Condition]int{
	ConditionNew:            0,
	ConditionGood:           1,
	ConditionLightlyDamaged: 2,
	ConditionHeavilyDamaged: 3,
}

// Valid reports whether c is one of the known conditions.
func (c Condition) Valid() bool {
	_, ok := damageEstimates[c]
	return ok
}

// IsRentable reports whether a variant in this condition may be rented out.
func (c Condition) IsRentable() bool {
	return c.Valid() && c != ConditionHeavilyDamaged
}

// DamageEstimate is the per-unit damage fine charged when an item comes back in this condition.
func (c Condition) DamageEstimate() decimal.Decimal {
	return damageEstimates[c]
}

// RequiresFine reports whether returning an item in this condition incurs a damage fine.
func (c Condition) RequiresFine() bool {
	return c.DamageEstimate().IsPositive()
}

// WorseThan reports whether c is in a worse state than other.
func (c Condition) WorseThan(other Condition) bool {
	return conditionSeverity[c] > conditionSeverity[other]
}

// Garment is a catalog entry. The rentable units are its variants.
type Garment struct {
	ID          string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string           `json:"name" gorm:"type:varchar(100);index" validate:"required,min=3,max=100"`
	Category    string           `json:"category" gorm:"type:varchar(50);index" validate:"omitempty,max=50"`
	Description string           `json:"description" validate:"omitempty,max=500"`
	Variants    []GarmentVariant `json:"variants" gorm:"foreignKey:GarmentID" validate:"required,min=1,dive"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// GarmentVariant is a rentable size/condition SKU of a garment.
type GarmentVariant struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GarmentID   string          `json:"garment_id" gorm:"type:varchar(36);index;not null"`
	Garment     *Garment        `json:"-" gorm:"foreignKey:GarmentID"`
	Size        string          `json:"size" gorm:"type:varchar(10)" validate:"required,max=10"`
	PricePerDay decimal.Decimal `json:"price_per_day" gorm:"type:decimal(14,2);not null" validate:"gt=0"`
	Stock       int             `json:"stock" gorm:"not null;default:0" validate:"gte=0"`
	Condition   Condition       `json:"condition" gorm:"type:varchar(20);not null" validate:"required,oneof=new good lightly_damaged heavily_damaged"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsRentable reports whether the variant can currently be put in a cart.
func (v *GarmentVariant) IsRentable() bool {
	return v.Stock > 0 && v.Condition.IsRentable()
}

// IsStockSufficient reports whether qty units are available.
func (v *GarmentVariant) IsStockSufficient(qty int) bool {
	return qty > 0 && v.Stock >= qty
}

// DisplayName is the garment name plus size, used in caller-facing messages.
func (v *GarmentVariant) DisplayName() string {
	if v.Garment == nil {
		return v.Size
	}
	return fmt.Sprintf("%s (%s)", v.Garment.Name, v.Size)
}
