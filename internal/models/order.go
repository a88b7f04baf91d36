package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a rental order.
type OrderStatus string

const (
	StatusAwaitingPayment OrderStatus = "awaiting_payment"
	StatusConfirmed       OrderStatus = "confirmed"
	StatusActive          OrderStatus = "active"
	StatusReturned        OrderStatus = "returned"
	StatusCancelled       OrderStatus = "cancelled"
)

// RentalOrder is created once per checkout. After creation only Status and
// ActualReturnDate change.
type RentalOrder struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CustomerID       string          `json:"customer_id" gorm:"type:varchar(36);index;not null"`
	StartDate        time.Time       `json:"start_date" gorm:"not null"`
	EndDate          time.Time       `json:"end_date" gorm:"not null;index"`
	ActualReturnDate *time.Time      `json:"actual_return_date,omitempty"`
	TotalPrice       decimal.Decimal `json:"total_price" gorm:"type:decimal(14,2);not null"`
	Status           OrderStatus     `json:"status" gorm:"type:varchar(20);index;not null"`
	Lines            []OrderLine     `json:"lines" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DueDate is the agreed return date.
func (o *RentalOrder) DueDate() time.Time {
	return o.EndDate
}

// Line returns the order line with the given id.
func (o *RentalOrder) Line(id string) (*OrderLine, bool) {
	for i := range o.Lines {
		if o.Lines[i].ID == id {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// OrderLine is one variant rented within an order. Prices are snapshotted at
// creation so later catalog edits never touch existing orders.
type OrderLine struct {
	ID                string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID           string          `json:"order_id" gorm:"type:varchar(36);index;not null"`
	Position          int             `json:"position" gorm:"not null"`
	VariantID         string          `json:"variant_id" gorm:"type:varchar(36);index;not null"`
	Quantity          int             `json:"quantity" gorm:"not null"`
	PricePerDay       decimal.Decimal `json:"price_per_day" gorm:"type:decimal(14,2);not null"`
	PerItemPrice      decimal.Decimal `json:"per_item_price" gorm:"type:decimal(14,2);not null"`
	Subtotal          decimal.Decimal `json:"subtotal" gorm:"type:decimal(14,2);not null"`
	ReturnedCondition Condition       `json:"returned_condition,omitempty" gorm:"type:varchar(20)"`
	DamageNotes       string          `json:"damage_notes,omitempty"`
}

// Price sets the per-item price for a rental of days and recomputes the subtotal.
func (l *OrderLine) Price(pricePerDay decimal.Decimal, days int) {
	l.PricePerDay = pricePerDay
	l.PerItemPrice = pricePerDay.Mul(decimal.NewFromInt(int64(days)))
	l.Recalculate()
}

// Recalculate keeps Subtotal equal to PerItemPrice × Quantity.
func (l *OrderLine) Recalculate() {
	l.Subtotal = l.PerItemPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// IsDamaged reports whether the line came back in a condition that is fined.
func (l *OrderLine) IsDamaged() bool {
	return l.ReturnedCondition.RequiresFine()
}

// DamageFineAmount is the estimated damage fine for the whole line.
func (l *OrderLine) DamageFineAmount() decimal.Decimal {
	return l.ReturnedCondition.DamageEstimate().Mul(decimal.NewFromInt(int64(l.Quantity)))
}
