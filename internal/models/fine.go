package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FineKind string

const (
	FineLateReturn FineKind = "late_return"
	FineDamage     FineKind = "damage"
	FineLoss       FineKind = "loss"
)

// Fine is a penalty charged against a rental order.
// OrderLineID is set on damage fines created from a return report and
// identifies the line the fine was raised for. An order has at most one
// late return fine.
type Fine struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string          `json:"order_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_fines_order_line;index:idx_fines_late_return,unique,where:kind = 'late_return'"`
	OrderLineID *string         `json:"order_line_id,omitempty" gorm:"type:varchar(36);uniqueIndex:idx_fines_order_line"`
	Kind        FineKind        `json:"kind" gorm:"type:varchar(20);index;not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Description string          `json:"description"`
	Paid        bool            `json:"paid" gorm:"not null;default:false;index"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
