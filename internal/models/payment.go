package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodEWallet      PaymentMethod = "e_wallet"
	MethodCash         PaymentMethod = "cash"
)

var paymentInstructions = map[PaymentMethod]string{
	MethodBankTransfer: "Transfer to BCA 1234567890 a.n. Sewa Baju and upload the receipt",
	MethodEWallet:      "Pay to GoPay / OVO / Dana 081234567890 and upload the receipt",
	MethodCash:         "Pay at the counter when picking up the garments",
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentInstructions[m]
	return ok
}

// RequiresProof reports whether a proof-of-payment file must accompany the payment.
func (m PaymentMethod) RequiresProof() bool {
	return m == MethodBankTransfer || m == MethodEWallet
}

// Instructions is the customer-facing text describing how to pay.
func (m PaymentMethod) Instructions() string {
	return paymentInstructions[m]
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending_verification"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

// Payment settles exactly one rental order.
type Payment struct {
	ID         string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID    string          `json:"order_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Method     PaymentMethod   `json:"method" gorm:"type:varchar(20);not null"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	ProofRef   string          `json:"proof_ref,omitempty" gorm:"type:varchar(255)"`
	Status     PaymentStatus   `json:"status" gorm:"type:varchar(30);index;not null"`
	VerifiedBy *string         `json:"verified_by,omitempty" gorm:"type:varchar(36)"`
	VerifiedAt *time.Time      `json:"verified_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
