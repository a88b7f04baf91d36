package repositories

import (
	"context"
	"time"

	"sewabaju/internal/models"
)

// PaymentRepository defines the interface for payment data access.
type PaymentRepository interface {
	// Create inserts a payment; a second payment for the same order yields ErrDuplicate.
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Payment, error)
	// Verify moves a pending payment to status, recording who verified it and when.
	Verify(ctx context.Context, id string, status models.PaymentStatus, verifierID string, at time.Time) error
	// ReplaceProof swaps the proof of a rejected payment and puts it back to pending.
	ReplaceProof(ctx context.Context, id, proofRef string) error
}
