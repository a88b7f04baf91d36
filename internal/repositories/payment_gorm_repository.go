package repositories

import (
	"context"
	"time"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

// NewGORMPaymentRepository creates a new instance of GORMPaymentRepository.
func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{db: db}
}

// Create inserts a payment. The unique index on order_id backs the
// one-payment-per-order rule.
func (r *GORMPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return duplicateOr(err, "create payment")
	}
	return nil
}

// GetByID retrieves a payment by its ID.
func (r *GORMPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "payment", id, "get payment")
	}
	return &payment, nil
}

// GetByOrderID retrieves the payment of an order.
func (r *GORMPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "order_id = ?", orderID).Error; err != nil {
		return nil, notFoundOr(err, "payment for order", orderID, "get payment by order")
	}
	return &payment, nil
}

// ListByStatus returns payments in a status, oldest first.
func (r *GORMPaymentRepository) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at").Find(&payments).Error; err != nil {
		return nil, apperr.Storage("list payments by status", err)
	}
	return payments, nil
}

// Verify moves a pending payment to status.
func (r *GORMPaymentRepository) Verify(ctx context.Context, id string, status models.PaymentStatus, verifierID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Updates(map[string]interface{}{
			"status":      status,
			"verified_by": verifierID,
			"verified_at": at,
		})
	if res.Error != nil {
		return apperr.Storage("verify payment", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ReplaceProof swaps the proof of a rejected payment and resets it to pending.
func (r *GORMPaymentRepository) ReplaceProof(ctx context.Context, id, proofRef string) error {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentRejected).
		Updates(map[string]interface{}{
			"proof_ref":   proofRef,
			"status":      models.PaymentPending,
			"verified_by": gorm.Expr("NULL"),
			"verified_at": gorm.Expr("NULL"),
		})
	if res.Error != nil {
		return apperr.Storage("replace payment proof", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}
