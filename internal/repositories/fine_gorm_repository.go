package repositories

import (
	"context"
	"time"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMFineRepository is a GORM implementation of FineRepository.
type GORMFineRepository struct {
	db *gorm.DB
}

// NewGORMFineRepository creates a new instance of GORMFineRepository.
func NewGORMFineRepository(db *gorm.DB) *GORMFineRepository {
	return &GORMFineRepository{db: db}
}

// Create inserts a fine. A second damage fine for the same order line yields ErrDuplicate.
func (r *GORMFineRepository) Create(ctx context.Context, fine *models.Fine) error {
	if fine.ID == "" {
		fine.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(fine).Error; err != nil {
		return duplicateOr(err, "create fine")
	}
	return nil
}

// GetByID retrieves a fine by its ID.
func (r *GORMFineRepository) GetByID(ctx context.Context, id string) (*models.Fine, error) {
	var fine models.Fine
	if err := r.db.WithContext(ctx).First(&fine, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "fine", id, "get fine")
	}
	return &fine, nil
}

// ListByOrder returns the fines of an order in creation order.
func (r *GORMFineRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Fine, error) {
	var fines []models.Fine
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at, id").Find(&fines).Error; err != nil {
		return nil, apperr.Storage("list fines by order", err)
	}
	return fines, nil
}

// ListUnpaid returns every unpaid fine.
func (r *GORMFineRepository) ListUnpaid(ctx context.Context) ([]models.Fine, error) {
	var fines []models.Fine
	if err := r.db.WithContext(ctx).Where("paid = ?", false).Order("created_at").Find(&fines).Error; err != nil {
		return nil, apperr.Storage("list unpaid fines", err)
	}
	return fines, nil
}

// MarkPaid flags an unpaid fine as paid.
func (r *GORMFineRepository) MarkPaid(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Fine{}).
		Where("id = ? AND paid = ?", id, false).
		Updates(map[string]interface{}{"paid": true, "paid_at": at})
	if res.Error != nil {
		return apperr.Storage("mark fine paid", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}
