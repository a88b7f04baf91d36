package repositories

import (
	"context"
	"time"

	"sewabaju/internal/models"
)

// FineRepository defines the interface for fine data access.
type FineRepository interface {
	Create(ctx context.Context, fine *models.Fine) error
	GetByID(ctx context.Context, id string) (*models.Fine, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.Fine, error)
	ListUnpaid(ctx context.Context) ([]models.Fine, error)
	MarkPaid(ctx context.Context, id string, at time.Time) error
}
