package repositories

import (
	"context"

	"sewabaju/internal/models"
)

// GarmentRepository defines the interface for garment data access.
type GarmentRepository interface {
	Create(ctx context.Context, garment *models.Garment) error
	GetByID(ctx context.Context, id string) (*models.Garment, error)
	Search(ctx context.Context, query, category string) ([]models.Garment, error)
	Update(ctx context.Context, garment *models.Garment) error
	// Delete removes a garment together with all of its variants.
	Delete(ctx context.Context, id string) error
}

// VariantRepository defines the interface for variant data access, including
// the atomic stock adjustments used by the rental engine.
type VariantRepository interface {
	Create(ctx context.Context, variant *models.GarmentVariant) error
	GetByID(ctx context.Context, id string) (*models.GarmentVariant, error)
	Update(ctx context.Context, variant *models.GarmentVariant) error
	Delete(ctx context.Context, id string) error
	// DecrementStock subtracts qty only if current stock >= qty; otherwise it
	// returns ErrStockConflict and changes nothing.
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
	UpdateCondition(ctx context.Context, id string, condition models.Condition) error
}
