package repositories

import (
	"context"
	"time"

	"sewabaju/internal/models"
)

// OrderRepository defines the interface for rental order data access.
type OrderRepository interface {
	// Create inserts the order and its lines.
	Create(ctx context.Context, order *models.RentalOrder) error
	GetByID(ctx context.Context, id string) (*models.RentalOrder, error)
	ListByCustomer(ctx context.Context, customerID string) ([]models.RentalOrder, error)
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.RentalOrder, error)
	// ListOverdue returns active orders whose end date is before today.
	ListOverdue(ctx context.Context, today time.Time) ([]models.RentalOrder, error)
	// CompareAndSetStatus moves the order from -> to, returning
	// ErrStatusConflict if the stored status is not from.
	CompareAndSetStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	// SetActualReturnDate sets the return date once; a second call returns ErrStatusConflict.
	SetActualReturnDate(ctx context.Context, id string, date time.Time) error
	UpdateLineReturn(ctx context.Context, lineID string, condition models.Condition, notes string) error
	// CountActiveLinesForVariant counts lines of non-terminal orders that reference the variant.
	CountActiveLinesForVariant(ctx context.Context, variantID string) (int64, error)
}
