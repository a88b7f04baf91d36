package repositories

import (
	"context"
	"time"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var nonTerminalStatuses = []models.OrderStatus{
	models.StatusAwaitingPayment,
	models.StatusConfirmed,
	models.StatusActive,
}

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// Create inserts the order row and then each line, assigning ids.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.RentalOrder) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	db := r.db.WithContext(ctx)
	if err := db.Omit("Lines").Create(order).Error; err != nil {
		return apperr.Storage("create order", err)
	}
	for i := range order.Lines {
		line := &order.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.OrderID = order.ID
		line.Position = i
		if err := db.Create(line).Error; err != nil {
			return apperr.Storage("create order line", err)
		}
	}
	return nil
}

// GetByID retrieves an order with its lines in cart order.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.RentalOrder, error) {
	var order models.RentalOrder
	if err := r.db.WithContext(ctx).Preload("Lines", preloadLines).First(&order, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "order", id, "get order")
	}
	return &order, nil
}

// ListByCustomer returns a customer's orders, newest first.
func (r *GORMOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]models.RentalOrder, error) {
	var orders []models.RentalOrder
	err := r.db.WithContext(ctx).Preload("Lines", preloadLines).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Storage("list orders by customer", err)
	}
	return orders, nil
}

// ListByStatus returns all orders in a status, oldest first.
func (r *GORMOrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.RentalOrder, error) {
	var orders []models.RentalOrder
	err := r.db.WithContext(ctx).Preload("Lines", preloadLines).
		Where("status = ?", status).
		Order("created_at").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Storage("list orders by status", err)
	}
	return orders, nil
}

// ListOverdue returns active orders whose due date has passed.
func (r *GORMOrderRepository) ListOverdue(ctx context.Context, today time.Time) ([]models.RentalOrder, error) {
	var orders []models.RentalOrder
	err := r.db.WithContext(ctx).Preload("Lines", preloadLines).
		Where("status = ? AND end_date < ?", models.StatusActive, today).
		Order("end_date").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Storage("list overdue orders", err)
	}
	return orders, nil
}

// CompareAndSetStatus only updates the row if it is still in status from.
func (r *GORMOrderRepository) CompareAndSetStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.RentalOrder{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return apperr.Storage("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// SetActualReturnDate records the return date if none is set yet.
func (r *GORMOrderRepository) SetActualReturnDate(ctx context.Context, id string, date time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.RentalOrder{}).
		Where("id = ? AND actual_return_date IS NULL", id).
		Update("actual_return_date", date)
	if res.Error != nil {
		return apperr.Storage("set actual return date", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// UpdateLineReturn records the condition a line came back in.
func (r *GORMOrderRepository) UpdateLineReturn(ctx context.Context, lineID string, condition models.Condition, notes string) error {
	res := r.db.WithContext(ctx).Model(&models.OrderLine{}).
		Where("id = ?", lineID).
		Updates(map[string]interface{}{
			"returned_condition": condition,
			"damage_notes":       notes,
		})
	if res.Error != nil {
		return apperr.Storage("update order line return", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order line", lineID)
	}
	return nil
}

// CountActiveLinesForVariant counts references from orders that are not yet terminal.
func (r *GORMOrderRepository) CountActiveLinesForVariant(ctx context.Context, variantID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OrderLine{}).
		Joins("JOIN rental_orders ON rental_orders.id = order_lines.order_id").
		Where("order_lines.variant_id = ? AND rental_orders.status IN ?", variantID, nonTerminalStatuses).
		Count(&n).Error
	if err != nil {
		return 0, apperr.Storage("count active lines for variant", err)
	}
	return n, nil
}
