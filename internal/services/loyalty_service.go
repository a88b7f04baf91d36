package services

import (
	"context"

	"sewabaju/internal/metrics"
	"sewabaju/internal/repositories"
	"sewabaju/internal/session"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultLoyaltyUnit is the amount spent per loyalty point.
var DefaultLoyaltyUnit = decimal.NewFromInt(10000)

// LoyaltyService accrues loyalty points to customers.
type LoyaltyService struct {
	store repositories.Store
	unit  decimal.Decimal
	log   *zap.Logger
}

// NewLoyaltyService creates a new LoyaltyService. A non-positive unit falls
// back to DefaultLoyaltyUnit.
func NewLoyaltyService(store repositories.Store, unit decimal.Decimal, log *zap.Logger) *LoyaltyService {
	if !unit.IsPositive() {
		unit = DefaultLoyaltyUnit
	}
	return &LoyaltyService{store: store, unit: unit, log: log.Named("loyalty")}
}

// PointsFor is floor(total / unit), never negative.
func (s *LoyaltyService) PointsFor(total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(total.Div(s.unit).Floor().IntPart())
}

// AwardPointsForOrder adds the points earned by an order total to the
// customer's balance and returns how many were added. Failures are logged
// and reported as zero points.
func (s *LoyaltyService) AwardPointsForOrder(ctx context.Context, customerID string, orderTotal decimal.Decimal) int {
	return s.award(ctx, s.store, customerID, orderTotal)
}

// award runs in a savepoint of store, so a failure here leaves the
// surrounding transaction usable.
func (s *LoyaltyService) award(ctx context.Context, store repositories.Store, customerID string, orderTotal decimal.Decimal) int {
	points := s.PointsFor(orderTotal)
	if points == 0 {
		return 0
	}
	err := store.WithinTx(ctx, func(tx repositories.Store) error {
		return tx.Customers().AddPoints(ctx, customerID, points)
	})
	if err != nil {
		metrics.LoyaltyAwardFailuresTotal.Inc()
		s.log.Warn("failed to award loyalty points",
			zap.String("customer_id", customerID),
			zap.Int("points", points),
			zap.Error(err))
		return 0
	}
	s.log.Info("loyalty points awarded", zap.String("customer_id", customerID), zap.Int("points", points))
	return points
}

// Balance returns a customer's current point balance.
func (s *LoyaltyService) Balance(ctx context.Context, customerID string) (int, error) {
	if _, err := session.RequireOwnerOrStaff(ctx, customerID, "view loyalty balance"); err != nil {
		return 0, err
	}
	c, err := s.store.Customers().GetByID(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return c.LoyaltyPoints, nil
}
