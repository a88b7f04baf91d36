package services_test

import (
	"context"
	"errors"
	"testing"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPointsFor(t *testing.T) {
	loyalty := services.NewLoyaltyService(nil, services.DefaultLoyaltyUnit, zap.NewNop())

	tests := []struct {
		total string
		want  int
	}{
		{"0", 0},
		{"-5000", 0},
		{"9999.99", 0},
		{"10000", 1},
		{"300000", 30},
		{"305000.50", 30},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			assert.Equal(t, tt.want, loyalty.PointsFor(mustDecimal(t, tt.total)))
		})
	}
}

func TestAwardPointsForOrder(t *testing.T) {
	e := newEnv(t, "2024-03-01")
	cust := e.customer(t, "siti")

	assert.Equal(t, 12, e.loyalty.AwardPointsForOrder(context.Background(), cust, money(125000)))
	assert.Equal(t, 3, e.loyalty.AwardPointsForOrder(context.Background(), cust, money(30000)))

	balance, err := e.loyalty.Balance(customerCtx(cust), cust)
	require.NoError(t, err)
	assert.Equal(t, 15, balance)

	assert.Zero(t, e.loyalty.AwardPointsForOrder(context.Background(), "missing", money(50000)))

	_, err = e.loyalty.Balance(customerCtx("someone-else"), cust)
	var fe *apperr.ForbiddenError
	assert.ErrorAs(t, err, &fe)
}

// mockCustomers lets a test fail the loyalty award while keeping the other
// customer operations real.
type mockCustomers struct {
	mock.Mock
	repositories.CustomerRepository
}

func (m *mockCustomers) AddPoints(ctx context.Context, userID string, points int) error {
	return m.Called(ctx, userID, points).Error(0)
}

func TestProcessReturn_LoyaltyFailureDoesNotUndoReturn(t *testing.T) {
	base := newTestStore(t)
	seed := newEnvWithStore(t, base, "2024-03-01")
	cust := seed.customer(t, "siti")
	x := seed.variant(t, 50000, 3, models.ConditionNew)
	order := seed.activeOrder(t, cust, x, 2, "2024-03-01", "2024-03-04")

	customers := &mockCustomers{}
	customers.On("AddPoints", mock.Anything, cust, 30).Return(errors.New("deadlock detected"))
	store := faultyStore{Store: base, customers: func(real repositories.CustomerRepository) repositories.CustomerRepository {
		customers.CustomerRepository = real
		return customers
	}}
	e := newEnvWithStore(t, store, "2024-03-01")

	result, err := e.rental.ProcessReturn(staffCtx, order.ID, date("2024-03-06"),
		[]services.LineReturn{{LineID: order.Lines[0].ID, Condition: models.ConditionLightlyDamaged}})
	require.NoError(t, err)
	customers.AssertExpectations(t)

	assert.Zero(t, result.PointsAwarded)
	assert.Len(t, result.Fines, 2)

	stored, err := seed.rental.GetOrder(staffCtx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, stored.Status)
	assert.Equal(t, 3, seed.stock(t, x))

	fines, err := seed.fines.ListFinesForOrder(staffCtx, order.ID)
	require.NoError(t, err)
	assert.Len(t, fines, 2)

	balance, err := seed.loyalty.Balance(staffCtx, cust)
	require.NoError(t, err)
	assert.Zero(t, balance)
}
