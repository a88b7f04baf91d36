package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"sewabaju/internal/database"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/services"
	"sewabaju/internal/session"
	"sewabaju/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	staff    = session.StaffActor{ID: "staff-1", Title: "cashier"}
	staffCtx = session.WithActor(context.Background(), staff)
)

func customerCtx(id string) context.Context {
	return session.WithActor(context.Background(), session.CustomerActor{ID: id})
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func money(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// recordingPublisher keeps every published routing key.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	body []services.Event
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	if e, ok := data.(services.Event); ok {
		p.body = append(p.body, e)
	}
	return nil
}

func (p *recordingPublisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func newTestStore(t *testing.T) *repositories.GORMStore {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return repositories.NewGORMStore(db)
}

// env is a fully wired set of services over one in-memory database.
type env struct {
	store    repositories.Store
	files    *storage.LocalStorage
	pub      *recordingPublisher
	catalog  *services.CatalogService
	fines    *services.FineService
	loyalty  *services.LoyaltyService
	rental   *services.RentalService
	payments *services.PaymentService
	auth     *services.AuthService
}

func newEnv(t *testing.T, today string) *env {
	t.Helper()
	return newEnvWithStore(t, newTestStore(t), today)
}

func newEnvWithStore(t *testing.T, store repositories.Store, today string) *env {
	t.Helper()
	files, err := storage.NewLocalStorage(afero.NewMemMapFs(), "/uploads")
	require.NoError(t, err)
	return newEnvWith(t, store, files, today)
}

func newEnvWith(t *testing.T, store repositories.Store, files storage.FileStorage, today string) *env {
	t.Helper()
	log := zap.NewNop()
	pub := &recordingPublisher{}
	fines := services.NewFineService(store, services.DefaultLateFeePerDay, pub, log)
	loyalty := services.NewLoyaltyService(store, services.DefaultLoyaltyUnit, log)
	rental := services.NewRentalService(store, fines, loyalty, pub, nil, services.FixedClock(date(today)), services.DefaultMaxRentalDays, log)
	e := &env{
		store:    store,
		pub:      pub,
		catalog:  services.NewCatalogService(store, nil, log),
		fines:    fines,
		loyalty:  loyalty,
		rental:   rental,
		payments: services.NewPaymentService(store, rental, files, pub, log),
		auth:     services.NewAuthService(store, "test_jwt_secret", log),
	}
	if ls, ok := files.(*storage.LocalStorage); ok {
		e.files = ls
	}
	return e
}

// customer registers a customer and returns its id.
func (e *env) customer(t *testing.T, username string) string {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "password123"}
	require.NoError(t, e.auth.RegisterCustomer(context.Background(), user, "Jl. Merdeka 1"))
	return user.ID
}

// variant adds a garment with one variant and returns the variant id.
func (e *env) variant(t *testing.T, price int64, stock int, condition models.Condition) string {
	t.Helper()
	g := &models.Garment{
		Name:     "Kebaya " + uuid.NewString()[:8],
		Category: "kebaya",
		Variants: []models.GarmentVariant{{Size: "M", PricePerDay: money(price), Stock: stock, Condition: condition}},
	}
	require.NoError(t, e.catalog.CreateGarment(staffCtx, g))
	return g.Variants[0].ID
}

func (e *env) stock(t *testing.T, variantID string) int {
	t.Helper()
	v, err := e.catalog.FindVariant(context.Background(), variantID)
	require.NoError(t, err)
	return v.Stock
}

// order creates an order of qty units of variantID from start to end.
func (e *env) order(t *testing.T, customerID, variantID string, qty int, start, end string) *models.RentalOrder {
	t.Helper()
	order, err := e.rental.CreateOrder(customerCtx(customerID), customerID,
		[]services.CartLine{{VariantID: variantID, Quantity: qty}}, date(start), date(end))
	require.NoError(t, err)
	return order
}

// activeOrder creates an order and takes it through cash payment and pickup.
func (e *env) activeOrder(t *testing.T, customerID, variantID string, qty int, start, end string) *models.RentalOrder {
	t.Helper()
	order := e.order(t, customerID, variantID, qty, start, end)
	_, err := e.payments.CreatePayment(customerCtx(customerID), order.ID, models.MethodCash, order.TotalPrice, nil)
	require.NoError(t, err)
	order, err = e.rental.StartRental(staffCtx, order.ID)
	require.NoError(t, err)
	return order
}

// recordApprovedPayment stores an approved payment for order without
// confirming the order.
func (e *env) recordApprovedPayment(t *testing.T, order *models.RentalOrder) {
	t.Helper()
	require.NoError(t, e.store.Payments().Create(context.Background(), &models.Payment{
		OrderID: order.ID,
		Method:  models.MethodCash,
		Amount:  order.TotalPrice,
		Status:  models.PaymentApproved,
	}))
}

var pngProof = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)

func proof(name string) *storage.Upload {
	return &storage.Upload{Filename: name, Data: pngProof}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
