package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sewabaju/internal/database"
	"sewabaju/internal/handlers"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/services"
	"sewabaju/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	staffUsername = "admin"
	staffPassword = "secret123"
)

var pngProof = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

// setupApp builds the API over an in-memory SQLite database, in-memory proof
// storage and no message broker. Today is 2024-03-01.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err, "failed to connect to in-memory database")
	require.NoError(t, database.Migrate(db), "failed to auto-migrate database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	files, err := storage.NewLocalStorage(afero.NewMemMapFs(), "/uploads")
	require.NoError(t, err)

	log := zap.NewNop()
	store := repositories.NewGORMStore(db)
	today := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fines := services.NewFineService(store, services.DefaultLateFeePerDay, nil, log)
	loyalty := services.NewLoyaltyService(store, services.DefaultLoyaltyUnit, log)
	rental := services.NewRentalService(store, fines, loyalty, nil, nil, services.FixedClock(today), services.DefaultMaxRentalDays, log)
	svc := handlers.Services{
		Auth:     services.NewAuthService(store, "test_jwt_secret", log),
		Catalog:  services.NewCatalogService(store, nil, log),
		Rental:   rental,
		Payments: services.NewPaymentService(store, rental, files, nil, log),
		Fines:    fines,
		Loyalty:  loyalty,
	}
	admin := &models.User{Username: staffUsername, Email: "admin@example.com", Password: staffPassword}
	require.NoError(t, svc.Auth.EnsureStaff(context.Background(), admin, "owner"))

	app := fiber.New(fiber.Config{BodyLimit: 6 * 1024 * 1024})
	handlers.Mount(app.Group("/api/v1"), svc, log)
	return app
}

// call sends a JSON request and decodes the JSON response into out when given.
func call(t *testing.T, app *fiber.App, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, app, req, out)
}

func do(t *testing.T, app *fiber.App, req *http.Request, out any) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp.StatusCode
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	status := call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// registerCustomer registers and logs in a customer, returning its id and token.
func registerCustomer(t *testing.T, app *fiber.App, username string) (string, string) {
	t.Helper()
	var resp struct {
		User models.User `json:"user"`
	}
	status := call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"address":  "Jl. Sudirman 5",
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp.User.ID, login(t, app, username, "password123")
}

func createGarment(t *testing.T, app *fiber.App, staffToken string, stock int) string {
	t.Helper()
	var garment models.Garment
	status := call(t, app, http.MethodPost, "/api/v1/garments", staffToken, map[string]any{
		"name":     "Kebaya Kutubaru",
		"category": "kebaya",
		"variants": []map[string]any{
			{"size": "M", "price_per_day": 50000, "stock": stock, "condition": "new"},
		},
	}, &garment)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, garment.Variants, 1)
	return garment.Variants[0].ID
}

func uploadPayment(t *testing.T, app *fiber.App, token, orderID, method string, amount decimal.Decimal, proof []byte) (int, models.Payment) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("method", method))
	require.NoError(t, w.WriteField("amount", amount.String()))
	if proof != nil {
		part, err := w.CreateFormFile("proof", "bukti.png")
		require.NoError(t, err)
		_, err = part.Write(proof)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/payment", orderID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	var resp struct {
		Payment models.Payment `json:"payment"`
	}
	status := do(t, app, req, &resp)
	return status, resp.Payment
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app := setupApp(t)

	registerCustomer(t, app, "testuser")

	var errResp map[string]any
	status := call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "testuser",
		"email":    "another@example.com",
		"password": "password123",
	}, &errResp)
	assert.Equal(t, http.StatusConflict, status)

	status = call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "x",
		"email":    "not-an-email",
		"password": "1",
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errResp, "errors")

	status = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "wrongpassword",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProtectedRoutes(t *testing.T) {
	app := setupApp(t)
	_, customerToken := registerCustomer(t, app, "siti")

	assert.Equal(t, http.StatusUnauthorized, call(t, app, http.MethodGet, "/api/v1/orders", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, http.MethodGet, "/api/v1/orders", "garbage", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/orders", customerToken, nil, nil))

	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodGet, "/api/v1/payments/pending", customerToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPost, "/api/v1/garments", customerToken, map[string]any{"name": "Nope"}, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPost, "/api/v1/auth/staff", customerToken, map[string]any{}, nil))
}

func TestRentalFlow(t *testing.T) {
	app := setupApp(t)
	staffToken := login(t, app, staffUsername, staffPassword)
	customerID, customerToken := registerCustomer(t, app, "siti")
	variantID := createGarment(t, app, staffToken, 3)

	var garments []models.Garment
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/garments?q=kutubaru", customerToken, nil, &garments))
	require.Len(t, garments, 1)

	// Checkout.
	var order models.RentalOrder
	status := call(t, app, http.MethodPost, "/api/v1/orders", customerToken, map[string]any{
		"start_date": "2024-03-01",
		"end_date":   "2024-03-04",
		"lines":      []map[string]any{{"variant_id": variantID, "quantity": 2}},
	}, &order)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, customerID, order.CustomerID)
	assert.True(t, decimal.NewFromInt(300000).Equal(order.TotalPrice), "total %s", order.TotalPrice)
	assert.Equal(t, models.StatusAwaitingPayment, order.Status)
	require.Len(t, order.Lines, 1)
	lineID := order.Lines[0].ID

	// Pay by transfer and have staff approve it.
	status, payment := uploadPayment(t, app, customerToken, order.ID, "bank_transfer", order.TotalPrice, pngProof)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.PaymentPending, payment.Status)

	status, _ = uploadPayment(t, app, customerToken, order.ID, "cash", order.TotalPrice, nil)
	assert.Equal(t, http.StatusConflict, status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+payment.ID+"/proof", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	proofBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, pngProof, proofBody)

	var approved models.Payment
	status = call(t, app, http.MethodPost, "/api/v1/payments/"+payment.ID+"/approve", staffToken, nil, &approved)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.PaymentApproved, approved.Status)

	// Pick up and bring back two days late with damage.
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/start", staffToken, nil, &order))
	assert.Equal(t, models.StatusActive, order.Status)

	var result services.ReturnResult
	status = call(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/return", staffToken, map[string]any{
		"return_date": "2024-03-06",
		"reports": []map[string]any{
			{"line_id": lineID, "condition": "lightly_damaged", "notes": "button missing"},
		},
	}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.StatusReturned, result.Order.Status)
	assert.Len(t, result.Fines, 2)
	assert.Equal(t, 30, result.PointsAwarded)

	var summary services.OrderSummary
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/orders/"+order.ID+"/summary", customerToken, nil, &summary))
	assert.True(t, decimal.NewFromInt(70000).Equal(summary.UnpaidFines), "20,000 late + 50,000 damage, got %s", summary.UnpaidFines)

	var points map[string]any
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/customers/"+customerID+"/points", customerToken, nil, &points))
	assert.EqualValues(t, 30, points["loyalty_points"])

	// Staff settle a fine and add a loss fine with the default amount.
	var paid models.Fine
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/v1/fines/"+result.Fines[0].ID+"/pay", staffToken, nil, &paid))
	assert.True(t, paid.Paid)

	var loss models.Fine
	status = call(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/fines", staffToken, map[string]any{
		"kind":        "loss",
		"description": "sash not returned",
	}, &loss)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, services.DefaultLossAmount.Equal(loss.Amount))

	var auto map[string][]models.Fine
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/fines/auto", staffToken, nil, &auto))
	assert.Empty(t, auto["created"])

	var totals struct {
		Total  decimal.Decimal `json:"total"`
		Unpaid decimal.Decimal `json:"unpaid"`
	}
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/orders/"+order.ID+"/fines/total", customerToken, nil, &totals))
	assert.True(t, decimal.NewFromInt(570000).Equal(totals.Total), "got %s", totals.Total)
	assert.True(t, totals.Total.Sub(paid.Amount).Equal(totals.Unpaid), "got %s", totals.Unpaid)

	_, otherToken := registerCustomer(t, app, "budi")
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodGet, "/api/v1/orders/"+order.ID+"/fines/total", otherToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodGet, "/api/v1/payments/"+payment.ID+"/proof", otherToken, nil, nil))
}

func TestOrderErrors(t *testing.T) {
	app := setupApp(t)
	staffToken := login(t, app, staffUsername, staffPassword)
	_, customerToken := registerCustomer(t, app, "siti")
	variantID := createGarment(t, app, staffToken, 1)

	var body map[string]any
	status := call(t, app, http.MethodPost, "/api/v1/orders", customerToken, map[string]any{
		"start_date": "2024-03-01",
		"end_date":   "2024-03-04",
		"lines":      []map[string]any{{"variant_id": variantID, "quantity": 2}},
	}, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.EqualValues(t, 1, body["available"])
	assert.EqualValues(t, 2, body["requested"])

	status = call(t, app, http.MethodPost, "/api/v1/orders", customerToken, map[string]any{
		"start_date": "01/03/2024",
		"end_date":   "2024-03-04",
		"lines":      []map[string]any{{"variant_id": variantID, "quantity": 1}},
	}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "start_date", body["field"])

	var order models.RentalOrder
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/v1/orders", customerToken, map[string]any{
		"start_date": "2024-03-01",
		"end_date":   "2024-03-04",
		"lines":      []map[string]any{{"variant_id": variantID, "quantity": 1}},
	}, &order))

	status = call(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/start", staffToken, nil, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "awaiting_payment", body["from"])

	status = call(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/confirm", staffToken, nil, &body)
	assert.Equal(t, http.StatusConflict, status, "an order without an approved payment cannot be confirmed")

	status, _ = uploadPayment(t, app, customerToken, order.ID, "e_wallet", order.TotalPrice, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", customerToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, "/api/v1/orders/missing", customerToken, nil, nil))
}

func TestCatalogEdits(t *testing.T) {
	app := setupApp(t)
	staffToken := login(t, app, staffUsername, staffPassword)
	_, customerToken := registerCustomer(t, app, "siti")
	variantID := createGarment(t, app, staffToken, 2)

	var variant models.GarmentVariant
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/variants/"+variantID, customerToken, nil, &variant))
	garmentPath := "/api/v1/garments/" + variant.GarmentID

	update := map[string]any{"name": "Kebaya Encim", "category": "kebaya"}
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPut, garmentPath, customerToken, update, nil))

	var garment models.Garment
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, garmentPath, staffToken, update, &garment))
	assert.Equal(t, "Kebaya Encim", garment.Name)

	var added models.GarmentVariant
	status := call(t, app, http.MethodPost, garmentPath+"/variants", staffToken, map[string]any{
		"size": "L", "price_per_day": 60000, "stock": 1,
	}, &added)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, variant.GarmentID, added.GarmentID)

	status = call(t, app, http.MethodPost, garmentPath+"/variants", staffToken, map[string]any{
		"size": "m", "price_per_day": 60000, "stock": 1,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "sizes are unique per garment")

	var order models.RentalOrder
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/v1/orders", customerToken, map[string]any{
		"start_date": "2024-03-01",
		"end_date":   "2024-03-02",
		"lines":      []map[string]any{{"variant_id": added.ID, "quantity": 1}},
	}, &order))
	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodDelete, garmentPath, staffToken, nil, nil))

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", customerToken, nil, nil))
	assert.Equal(t, http.StatusNoContent, call(t, app, http.MethodDelete, garmentPath, staffToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, garmentPath, customerToken, nil, nil))
}

func TestAccountRoutes(t *testing.T) {
	app := setupApp(t)
	staffToken := login(t, app, staffUsername, staffPassword)
	customerID, customerToken := registerCustomer(t, app, "siti")
	_, otherToken := registerCustomer(t, app, "budi")

	status := call(t, app, http.MethodPut, "/api/v1/auth/password", customerToken, map[string]string{
		"old_password": "wrong-password",
		"new_password": "newsecret1",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = call(t, app, http.MethodPut, "/api/v1/auth/password", customerToken, map[string]string{
		"old_password": "password123",
		"new_password": "newsecret1",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	login(t, app, "siti", "newsecret1")

	profilePath := "/api/v1/users/" + customerID + "/profile"
	profile := map[string]string{"full_name": "Siti Aminah", "phone": "081234567890", "address": "Jl. Melati 9"}
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPut, profilePath, otherToken, profile, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPut, profilePath, customerToken, map[string]string{"phone": "0812"}, nil))

	var user models.User
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, profilePath, customerToken, profile, &user))
	assert.Equal(t, "Siti Aminah", user.FullName)
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodPut, profilePath, staffToken, profile, nil))
}
