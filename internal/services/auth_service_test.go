package services_test

import (
	"context"
	"errors"
	"testing"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"
	"sewabaju/internal/services"
	"sewabaju/internal/session"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCustomerAndLogin(t *testing.T) {
	e := newEnv(t, "2024-03-01")
	ctx := context.Background()

	user := &models.User{Username: "siti", Email: "siti@example.com", Password: "password123"}
	require.NoError(t, e.auth.RegisterCustomer(ctx, user, "Jl. Mawar 2"))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotEqual(t, "password123", user.Password, "password is stored hashed")

	token, err := e.auth.LoginUser(ctx, "siti", "password123")
	require.NoError(t, err)

	claims, err := e.auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, "customer", claims["role"])

	actor, err := e.auth.ActorFromClaims(ctx, claims)
	require.NoError(t, err)
	customer, ok := actor.(session.CustomerActor)
	require.True(t, ok)
	assert.Equal(t, user.ID, customer.ID)
	assert.Equal(t, "Jl. Mawar 2", customer.Address)
	assert.False(t, actor.IsStaff())
}

func TestRegister_DuplicateUsernameOrEmail(t *testing.T) {
	e := newEnv(t, "2024-03-01")
	ctx := context.Background()
	e.customer(t, "siti")

	err := e.auth.RegisterCustomer(ctx, &models.User{Username: "siti", Email: "other@example.com", Password: "password123"}, "")
	assert.True(t, errors.Is(err, services.ErrUserExists))

	err = e.auth.RegisterCustomer(ctx, &models.User{Username: "siti2", Email: "siti@example.com", Password: "password123"}, "")
	assert.True(t, errors.Is(err, services.ErrUserExists))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newEnv(t, "2024-03-01")
	e.customer(t, "siti")

	_, err := e.auth.LoginUser(context.Background(), "siti", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	_, err = e.auth.LoginUser(context.Background(), "nobody", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestValidateToken_RejectsForeignSignature(t *testing.T) {
	e := newEnv(t, "2024-03-01")

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "x", "role": "staff"})
	signed, err := forged.SignedString([]byte("another secret"))
	require.NoError(t, err)

	_, err = e.auth.ValidateToken(signed)
	assert.Error(t, err)
	_, err = e.auth.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestStaffRegistration(t *testing.T) {
	e := newEnv(t, "2024-03-01")
	ctx := context.Background()

	admin := &models.User{Username: "admin", Email: "admin@example.com", Password: "secret123"}
	require.NoError(t, e.auth.EnsureStaff(ctx, admin, "owner"))
	require.NoError(t, e.auth.EnsureStaff(ctx, &models.User{Username: "admin", Email: "admin@example.com", Password: "secret123"}, "owner"),
		"existing staff is left alone")

	token, err := e.auth.LoginUser(ctx, "admin", "secret123")
	require.NoError(t, err)
	claims, err := e.auth.ValidateToken(token)
	require.NoError(t, err)
	actor, err := e.auth.ActorFromClaims(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, session.StaffActor{ID: admin.ID, Title: "owner"}, actor)

	cust := e.customer(t, "siti")
	err = e.auth.RegisterStaff(customerCtx(cust), &models.User{Username: "kasir", Email: "kasir@example.com", Password: "secret123"}, "cashier")
	var fe *apperr.ForbiddenError
	require.ErrorAs(t, err, &fe)

	staffActorCtx := session.WithActor(ctx, actor)
	require.NoError(t, e.auth.RegisterStaff(staffActorCtx, &models.User{Username: "kasir", Email: "kasir@example.com", Password: "secret123"}, "cashier"))
}

func TestActorFromClaims_UnknownRole(t *testing.T) {
	e := newEnv(t, "2024-03-01")

	_, err := e.auth.ActorFromClaims(context.Background(), jwt.MapClaims{"user_id": "u-1", "role": "admin"})
	assert.Error(t, err)
	_, err = e.auth.ActorFromClaims(context.Background(), jwt.MapClaims{"role": "staff"})
	assert.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t, "2024-03-01")
	ctx := context.Background()
	siti := e.customer(t, "siti")
	other := e.customer(t, "budi")

	var fe *apperr.ForbiddenError
	require.ErrorAs(t, e.auth.ChangePassword(customerCtx(other), siti, "password123", "newsecret1"), &fe)
	require.ErrorAs(t, e.auth.ChangePassword(staffCtx, siti, "password123", "newsecret1"), &fe,
		"staff cannot change someone else's password")

	var ve *apperr.ValidationError
	require.ErrorAs(t, e.auth.ChangePassword(customerCtx(siti), siti, "password123", "abc"), &ve)
	assert.Equal(t, "new_password", ve.Field)
	require.ErrorAs(t, e.auth.ChangePassword(customerCtx(siti), siti, "password123", "password123"), &ve)

	err := e.auth.ChangePassword(customerCtx(siti), siti, "wrong-password", "newsecret1")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	require.NoError(t, e.auth.ChangePassword(customerCtx(siti), siti, "password123", "newsecret1"))

	_, err = e.auth.LoginUser(ctx, "siti", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, err = e.auth.LoginUser(ctx, "siti", "newsecret1")
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t, "2024-03-01")
	ctx := context.Background()
	siti := e.customer(t, "siti")
	other := e.customer(t, "budi")

	upd := services.ProfileUpdate{FullName: "Siti Aminah", Phone: "081234567890", Address: "Jl. Melati 9"}
	user, err := e.auth.UpdateProfile(customerCtx(siti), siti, upd)
	require.NoError(t, err)
	assert.Equal(t, "Siti Aminah", user.FullName)
	assert.Empty(t, user.Password)

	stored, err := e.store.Users().GetByID(ctx, siti)
	require.NoError(t, err)
	assert.Equal(t, "Siti Aminah", stored.FullName)
	assert.Equal(t, "081234567890", stored.Phone)
	customer, err := e.store.Customers().GetByID(ctx, siti)
	require.NoError(t, err)
	assert.Equal(t, "Jl. Melati 9", customer.Address)

	upd.FullName = "Siti A."
	_, err = e.auth.UpdateProfile(staffCtx, siti, upd)
	require.NoError(t, err, "staff may update any profile")

	var fe *apperr.ForbiddenError
	_, err = e.auth.UpdateProfile(customerCtx(other), siti, upd)
	require.ErrorAs(t, err, &fe)

	var ve *apperr.ValidationError
	_, err = e.auth.UpdateProfile(customerCtx(siti), siti, services.ProfileUpdate{Phone: "0812"})
	require.ErrorAs(t, err, &ve)
	_, err = e.auth.UpdateProfile(customerCtx(siti), siti, services.ProfileUpdate{FullName: "Siti", Phone: "not a phone"})
	require.ErrorAs(t, err, &ve)

	_, err = e.auth.UpdateProfile(staffCtx, "missing-user", upd)
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdateProfile_StaffHasNoAddress(t *testing.T) {
	e := newEnv(t, "2024-03-01")
	ctx := context.Background()
	admin := &models.User{Username: "admin", Email: "admin@example.com", Password: "secret123"}
	require.NoError(t, e.auth.EnsureStaff(ctx, admin, "owner"))

	actorCtx := session.WithActor(ctx, session.StaffActor{ID: admin.ID})
	user, err := e.auth.UpdateProfile(actorCtx, admin.ID, services.ProfileUpdate{FullName: "Admin Toko", Address: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, user.Role)
	assert.Equal(t, "Admin Toko", user.FullName)
}
