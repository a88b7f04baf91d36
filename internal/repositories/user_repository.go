package repositories

import (
	"context"

	"sewabaju/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	CreateStaff(ctx context.Context, staff *models.Staff) error
	GetStaff(ctx context.Context, userID string) (*models.Staff, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id, fullName, phone string) error
}

// CustomerRepository defines the interface for customer profile data access.
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, userID string) (*models.Customer, error)
	// AddPoints increments the loyalty balance in a single statement.
	AddPoints(ctx context.Context, userID string, points int) error
	UpdateAddress(ctx context.Context, userID, address string) error
}
