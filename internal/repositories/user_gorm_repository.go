package repositories

import (
	"context"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return duplicateOr(err, "create user")
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, notFoundOr(err, "user", username, "get user by username")
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFoundOr(err, "user", email, "get user by email")
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "user", id, "get user by id")
	}
	return &user, nil
}

func (r *GORMUserRepository) CreateStaff(ctx context.Context, staff *models.Staff) error {
	if err := r.db.WithContext(ctx).Create(staff).Error; err != nil {
		return duplicateOr(err, "create staff")
	}
	return nil
}

func (r *GORMUserRepository) GetStaff(ctx context.Context, userID string) (*models.Staff, error) {
	var staff models.Staff
	if err := r.db.WithContext(ctx).First(&staff, "user_id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "staff", userID, "get staff")
	}
	return &staff, nil
}

// UpdatePassword replaces the stored password hash.
func (r *GORMUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateUser(ctx, id, "update password", map[string]any{"password": passwordHash})
}

// UpdateProfile replaces the contact details of a user.
func (r *GORMUserRepository) UpdateProfile(ctx context.Context, id, fullName, phone string) error {
	return r.updateUser(ctx, id, "update profile", map[string]any{"full_name": fullName, "phone": phone})
}

func (r *GORMUserRepository) updateUser(ctx context.Context, id, op string, values map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return apperr.Storage(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}

// GORMCustomerRepository is a GORM implementation of CustomerRepository.
type GORMCustomerRepository struct {
	db *gorm.DB
}

// NewGORMCustomerRepository creates a new instance of GORMCustomerRepository.
func NewGORMCustomerRepository(db *gorm.DB) *GORMCustomerRepository {
	return &GORMCustomerRepository{db: db}
}

func (r *GORMCustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return duplicateOr(err, "create customer")
	}
	return nil
}

func (r *GORMCustomerRepository) GetByID(ctx context.Context, userID string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "user_id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "customer", userID, "get customer")
	}
	return &customer, nil
}

// AddPoints increments the balance without reading it first.
func (r *GORMCustomerRepository) AddPoints(ctx context.Context, userID string, points int) error {
	res := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("user_id = ?", userID).
		Update("loyalty_points", gorm.Expr("loyalty_points + ?", points))
	if res.Error != nil {
		return apperr.Storage("add loyalty points", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("customer", userID)
	}
	return nil
}

func (r *GORMCustomerRepository) UpdateAddress(ctx context.Context, userID, address string) error {
	res := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("user_id = ?", userID).
		Update("address", address)
	if res.Error != nil {
		return apperr.Storage("update address", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("customer", userID)
	}
	return nil
}
