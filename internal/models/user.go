package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// User represents an account that can log in, either staff or customer.
type User struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username  string         `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email     string         `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string         `json:"-" gorm:"type:varchar(255)" validate:"required,min=6"`
	FullName  string         `json:"full_name" gorm:"type:varchar(150)" validate:"omitempty,max=150"`
	Phone     string         `json:"phone" gorm:"type:varchar(20)" validate:"omitempty,max=20"`
	Role      Role           `json:"role" gorm:"type:varchar(20);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Customer holds the customer-only part of a user: address and loyalty balance.
type Customer struct {
	UserID        string    `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	Address       string    `json:"address" validate:"omitempty,max=255"`
	LoyaltyPoints int       `json:"loyalty_points" gorm:"not null;default:0"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Staff holds the staff-only part of a user.
type Staff struct {
	UserID string `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	Title  string `json:"title" gorm:"type:varchar(100)"`
}

// TableName keeps the staff table plural like the others.
func (Staff) TableName() string { return "staff_members" }
