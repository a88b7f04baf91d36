package handlers

import (
	"errors"

	"sewabaju/internal/models"
	"sewabaju/internal/services"
	"sewabaju/internal/session"
	"sewabaju/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	log         *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validation.New(),
		log:         log,
	}
}

// RegisterRoutes registers the public authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
}

// RegisterAccountRoutes registers the routes that need an authenticated user.
// staff guards staff registration.
func (h *AuthHandler) RegisterAccountRoutes(router fiber.Router, staff fiber.Handler) {
	router.Post("/auth/staff", staff, h.HandleRegisterStaff)
	router.Put("/auth/password", h.HandleChangePassword)
	router.Put("/users/:id/profile", h.HandleUpdateProfile)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"omitempty,max=150"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Address  string `json:"address" validate:"omitempty,max=255"`
	Title    string `json:"title" validate:"omitempty,max=100"`
}

func (r RegisterRequest) user() *models.User {
	return &models.User{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
		Phone:    r.Phone,
	}
}

// HandleRegister registers a new customer.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, req); !ok {
		return err
	}

	user := req.user()
	if err := h.authService.RegisterCustomer(c.UserContext(), user, req.Address); err != nil {
		return h.registrationFailed(c, err)
	}

	// For security, do not return the password hash
	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// HandleRegisterStaff registers a new staff member.
func (h *AuthHandler) HandleRegisterStaff(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, req); !ok {
		return err
	}

	user := req.user()
	if err := h.authService.RegisterStaff(c.UserContext(), user, req.Title); err != nil {
		return h.registrationFailed(c, err)
	}
	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Staff registered successfully",
		"user":    user,
	})
}

func (h *AuthHandler) registrationFailed(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrUserExists) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Registration failed",
			"error":   err.Error(),
		})
	}
	return respondError(c, h.log, "Could not register user", err)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, req); !ok {
		return err
	}

	token, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password)
	if err != nil {
		h.log.Debug("login failed", zap.String("username", req.Username), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication failed",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}

// ChangePasswordRequest represents the request body for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// HandleChangePassword changes the password of the logged in user.
func (h *AuthHandler) HandleChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, req); !ok {
		return err
	}

	actor, _ := session.FromContext(c.UserContext())
	if err := h.authService.ChangePassword(c.UserContext(), actor.CurrentActorID(), req.OldPassword, req.NewPassword); err != nil {
		return respondError(c, h.log, "Could not change password", err)
	}
	return c.JSON(fiber.Map{"message": "Password changed"})
}

// HandleUpdateProfile updates the contact details of a user.
func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var req services.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, req); !ok {
		return err
	}

	user, err := h.authService.UpdateProfile(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.log, "Could not update profile", err)
	}
	return c.JSON(user)
}
