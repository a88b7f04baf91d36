package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/session"
	"sewabaju/internal/validation"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists is returned when a username or email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned for any failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const minPasswordLen = 6

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	store      repositories.Store
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
	validate   *validator.Validate
	log        *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(store repositories.Store, jwtSecret string, log *zap.Logger) *AuthService {
	return &AuthService{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour, // Token valid for 24 hours
		validate:   validation.New(),
		log:        log.Named("auth"),
	}
}

// RegisterCustomer registers a customer account with an empty loyalty balance.
func (s *AuthService) RegisterCustomer(ctx context.Context, user *models.User, address string) error {
	user.Role = models.RoleCustomer
	return s.register(ctx, user, func(tx repositories.Store) error {
		return tx.Customers().Create(ctx, &models.Customer{UserID: user.ID, Address: address})
	})
}

// RegisterStaff registers a staff account. Staff only.
func (s *AuthService) RegisterStaff(ctx context.Context, user *models.User, title string) error {
	if _, err := session.RequireStaff(ctx, "register staff"); err != nil {
		return err
	}
	return s.registerStaff(ctx, user, title)
}

// EnsureStaff creates the given staff account unless the username is taken.
// It is used at startup to bootstrap the first staff member.
func (s *AuthService) EnsureStaff(ctx context.Context, user *models.User, title string) error {
	if _, err := s.store.Users().GetByUsername(ctx, user.Username); err == nil {
		return nil
	} else if !apperr.IsNotFound(err) {
		return err
	}
	return s.registerStaff(ctx, user, title)
}

func (s *AuthService) registerStaff(ctx context.Context, user *models.User, title string) error {
	user.Role = models.RoleStaff
	return s.register(ctx, user, func(tx repositories.Store) error {
		return tx.Users().CreateStaff(ctx, &models.Staff{UserID: user.ID, Title: title})
	})
}

// register hashes the password and saves the user and its profile together.
func (s *AuthService) register(ctx context.Context, user *models.User, createProfile func(tx repositories.Store) error) error {
	// Check if username or email already exists
	if err := s.checkAvailable(ctx, user); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		return createProfile(tx)
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return fmt.Errorf("username '%s' or email '%s' already registered: %w", user.Username, user.Email, ErrUserExists)
	}
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

func (s *AuthService) checkAvailable(ctx context.Context, user *models.User) error {
	if _, err := s.store.Users().GetByUsername(ctx, user.Username); err == nil {
		return fmt.Errorf("username '%s' already taken: %w", user.Username, ErrUserExists)
	} else if !apperr.IsNotFound(err) {
		return err
	}
	if _, err := s.store.Users().GetByEmail(ctx, user.Email); err == nil {
		return fmt.Errorf("email '%s' already registered: %w", user.Email, ErrUserExists)
	} else if !apperr.IsNotFound(err) {
		return err
	}
	return nil
}

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if !apperr.IsNotFound(err) {
			s.log.Error("login lookup failed", zap.String("username", username), zap.Error(err))
		}
		// Unknown usernames and wrong passwords look the same to the caller.
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      now.Add(s.tokenDurat).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ChangePassword replaces the password of userID after checking the current
// one. Only the account owner may change it.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	actor, ok := session.FromContext(ctx)
	if !ok || actor.CurrentActorID() != userID {
		return &apperr.ForbiddenError{ActorID: actorID(actor), Action: "change password"}
	}
	if len(newPassword) < minPasswordLen {
		return apperr.Validation("new_password", "must be at least %d characters", minPasswordLen)
	}
	if newPassword == oldPassword {
		return apperr.Validation("new_password", "must differ from the current password")
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	s.log.Info("password changed", zap.String("user_id", userID))
	return nil
}

// ProfileUpdate carries the editable contact details of a user. Address is
// only stored for customers.
type ProfileUpdate struct {
	FullName string `json:"full_name" validate:"required,max=150"`
	Phone    string `json:"phone" validate:"omitempty,max=20,numeric"`
	Address  string `json:"address" validate:"omitempty,max=255"`
}

// UpdateProfile replaces the contact details of userID. The owner or staff may
// update it.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	if _, err := session.RequireOwnerOrStaff(ctx, userID, "update profile"); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(upd); err != nil {
		return nil, validationError(err)
	}

	var user *models.User
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		if user, err = tx.Users().GetByID(ctx, userID); err != nil {
			return err
		}
		if err := tx.Users().UpdateProfile(ctx, userID, upd.FullName, upd.Phone); err != nil {
			return err
		}
		if user.Role == models.RoleCustomer {
			if err := tx.Customers().UpdateAddress(ctx, userID, upd.Address); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.FullName, user.Phone = upd.FullName, upd.Phone
	user.Password = ""
	return user, nil
}

func actorID(actor session.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.CurrentActorID()
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// ActorFromClaims loads the staff or customer profile named by validated claims.
func (s *AuthService) ActorFromClaims(ctx context.Context, claims jwt.MapClaims) (session.Actor, error) {
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("invalid token: missing user_id")
	}
	switch role, _ := claims["role"].(string); models.Role(role) {
	case models.RoleStaff:
		staff, err := s.store.Users().GetStaff(ctx, userID)
		if err != nil {
			return nil, err
		}
		return session.StaffActor{ID: userID, Title: staff.Title}, nil
	case models.RoleCustomer:
		c, err := s.store.Customers().GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return session.CustomerActor{ID: userID, Address: c.Address, Points: c.LoyaltyPoints}, nil
	default:
		return nil, fmt.Errorf("invalid token: unknown role %q", role)
	}
}
