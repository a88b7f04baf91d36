package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/session"
	"sewabaju/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SearchCache caches catalog search results.
type SearchCache interface {
	GetSearch(ctx context.Context, query, category string) ([]models.Garment, bool)
	SetSearch(ctx context.Context, query, category string, garments []models.Garment)
	Invalidate(ctx context.Context)
}

// CatalogService handles business logic related to garments and their variants.
type CatalogService struct {
	store    repositories.Store
	cache    SearchCache
	validate *validator.Validate
	log      *zap.Logger
}

// NewCatalogService creates a new CatalogService. cache may be nil.
func NewCatalogService(store repositories.Store, cache SearchCache, log *zap.Logger) *CatalogService {
	return &CatalogService{
		store:    store,
		cache:    cache,
		validate: validation.New(),
		log:      log.Named("catalog"),
	}
}

// VariantUpdate holds the staff-editable fields of a variant.
type VariantUpdate struct {
	Size        string           `json:"size" validate:"required,max=10"`
	PricePerDay decimal.Decimal  `json:"price_per_day" validate:"gt=0"`
	Stock       int              `json:"stock" validate:"gte=0"`
	Condition   models.Condition `json:"condition" validate:"required,oneof=new good lightly_damaged heavily_damaged"`
}

// GarmentUpdate holds the staff-editable descriptive fields of a garment.
type GarmentUpdate struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Category    string `json:"category" validate:"omitempty,max=50"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

// FindVariant retrieves a variant together with its garment.
func (s *CatalogService) FindVariant(ctx context.Context, variantID string) (*models.GarmentVariant, error) {
	return s.store.Variants().GetByID(ctx, variantID)
}

// IsStockSufficient reports whether the variant currently has qty units.
func (s *CatalogService) IsStockSufficient(ctx context.Context, variantID string, qty int) (bool, error) {
	v, err := s.store.Variants().GetByID(ctx, variantID)
	if err != nil {
		return false, err
	}
	return v.IsStockSufficient(qty), nil
}

// DecrementStock takes qty units out of stock, or fails with InsufficientStockError.
func (s *CatalogService) DecrementStock(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be positive, got %d", qty)
	}
	return decrementStock(ctx, s.store.Variants(), variantID, qty)
}

// IncrementStock puts qty units back into stock.
func (s *CatalogService) IncrementStock(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be positive, got %d", qty)
	}
	return s.store.Variants().IncrementStock(ctx, variantID, qty)
}

// decrementStock relies on the repository's conditional update. On conflict
// the variant is re-read so the error carries the stock seen at that moment.
func decrementStock(ctx context.Context, variants repositories.VariantRepository, variantID string, qty int) error {
	err := variants.DecrementStock(ctx, variantID, qty)
	if !errors.Is(err, repositories.ErrStockConflict) {
		return err
	}
	v, getErr := variants.GetByID(ctx, variantID)
	if getErr != nil {
		return getErr
	}
	return &apperr.InsufficientStockError{
		VariantID: variantID,
		Name:      v.DisplayName(),
		Available: v.Stock,
		Requested: qty,
	}
}

// GetGarment retrieves a garment with all its variants.
func (s *CatalogService) GetGarment(ctx context.Context, id string) (*models.Garment, error) {
	return s.store.Garments().GetByID(ctx, id)
}

// SearchGarments matches query against name and description.
func (s *CatalogService) SearchGarments(ctx context.Context, query, category string) ([]models.Garment, error) {
	if s.cache != nil {
		if garments, ok := s.cache.GetSearch(ctx, query, category); ok {
			return garments, nil
		}
	}
	garments, err := s.store.Garments().Search(ctx, query, category)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetSearch(ctx, query, category, garments)
	}
	return garments, nil
}

// RentableVariants lists the variants of a garment that can be put in a cart now.
func (s *CatalogService) RentableVariants(ctx context.Context, garmentID string) ([]models.GarmentVariant, error) {
	garment, err := s.store.Garments().GetByID(ctx, garmentID)
	if err != nil {
		return nil, err
	}
	rentable := make([]models.GarmentVariant, 0, len(garment.Variants))
	for _, v := range garment.Variants {
		if v.IsRentable() {
			rentable = append(rentable, v)
		}
	}
	return rentable, nil
}

// CreateGarment adds a garment and its variants to the catalog. Staff only.
func (s *CatalogService) CreateGarment(ctx context.Context, garment *models.Garment) error {
	if _, err := session.RequireStaff(ctx, "create garments"); err != nil {
		return err
	}
	if err := s.validate.Struct(garment); err != nil {
		return validationError(err)
	}
	if err := s.store.Garments().Create(ctx, garment); err != nil {
		return fmt.Errorf("failed to create garment %s: %w", garment.Name, err)
	}
	s.invalidate(ctx)
	s.log.Info("garment created", zap.String("garment_id", garment.ID), zap.Int("variants", len(garment.Variants)))
	return nil
}

// UpdateGarment changes the name, category and description of a garment. Staff only.
func (s *CatalogService) UpdateGarment(ctx context.Context, garmentID string, upd GarmentUpdate) (*models.Garment, error) {
	if _, err := session.RequireStaff(ctx, "edit garments"); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(upd); err != nil {
		return nil, validationError(err)
	}
	var garment *models.Garment
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		garment, err = tx.Garments().GetByID(ctx, garmentID)
		if err != nil {
			return err
		}
		garment.Name = upd.Name
		garment.Category = upd.Category
		garment.Description = upd.Description
		return tx.Garments().Update(ctx, garment)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("garment updated", zap.String("garment_id", garmentID))
	return garment, nil
}

// AddVariant adds a new size to an existing garment. A garment holds each
// size once. Staff only.
func (s *CatalogService) AddVariant(ctx context.Context, garmentID string, variant *models.GarmentVariant) error {
	if _, err := session.RequireStaff(ctx, "add variants"); err != nil {
		return err
	}
	if variant.Condition == "" {
		variant.Condition = models.ConditionGood
	}
	if err := s.validate.Struct(variant); err != nil {
		return validationError(err)
	}
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		garment, err := tx.Garments().GetByID(ctx, garmentID)
		if err != nil {
			return err
		}
		for _, existing := range garment.Variants {
			if strings.EqualFold(existing.Size, variant.Size) {
				return apperr.Validation("size", "%s already has size %s", garment.Name, existing.Size)
			}
		}
		variant.ID = ""
		variant.GarmentID = garmentID
		return tx.Variants().Create(ctx, variant)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("variant added", zap.String("garment_id", garmentID), zap.String("variant_id", variant.ID))
	return nil
}

// DeleteGarment removes a garment and its variants when no open order
// references any of them. Staff only.
func (s *CatalogService) DeleteGarment(ctx context.Context, garmentID string) error {
	if _, err := session.RequireStaff(ctx, "delete garments"); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		garment, err := tx.Garments().GetByID(ctx, garmentID)
		if err != nil {
			return err
		}
		for _, v := range garment.Variants {
			if err := ensureUnreferenced(ctx, tx, v.ID); err != nil {
				return err
			}
		}
		return tx.Garments().Delete(ctx, garmentID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("garment deleted", zap.String("garment_id", garmentID))
	return nil
}

// UpdateVariant changes size, price, stock and condition of a variant. Staff only.
// Existing orders keep the price they were created with.
func (s *CatalogService) UpdateVariant(ctx context.Context, variantID string, upd VariantUpdate) (*models.GarmentVariant, error) {
	if _, err := session.RequireStaff(ctx, "edit variants"); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(upd); err != nil {
		return nil, validationError(err)
	}
	v, err := s.store.Variants().GetByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	v.Size = upd.Size
	v.PricePerDay = upd.PricePerDay
	v.Stock = upd.Stock
	v.Condition = upd.Condition
	if err := s.store.Variants().Update(ctx, v); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return v, nil
}

// DeleteVariant removes a variant that no open order references. Staff only.
func (s *CatalogService) DeleteVariant(ctx context.Context, variantID string) error {
	if _, err := session.RequireStaff(ctx, "delete variants"); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if _, err := tx.Variants().GetByID(ctx, variantID); err != nil {
			return err
		}
		if err := ensureUnreferenced(ctx, tx, variantID); err != nil {
			return err
		}
		return tx.Variants().Delete(ctx, variantID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ensureUnreferenced fails when an order that is not yet returned or
// cancelled still holds the variant.
func ensureUnreferenced(ctx context.Context, tx repositories.Store, variantID string) error {
	n, err := tx.Orders().CountActiveLinesForVariant(ctx, variantID)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Validation("variant", "variant %s is still referenced by %d open order lines", variantID, n)
	}
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// validationError turns validator output into a ValidationError naming the first field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return apperr.Validation(e.Namespace(), "failed on the '%s' tag", e.Tag())
	}
	return apperr.Validation("", "%v", err)
}
