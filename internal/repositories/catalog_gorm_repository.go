package repositories

import (
	"context"
	"strings"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMGarmentRepository is a GORM implementation of GarmentRepository.
type GORMGarmentRepository struct {
	db *gorm.DB
}

// NewGORMGarmentRepository creates a new instance of GORMGarmentRepository.
func NewGORMGarmentRepository(db *gorm.DB) *GORMGarmentRepository {
	return &GORMGarmentRepository{db: db}
}

// Create inserts a garment together with its variants.
func (r *GORMGarmentRepository) Create(ctx context.Context, garment *models.Garment) error {
	if garment.ID == "" {
		garment.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Variants").Create(garment).Error; err != nil {
			return apperr.Storage("create garment", err)
		}
		for i := range garment.Variants {
			v := &garment.Variants[i]
			if v.ID == "" {
				v.ID = uuid.New().String()
			}
			v.GarmentID = garment.ID
			if err := tx.Omit("Garment").Create(v).Error; err != nil {
				return apperr.Storage("create variant", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a garment and its variants.
func (r *GORMGarmentRepository) GetByID(ctx context.Context, id string) (*models.Garment, error) {
	var garment models.Garment
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("size") }).
		First(&garment, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, "garment", id, "get garment")
	}
	return &garment, nil
}

// Search matches query against name and description, optionally filtered by category.
func (r *GORMGarmentRepository) Search(ctx context.Context, query, category string) ([]models.Garment, error) {
	q := r.db.WithContext(ctx).Preload("Variants")
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var garments []models.Garment
	if err := q.Order("name").Find(&garments).Error; err != nil {
		return nil, apperr.Storage("search garments", err)
	}
	return garments, nil
}

// Update changes the descriptive fields of a garment. Variants are edited separately.
func (r *GORMGarmentRepository) Update(ctx context.Context, garment *models.Garment) error {
	res := r.db.WithContext(ctx).Model(&models.Garment{}).Where("id = ?", garment.ID).
		Updates(map[string]interface{}{
			"name":        garment.Name,
			"category":    garment.Category,
			"description": garment.Description,
		})
	if res.Error != nil {
		return apperr.Storage("update garment", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("garment", garment.ID)
	}
	return nil
}

// Delete removes the garment and its variants. Callers check that no open
// order still references the variants.
func (r *GORMGarmentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.GarmentVariant{}, "garment_id = ?", id).Error; err != nil {
			return apperr.Storage("delete garment variants", err)
		}
		res := tx.Delete(&models.Garment{}, "id = ?", id)
		if res.Error != nil {
			return apperr.Storage("delete garment", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("garment", id)
		}
		return nil
	})
}

// GORMVariantRepository is a GORM implementation of VariantRepository.
type GORMVariantRepository struct {
	db *gorm.DB
}

// NewGORMVariantRepository creates a new instance of GORMVariantRepository.
func NewGORMVariantRepository(db *gorm.DB) *GORMVariantRepository {
	return &GORMVariantRepository{db: db}
}

// Create inserts a variant for an existing garment.
func (r *GORMVariantRepository) Create(ctx context.Context, variant *models.GarmentVariant) error {
	if variant.ID == "" {
		variant.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Garment").Create(variant).Error; err != nil {
		return duplicateOr(err, "create variant")
	}
	return nil
}

// GetByID retrieves a variant with its garment loaded.
func (r *GORMVariantRepository) GetByID(ctx context.Context, id string) (*models.GarmentVariant, error) {
	var variant models.GarmentVariant
	if err := r.db.WithContext(ctx).Preload("Garment").First(&variant, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "variant", id, "get variant")
	}
	return &variant, nil
}

// Update saves staff edits to a variant.
func (r *GORMVariantRepository) Update(ctx context.Context, variant *models.GarmentVariant) error {
	res := r.db.WithContext(ctx).Model(&models.GarmentVariant{}).Where("id = ?", variant.ID).
		Updates(map[string]interface{}{
			"size":          variant.Size,
			"price_per_day": variant.PricePerDay,
			"stock":         variant.Stock,
			"condition":     variant.Condition,
		})
	if res.Error != nil {
		return apperr.Storage("update variant", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("variant", variant.ID)
	}
	return nil
}

// Delete removes a variant.
func (r *GORMVariantRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.GarmentVariant{}, "id = ?", id)
	if res.Error != nil {
		return apperr.Storage("delete variant", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("variant", id)
	}
	return nil
}

// DecrementStock is a conditional update; the stock check and the write are one statement.
func (r *GORMVariantRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.GarmentVariant{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return apperr.Storage("decrement stock", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStockConflict
	}
	return nil
}

// IncrementStock adds qty back to the variant.
func (r *GORMVariantRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.GarmentVariant{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return apperr.Storage("increment stock", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("variant", id)
	}
	return nil
}

// UpdateCondition sets the catalog condition of a variant.
func (r *GORMVariantRepository) UpdateCondition(ctx context.Context, id string, condition models.Condition) error {
	res := r.db.WithContext(ctx).Model(&models.GarmentVariant{}).
		Where("id = ?", id).
		Update("condition", condition)
	if res.Error != nil {
		return apperr.Storage("update variant condition", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("variant", id)
	}
	return nil
}
