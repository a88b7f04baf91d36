package handlers

import (
	"sewabaju/internal/models"
	"sewabaju/internal/services"
	"sewabaju/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CatalogHandler handles HTTP requests for garments and variants.
type CatalogHandler struct {
	service  *services.CatalogService
	validate *validator.Validate
	log      *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(service *services.CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		service:  service,
		validate: validation.New(),
		log:      log,
	}
}

// RegisterRoutes registers the catalog routes. staff guards the edit routes.
func (h *CatalogHandler) RegisterRoutes(router fiber.Router, staff fiber.Handler) {
	garments := router.Group("/garments")
	garments.Get("/", h.HandleSearchGarments)
	garments.Get("/:id", h.HandleGetGarment)
	garments.Get("/:id/variants", h.HandleRentableVariants)
	garments.Post("/", staff, h.HandleCreateGarment)
	garments.Put("/:id", staff, h.HandleUpdateGarment)
	garments.Delete("/:id", staff, h.HandleDeleteGarment)
	garments.Post("/:id/variants", staff, h.HandleAddVariant)

	variants := router.Group("/variants")
	variants.Get("/:id", h.HandleGetVariant)
	variants.Put("/:id", staff, h.HandleUpdateVariant)
	variants.Delete("/:id", staff, h.HandleDeleteVariant)
}

// HandleSearchGarments searches by ?q= and ?category=.
func (h *CatalogHandler) HandleSearchGarments(c *fiber.Ctx) error {
	garments, err := h.service.SearchGarments(c.UserContext(), c.Query("q"), c.Query("category"))
	if err != nil {
		return respondError(c, h.log, "Could not search garments", err)
	}
	return c.JSON(garments)
}

func (h *CatalogHandler) HandleGetGarment(c *fiber.Ctx) error {
	garment, err := h.service.GetGarment(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve garment", err)
	}
	return c.JSON(garment)
}

func (h *CatalogHandler) HandleRentableVariants(c *fiber.Ctx) error {
	variants, err := h.service.RentableVariants(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve variants", err)
	}
	return c.JSON(variants)
}

// HandleCreateGarment creates a garment with its variants.
func (h *CatalogHandler) HandleCreateGarment(c *fiber.Ctx) error {
	var garment models.Garment
	if err := c.BodyParser(&garment); err != nil {
		return badRequest(c, err)
	}
	garment.ID = ""
	if ok, err := validateBody(c, h.validate, garment); !ok {
		return err
	}
	if err := h.service.CreateGarment(c.UserContext(), &garment); err != nil {
		return respondError(c, h.log, "Could not create garment", err)
	}
	return c.Status(fiber.StatusCreated).JSON(garment)
}

// HandleUpdateGarment replaces the descriptive fields of a garment.
func (h *CatalogHandler) HandleUpdateGarment(c *fiber.Ctx) error {
	var upd services.GarmentUpdate
	if err := c.BodyParser(&upd); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, upd); !ok {
		return err
	}
	garment, err := h.service.UpdateGarment(c.UserContext(), c.Params("id"), upd)
	if err != nil {
		return respondError(c, h.log, "Could not update garment", err)
	}
	return c.JSON(garment)
}

func (h *CatalogHandler) HandleDeleteGarment(c *fiber.Ctx) error {
	if err := h.service.DeleteGarment(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.log, "Could not delete garment", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleAddVariant adds a size to a garment.
func (h *CatalogHandler) HandleAddVariant(c *fiber.Ctx) error {
	var variant models.GarmentVariant
	if err := c.BodyParser(&variant); err != nil {
		return badRequest(c, err)
	}
	if err := h.service.AddVariant(c.UserContext(), c.Params("id"), &variant); err != nil {
		return respondError(c, h.log, "Could not add variant", err)
	}
	return c.Status(fiber.StatusCreated).JSON(variant)
}

func (h *CatalogHandler) HandleGetVariant(c *fiber.Ctx) error {
	variant, err := h.service.FindVariant(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve variant", err)
	}
	return c.JSON(variant)
}

// HandleUpdateVariant replaces the editable fields of a variant.
func (h *CatalogHandler) HandleUpdateVariant(c *fiber.Ctx) error {
	var upd services.VariantUpdate
	if err := c.BodyParser(&upd); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, upd); !ok {
		return err
	}
	variant, err := h.service.UpdateVariant(c.UserContext(), c.Params("id"), upd)
	if err != nil {
		return respondError(c, h.log, "Could not update variant", err)
	}
	return c.JSON(variant)
}

func (h *CatalogHandler) HandleDeleteVariant(c *fiber.Ctx) error {
	if err := h.service.DeleteVariant(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.log, "Could not delete variant", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
