package handlers

import (
	"sewabaju/internal/models"
	"sewabaju/internal/services"
	"sewabaju/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FineHandler handles HTTP requests for fines.
type FineHandler struct {
	service  *services.FineService
	validate *validator.Validate
	log      *zap.Logger
}

// NewFineHandler creates a new FineHandler.
func NewFineHandler(service *services.FineService, log *zap.Logger) *FineHandler {
	return &FineHandler{service: service, validate: validation.New(), log: log}
}

// RegisterRoutes registers the fine routes. staff guards everything but reads.
func (h *FineHandler) RegisterRoutes(router fiber.Router, staff fiber.Handler) {
	router.Get("/orders/:id/fines", h.HandleListForOrder)
	router.Get("/orders/:id/fines/total", h.HandleTotals)
	router.Post("/orders/:id/fines", staff, h.HandleCreateFine)
	router.Post("/orders/:id/fines/auto", staff, h.HandleAutoCreate)

	fines := router.Group("/fines", staff)
	fines.Get("/unpaid", h.HandleListUnpaid)
	fines.Post("/:id/pay", h.HandleMarkPaid)
}

// CreateFineRequest is the body of a manual fine. A loss fine without an
// amount defaults to services.DefaultLossAmount.
type CreateFineRequest struct {
	Kind        models.FineKind  `json:"kind" validate:"required,oneof=damage loss"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description" validate:"required,max=500"`
}

func (h *FineHandler) HandleListForOrder(c *fiber.Ctx) error {
	fines, err := h.service.ListFinesForOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve fines", err)
	}
	return c.JSON(fines)
}

// HandleTotals returns the fine total and the unpaid balance of an order.
func (h *FineHandler) HandleTotals(c *fiber.Ctx) error {
	total, err := h.service.TotalFines(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not total fines", err)
	}
	unpaid, err := h.service.TotalUnpaidFines(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not total fines", err)
	}
	return c.JSON(fiber.Map{
		"order_id": c.Params("id"),
		"total":    total,
		"unpaid":   unpaid,
	})
}

// HandleCreateFine records a damage or loss fine.
func (h *FineHandler) HandleCreateFine(c *fiber.Ctx) error {
	var req CreateFineRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, req); !ok {
		return err
	}
	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	} else if req.Kind == models.FineLoss {
		amount = services.DefaultLossAmount
	}

	var (
		fine *models.Fine
		err  error
	)
	if req.Kind == models.FineLoss {
		fine, err = h.service.CreateLossFine(c.UserContext(), c.Params("id"), amount, req.Description)
	} else {
		fine, err = h.service.CreateDamageFine(c.UserContext(), c.Params("id"), amount, req.Description)
	}
	if err != nil {
		return respondError(c, h.log, "Could not create fine", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fine)
}

// HandleAutoCreate re-runs automatic fine creation for a returned order.
func (h *FineHandler) HandleAutoCreate(c *fiber.Ctx) error {
	fines, err := h.service.AutoCreateFinesOnReturn(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not create fines", err)
	}
	if fines == nil {
		fines = []models.Fine{}
	}
	return c.JSON(fiber.Map{"created": fines})
}

func (h *FineHandler) HandleListUnpaid(c *fiber.Ctx) error {
	fines, err := h.service.ListUnpaidFines(c.UserContext())
	if err != nil {
		return respondError(c, h.log, "Could not retrieve fines", err)
	}
	return c.JSON(fines)
}

func (h *FineHandler) HandleMarkPaid(c *fiber.Ctx) error {
	fine, err := h.service.MarkFinePaid(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not mark fine paid", err)
	}
	return c.JSON(fine)
}
