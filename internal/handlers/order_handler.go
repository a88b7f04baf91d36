package handlers

import (
	"sewabaju/internal/models"
	"sewabaju/internal/services"
	"sewabaju/internal/session"
	"sewabaju/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for rental orders.
type OrderHandler struct {
	service  *services.RentalService
	validate *validator.Validate
	log      *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.RentalService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validation.New(),
		log:      log,
	}
}

// RegisterRoutes registers the order routes. staff guards the staff-only routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, staff fiber.Handler) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/overdue", staff, h.HandleListOverdue)
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Get("/:id/summary", h.HandleOrderSummary)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Post("/:id/confirm", staff, h.HandleConfirmOrder)
	orderRoutes.Post("/:id/start", staff, h.HandleStartRental)
	orderRoutes.Post("/:id/return", staff, h.HandleReturn)
}

// CreateOrderRequest is the checkout body. CustomerID is only honoured for staff.
type CreateOrderRequest struct {
	CustomerID string              `json:"customer_id"`
	StartDate  string              `json:"start_date" validate:"required"`
	EndDate    string              `json:"end_date" validate:"required"`
	Lines      []services.CartLine `json:"lines" validate:"required,min=1,dive"`
}

// ReturnRequest is the body of a return.
type ReturnRequest struct {
	ReturnDate string                `json:"return_date" validate:"required"`
	Reports    []services.LineReturn `json:"reports" validate:"required,min=1,dive"`
}

// HandleCreateOrder checks out a cart.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, req); !ok {
		return err
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return respondError(c, h.log, "Invalid start date", err)
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return respondError(c, h.log, "Invalid end date", err)
	}

	actor, _ := session.FromContext(c.UserContext())
	customerID := actor.CurrentActorID()
	if actor.IsStaff() && req.CustomerID != "" {
		customerID = req.CustomerID
	}

	order, err := h.service.CreateOrder(c.UserContext(), customerID, req.Lines, start, end)
	if err != nil {
		return respondError(c, h.log, "Could not create order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListOrders lists the caller's orders. Staff may filter by
// ?status= or ?customer_id=.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	actor, _ := session.FromContext(c.UserContext())
	var (
		orders []models.RentalOrder
		err    error
	)
	switch {
	case actor.IsStaff() && c.Query("status") != "":
		orders, err = h.service.ListOrdersByStatus(c.UserContext(), models.OrderStatus(c.Query("status")))
	case actor.IsStaff() && c.Query("customer_id") != "":
		orders, err = h.service.ListOrdersForCustomer(c.UserContext(), c.Query("customer_id"))
	default:
		orders, err = h.service.ListOrdersForCustomer(c.UserContext(), actor.CurrentActorID())
	}
	if err != nil {
		return respondError(c, h.log, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) HandleListOverdue(c *fiber.Ctx) error {
	orders, err := h.service.ListOverdueOrders(c.UserContext())
	if err != nil {
		return respondError(c, h.log, "Could not retrieve overdue orders", err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleOrderSummary(c *fiber.Ctx) error {
	summary, err := h.service.GetOrderSummary(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve order summary", err)
	}
	return c.JSON(summary)
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	order, err := h.service.CancelOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not cancel order", err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleConfirmOrder(c *fiber.Ctx) error {
	order, err := h.service.ConfirmOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not confirm order", err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleStartRental(c *fiber.Ctx) error {
	order, err := h.service.StartRental(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not start rental", err)
	}
	return c.JSON(order)
}

// HandleReturn processes the return of an active order.
func (h *OrderHandler) HandleReturn(c *fiber.Ctx) error {
	var req ReturnRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if ok, err := validateBody(c, h.validate, req); !ok {
		return err
	}
	returnDate, err := parseDate("return_date", req.ReturnDate)
	if err != nil {
		return respondError(c, h.log, "Invalid return date", err)
	}
	result, err := h.service.ProcessReturn(c.UserContext(), c.Params("id"), returnDate, req.Reports)
	if err != nil {
		return respondError(c, h.log, "Could not process return", err)
	}
	return c.JSON(result)
}
