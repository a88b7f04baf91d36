package handlers

import (
	"sewabaju/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LoyaltyHandler exposes customer point balances.
type LoyaltyHandler struct {
	service *services.LoyaltyService
	log     *zap.Logger
}

func NewLoyaltyHandler(service *services.LoyaltyService, log *zap.Logger) *LoyaltyHandler {
	return &LoyaltyHandler{service: service, log: log}
}

func (h *LoyaltyHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/customers/:id/points", h.HandleBalance)
}

func (h *LoyaltyHandler) HandleBalance(c *fiber.Ctx) error {
	points, err := h.service.Balance(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve loyalty points", err)
	}
	return c.JSON(fiber.Map{"customer_id": c.Params("id"), "loyalty_points": points})
}
