package handlers

import (
	"sewabaju/internal/middleware"
	"sewabaju/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth     *services.AuthService
	Catalog  *services.CatalogService
	Rental   *services.RentalService
	Payments *services.PaymentService
	Fines    *services.FineService
	Loyalty  *services.LoyaltyService
}

// Mount registers the public and authenticated API routes under router.
func Mount(router fiber.Router, svc Services, log *zap.Logger) {
	authHandler := NewAuthHandler(svc.Auth, log)
	authHandler.RegisterRoutes(router)

	protected := router.Group("", middleware.AuthRequired(svc.Auth, log))
	staff := middleware.StaffOnly()

	authHandler.RegisterAccountRoutes(protected, staff)
	NewCatalogHandler(svc.Catalog, log).RegisterRoutes(protected, staff)
	NewOrderHandler(svc.Rental, log).RegisterRoutes(protected, staff)
	NewPaymentHandler(svc.Payments, log).RegisterRoutes(protected, staff)
	NewFineHandler(svc.Fines, log).RegisterRoutes(protected, staff)
	NewLoyaltyHandler(svc.Loyalty, log).RegisterRoutes(protected)
}
