package middleware

import (
	"strings"

	"sewabaju/internal/services"
	"sewabaju/internal/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token. The
// actor named by the token is placed in the request's user context.
func AuthRequired(authService *services.AuthService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			log.Debug("JWT validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		actor, err := authService.ActorFromClaims(c.UserContext(), claims)
		if err != nil {
			log.Debug("JWT names an unknown actor", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		// Keep the claims in Locals for handlers that only need the ids.
		c.Locals("user_id", actor.CurrentActorID())
		c.Locals("username", claims["username"])
		c.SetUserContext(session.WithActor(c.UserContext(), actor))

		return c.Next()
	}
}

// StaffOnly rejects requests whose actor is not staff. It must run after AuthRequired.
func StaffOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := session.FromContext(c.UserContext())
		if !ok || !actor.IsStaff() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Staff access required",
			})
		}
		return c.Next()
	}
}
