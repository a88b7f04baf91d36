package handlers

import (
	"errors"
	"time"

	"sewabaju/internal/apperr"
	"sewabaju/internal/services"
	"sewabaju/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps the service error kinds to HTTP statuses.
func statusFor(err error) int {
	var (
		ve  *apperr.ValidationError
		ise *apperr.InsufficientStockError
		ite *apperr.InvalidTransitionError
		pce *apperr.PaymentConflictError
		nfe *apperr.NotFoundError
		fe  *apperr.ForbiddenError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.As(err, &ise), errors.As(err, &ite), errors.As(err, &pce), errors.Is(err, services.ErrUserExists):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.As(err, &nfe):
		return fiber.StatusNotFound
	case errors.As(err, &fe):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with the status its kind maps to. Structured
// details of the expected kinds are included so clients can render them.
func respondError(c *fiber.Ctx, log *zap.Logger, message string, err error) error {
	status := statusFor(err)
	body := fiber.Map{
		"message": message,
		"error":   err.Error(),
	}
	var (
		ve  *apperr.ValidationError
		ise *apperr.InsufficientStockError
		ite *apperr.InvalidTransitionError
	)
	switch {
	case errors.As(err, &ve):
		body["field"] = ve.Field
	case errors.As(err, &ise):
		body["variant_id"] = ise.VariantID
		body["available"] = ise.Available
		body["requested"] = ise.Requested
	case errors.As(err, &ite):
		body["from"] = ite.From
		body["to"] = ite.To
	}
	if status == fiber.StatusInternalServerError {
		log.Error(message, zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(body)
}

// badRequest reports a body that could not be parsed.
func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// validateBody runs struct validation and writes the field errors on failure.
// It reports whether the handler may continue.
func validateBody(c *fiber.Ctx, validate *validator.Validate, body interface{}) (bool, error) {
	if err := validate.Struct(body); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validation.Messages(err),
		})
	}
	return true, nil
}

// parseDate accepts a calendar date in YYYY-MM-DD form.
func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, apperr.Validation(field, "expected a date like 2024-01-31, got %q", value)
	}
	return t, nil
}
