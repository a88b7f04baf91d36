package handlers

import (
	"fmt"
	"io"

	"sewabaju/internal/apperr"
	"sewabaju/internal/models"
	"sewabaju/internal/services"
	"sewabaju/internal/session"
	"sewabaju/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	service *services.PaymentService
	log     *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, log: log}
}

// RegisterRoutes registers the payment routes. staff guards the verification routes.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router, staff fiber.Handler) {
	router.Post("/orders/:id/payment", h.HandleCreatePayment)
	router.Get("/orders/:id/payment", h.HandleGetOrderPayment)

	payments := router.Group("/payments")
	payments.Get("/pending", staff, h.HandleListPending)
	payments.Get("/instructions/:method", h.HandleInstructions)
	payments.Get("/:id", h.HandleGetPayment)
	payments.Post("/:id/approve", staff, h.HandleApprove)
	payments.Post("/:id/reject", staff, h.HandleReject)
	payments.Get("/:id/proof", h.HandleGetProof)
	payments.Post("/:id/proof", h.HandleReUploadProof)
}

// readUpload reads the optional "proof" multipart file. Reading stops one
// byte past the size limit so oversized files still fail validation.
func readUpload(c *fiber.Ctx) (*storage.Upload, error) {
	fh, err := c.FormFile("proof")
	if err != nil {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded proof: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxProofSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded proof: %w", err)
	}
	return &storage.Upload{Filename: fh.Filename, Data: data}, nil
}

// HandleCreatePayment takes a multipart form with method, amount and an
// optional proof file.
func (h *PaymentHandler) HandleCreatePayment(c *fiber.Ctx) error {
	method := models.PaymentMethod(c.FormValue("method"))
	amount, err := decimal.NewFromString(c.FormValue("amount"))
	if err != nil {
		return respondError(c, h.log, "Invalid amount", apperr.Validation("amount", "expected a number, got %q", c.FormValue("amount")))
	}
	proof, err := readUpload(c)
	if err != nil {
		return badRequest(c, err)
	}
	payment, err := h.service.CreatePayment(c.UserContext(), c.Params("id"), method, amount, proof)
	if err != nil {
		return respondError(c, h.log, "Could not create payment", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment":      payment,
		"instructions": method.Instructions(),
	})
}

func (h *PaymentHandler) HandleGetOrderPayment(c *fiber.Ctx) error {
	payment, err := h.service.GetPaymentForOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve payment", err)
	}
	return c.JSON(payment)
}

// HandleGetProof serves the proof file of a payment.
func (h *PaymentHandler) HandleGetProof(c *fiber.Ctx) error {
	f, err := h.service.OpenProof(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not load payment proof", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxProofSize))
	if err != nil {
		return respondError(c, h.log, "Could not load payment proof", err)
	}
	c.Set(fiber.HeaderContentType, mimetype.Detect(data).String())
	return c.Send(data)
}

func (h *PaymentHandler) HandleGetPayment(c *fiber.Ctx) error {
	payment, err := h.service.GetPayment(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve payment", err)
	}
	return c.JSON(payment)
}

func (h *PaymentHandler) HandleListPending(c *fiber.Ctx) error {
	payments, err := h.service.ListPendingPayments(c.UserContext())
	if err != nil {
		return respondError(c, h.log, "Could not retrieve payments", err)
	}
	return c.JSON(payments)
}

func (h *PaymentHandler) HandleInstructions(c *fiber.Ctx) error {
	text, err := h.service.PaymentInstructions(models.PaymentMethod(c.Params("method")))
	if err != nil {
		return respondError(c, h.log, "Unknown payment method", err)
	}
	return c.JSON(fiber.Map{"method": c.Params("method"), "instructions": text})
}

// HandleApprove approves a pending payment as the calling staff member.
func (h *PaymentHandler) HandleApprove(c *fiber.Ctx) error {
	actor, _ := session.FromContext(c.UserContext())
	payment, err := h.service.ApprovePayment(c.UserContext(), c.Params("id"), actor.CurrentActorID())
	if err != nil {
		return respondError(c, h.log, "Could not approve payment", err)
	}
	return c.JSON(payment)
}

// HandleReject rejects a pending payment as the calling staff member.
func (h *PaymentHandler) HandleReject(c *fiber.Ctx) error {
	actor, _ := session.FromContext(c.UserContext())
	payment, err := h.service.RejectPayment(c.UserContext(), c.Params("id"), actor.CurrentActorID())
	if err != nil {
		return respondError(c, h.log, "Could not reject payment", err)
	}
	return c.JSON(payment)
}

// HandleReUploadProof replaces the proof of a rejected payment.
func (h *PaymentHandler) HandleReUploadProof(c *fiber.Ctx) error {
	proof, err := readUpload(c)
	if err != nil {
		return badRequest(c, err)
	}
	payment, err := h.service.ReUploadProof(c.UserContext(), c.Params("id"), proof)
	if err != nil {
		return respondError(c, h.log, "Could not re-upload proof", err)
	}
	return c.JSON(payment)
}
