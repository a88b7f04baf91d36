package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"sewabaju/internal/apperr"
	"sewabaju/internal/metrics"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/session"
	"sewabaju/internal/storage"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// amountTolerance is how far a paid amount may be from the order total.
var amountTolerance = decimal.NewFromFloat(0.01)

// PaymentService links payments to rental orders.
type PaymentService struct {
	store  repositories.Store
	rental *RentalService
	files  storage.FileStorage
	events eventSink
	log    *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(store repositories.Store, rental *RentalService, files storage.FileStorage, publisher Publisher, log *zap.Logger) *PaymentService {
	log = log.Named("payment")
	return &PaymentService{
		store:  store,
		rental: rental,
		files:  files,
		events: eventSink{pub: publisher, log: log},
		log:    log,
	}
}

// PaymentInstructions tells the customer how to pay with method.
func (s *PaymentService) PaymentInstructions(method models.PaymentMethod) (string, error) {
	if !method.Valid() {
		return "", apperr.Validation("method", "unknown payment method %q", method)
	}
	return method.Instructions(), nil
}

// CreatePayment records the payment of an order awaiting payment. Cash is
// approved on the spot and confirms the order in the same transaction; other
// methods need a proof file and wait for staff verification. Owner or staff.
func (s *PaymentService) CreatePayment(ctx context.Context, orderID string, method models.PaymentMethod, amount decimal.Decimal, proof *storage.Upload) (*models.Payment, error) {
	if !method.Valid() {
		return nil, apperr.Validation("method", "unknown payment method %q", method)
	}
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	actor, err := session.RequireOwnerOrStaff(ctx, order.CustomerID, "pay for this order")
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.Payments().GetByOrderID(ctx, orderID); err == nil {
		return nil, &apperr.PaymentConflictError{PaymentID: existing.ID, OrderID: orderID, Reason: "a payment already exists for this order"}
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}
	if order.Status != models.StatusAwaitingPayment {
		return nil, apperr.Validation("status", "order %s is %s, only orders awaiting payment can be paid", orderID, order.Status)
	}
	if amount.Sub(order.TotalPrice).Abs().GreaterThan(amountTolerance) {
		return nil, apperr.Validation("amount", "expected %s, got %s", order.TotalPrice.StringFixed(2), amount.StringFixed(2))
	}
	if method.RequiresProof() || proof != nil {
		if err := storage.ValidateProof(proof); err != nil {
			return nil, err
		}
	}

	var proofRef string
	if proof != nil {
		proofRef, err = s.files.Store(ctx, proof.Filename, bytes.NewReader(proof.Data))
		if err != nil {
			return nil, apperr.Storage("store payment proof", err)
		}
	}

	payment := &models.Payment{
		OrderID:  orderID,
		Method:   method,
		Amount:   amount,
		ProofRef: proofRef,
		Status:   models.PaymentPending,
	}
	var pending pendingEvents
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if method.RequiresProof() {
			return s.insertPayment(ctx, tx, payment)
		}
		now := time.Now().UTC()
		payment.Status = models.PaymentApproved
		payment.VerifiedAt = &now
		if err := s.insertPayment(ctx, tx, payment); err != nil {
			return err
		}
		_, err := s.rental.confirmInTx(ctx, tx, orderID, &pending)
		return err
	})
	if err != nil {
		if proofRef != "" {
			if delErr := s.files.Delete(ctx, proofRef); delErr != nil {
				s.log.Warn("failed to delete orphaned proof", zap.String("proof_ref", proofRef), zap.Error(delErr))
			}
		}
		logFailure(s.log, "create payment", err, zap.String("order_id", orderID))
		return nil, err
	}

	metrics.PaymentsTotal.WithLabelValues(string(payment.Status)).Inc()
	s.log.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", orderID),
		zap.String("method", string(method)),
		zap.String("status", string(payment.Status)))
	var created pendingEvents
	created.add(KeyPaymentCreated, paymentEvent(order, payment, actor.CurrentActorID()))
	if payment.Status == models.PaymentApproved {
		created.add(KeyPaymentApproved, paymentEvent(order, payment, actor.CurrentActorID()))
	}
	s.events.flush(ctx, append(created, pending...))
	return payment, nil
}

func (s *PaymentService) insertPayment(ctx context.Context, tx repositories.Store, payment *models.Payment) error {
	err := tx.Payments().Create(ctx, payment)
	if errors.Is(err, repositories.ErrDuplicate) {
		return &apperr.PaymentConflictError{OrderID: payment.OrderID, Reason: "a payment already exists for this order"}
	}
	return err
}

// ApprovePayment accepts a pending payment and confirms its order. staffID
// must be the staff member in ctx.
func (s *PaymentService) ApprovePayment(ctx context.Context, paymentID, staffID string) (*models.Payment, error) {
	return s.verify(ctx, paymentID, staffID, models.PaymentApproved)
}

// RejectPayment turns down a pending payment. The order keeps waiting for
// payment so the customer can upload a new proof.
func (s *PaymentService) RejectPayment(ctx context.Context, paymentID, staffID string) (*models.Payment, error) {
	return s.verify(ctx, paymentID, staffID, models.PaymentRejected)
}

func (s *PaymentService) verify(ctx context.Context, paymentID, staffID string, status models.PaymentStatus) (*models.Payment, error) {
	action := "approve payments"
	if status == models.PaymentRejected {
		action = "reject payments"
	}
	actor, err := session.RequireStaff(ctx, action)
	if err != nil {
		return nil, err
	}
	if staffID != actor.CurrentActorID() {
		return nil, &apperr.ForbiddenError{ActorID: actor.CurrentActorID(), Action: action + " on behalf of " + staffID}
	}

	var (
		payment *models.Payment
		order   *models.RentalOrder
		pending pendingEvents
	)
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		payment, err = tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentPending {
			return notPending(payment, status)
		}
		if err := tx.Payments().Verify(ctx, paymentID, status, staffID, time.Now().UTC()); err != nil {
			if errors.Is(err, repositories.ErrStatusConflict) {
				return notPending(payment, status)
			}
			return err
		}
		if status == models.PaymentApproved {
			order, err = s.rental.confirmInTx(ctx, tx, payment.OrderID, &pending)
		} else {
			order, err = tx.Orders().GetByID(ctx, payment.OrderID)
		}
		if err != nil {
			return err
		}
		payment, err = tx.Payments().GetByID(ctx, paymentID)
		return err
	})
	if err != nil {
		logFailure(s.log, string(status)+" payment", err, zap.String("payment_id", paymentID))
		return nil, err
	}

	metrics.PaymentsTotal.WithLabelValues(string(status)).Inc()
	key := KeyPaymentApproved
	if status == models.PaymentRejected {
		key = KeyPaymentRejected
	}
	s.log.Info("payment verified",
		zap.String("payment_id", paymentID),
		zap.String("order_id", payment.OrderID),
		zap.String("status", string(status)),
		zap.String("staff_id", staffID))
	var verified pendingEvents
	verified.add(key, paymentEvent(order, payment, staffID))
	s.events.flush(ctx, append(verified, pending...))
	return payment, nil
}

func notPending(p *models.Payment, target models.PaymentStatus) error {
	verb := "approved"
	if target == models.PaymentRejected {
		verb = "rejected"
	}
	return &apperr.PaymentConflictError{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Reason:    fmt.Sprintf("only pending payments can be %s, this one is %s", verb, p.Status),
	}
}

// ReUploadProof replaces the proof of a rejected payment and sends it back
// for verification. The previous proof file is deleted. Owner or staff.
func (s *PaymentService) ReUploadProof(ctx context.Context, paymentID string, proof *storage.Upload) (*models.Payment, error) {
	payment, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.Orders().GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	actor, err := session.RequireOwnerOrStaff(ctx, order.CustomerID, "re-upload payment proof")
	if err != nil {
		s.log.Warn("unauthorized proof re-upload", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, err
	}
	if payment.Status != models.PaymentRejected {
		return nil, &apperr.PaymentConflictError{
			PaymentID: paymentID,
			OrderID:   payment.OrderID,
			Reason:    fmt.Sprintf("proof can only be re-uploaded for rejected payments, this one is %s", payment.Status),
		}
	}
	if err := storage.ValidateProof(proof); err != nil {
		return nil, err
	}

	oldRef := payment.ProofRef
	newRef, err := s.files.Store(ctx, proof.Filename, bytes.NewReader(proof.Data))
	if err != nil {
		return nil, apperr.Storage("store payment proof", err)
	}
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Payments().ReplaceProof(ctx, paymentID, newRef); err != nil {
			if errors.Is(err, repositories.ErrStatusConflict) {
				return &apperr.PaymentConflictError{PaymentID: paymentID, OrderID: payment.OrderID, Reason: "payment is no longer rejected"}
			}
			return err
		}
		var err error
		payment, err = tx.Payments().GetByID(ctx, paymentID)
		return err
	})
	if err != nil {
		if delErr := s.files.Delete(ctx, newRef); delErr != nil {
			s.log.Warn("failed to delete orphaned proof", zap.String("proof_ref", newRef), zap.Error(delErr))
		}
		logFailure(s.log, "re-upload proof", err, zap.String("payment_id", paymentID))
		return nil, err
	}

	if oldRef != "" {
		if err := s.files.Delete(ctx, oldRef); err != nil {
			s.log.Warn("failed to delete previous proof", zap.String("proof_ref", oldRef), zap.Error(err))
		}
	}

	metrics.PaymentsTotal.WithLabelValues(string(payment.Status)).Inc()
	s.log.Info("payment proof re-uploaded", zap.String("payment_id", paymentID), zap.String("order_id", payment.OrderID))
	var pending pendingEvents
	pending.add(KeyPaymentProofReuploaded, paymentEvent(order, payment, actor.CurrentActorID()))
	s.events.flush(ctx, pending)
	return payment, nil
}

// GetPayment retrieves a payment. Owner or staff.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOrderAccess(ctx, payment.OrderID, "view this payment"); err != nil {
		return nil, err
	}
	return payment, nil
}

// OpenProof returns the proof file of a payment. The caller closes it.
// Owner or staff.
func (s *PaymentService) OpenProof(ctx context.Context, paymentID string) (io.ReadCloser, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.ProofRef == "" {
		return nil, apperr.NotFound("payment proof", paymentID)
	}
	f, err := s.files.Open(ctx, payment.ProofRef)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("payment proof file is missing", zap.String("payment_id", paymentID), zap.String("proof_ref", payment.ProofRef))
		return nil, apperr.NotFound("payment proof", paymentID)
	}
	if err != nil {
		return nil, apperr.Storage("open payment proof", err)
	}
	return f, nil
}

// GetPaymentForOrder retrieves the payment of an order. Owner or staff.
func (s *PaymentService) GetPaymentForOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	if err := s.requireOrderAccess(ctx, orderID, "view this payment"); err != nil {
		return nil, err
	}
	return s.store.Payments().GetByOrderID(ctx, orderID)
}

// ListPendingPayments returns payments waiting for verification. Staff only.
func (s *PaymentService) ListPendingPayments(ctx context.Context) ([]models.Payment, error) {
	if _, err := session.RequireStaff(ctx, "list pending payments"); err != nil {
		return nil, err
	}
	return s.store.Payments().ListByStatus(ctx, models.PaymentPending)
}

func (s *PaymentService) requireOrderAccess(ctx context.Context, orderID, action string) error {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	_, err = session.RequireOwnerOrStaff(ctx, order.CustomerID, action)
	return err
}

func paymentEvent(order *models.RentalOrder, payment *models.Payment, actorID string) Event {
	return Event{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		PaymentID:  payment.ID,
		Status:     string(payment.Status),
		Amount:     payment.Amount,
		ActorID:    actorID,
	}
}
