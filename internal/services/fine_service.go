package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sewabaju/internal/apperr"
	"sewabaju/internal/metrics"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/session"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// DefaultLateFeePerDay is charged for every calendar day an order comes back late.
	DefaultLateFeePerDay = decimal.NewFromInt(10000)
	// DefaultLossAmount is suggested when staff record a lost garment without an amount.
	DefaultLossAmount = decimal.NewFromInt(500000)
)

// FineOutcome is the result of trying to create a fine that may already exist.
type FineOutcome int

const (
	FineNotApplicable FineOutcome = iota
	FineCreated
	FineAlreadyExists
)

func (o FineOutcome) String() string {
	switch o {
	case FineCreated:
		return "created"
	case FineAlreadyExists:
		return "already_exists"
	default:
		return "not_applicable"
	}
}

// FineService computes and records fines against rental orders.
type FineService struct {
	store         repositories.Store
	lateFeePerDay decimal.Decimal
	events        eventSink
	log           *zap.Logger
}

// NewFineService creates a new FineService. A non-positive rate falls back to
// DefaultLateFeePerDay.
func NewFineService(store repositories.Store, lateFeePerDay decimal.Decimal, publisher Publisher, log *zap.Logger) *FineService {
	if !lateFeePerDay.IsPositive() {
		lateFeePerDay = DefaultLateFeePerDay
	}
	log = log.Named("fines")
	return &FineService{
		store:         store,
		lateFeePerDay: lateFeePerDay,
		events:        eventSink{pub: publisher, log: log},
		log:           log,
	}
}

// LateFee is the fee for returning on returnDate something due on dueDate.
func (s *FineService) LateFee(returnDate, dueDate time.Time) decimal.Decimal {
	days := DaysBetween(dueDate, returnDate)
	if days <= 0 {
		return decimal.Zero
	}
	return s.lateFeePerDay.Mul(decimal.NewFromInt(int64(days)))
}

// CreateLateFine records the late fee of a returned order. It returns nil
// without error when the order was not late, and a ValidationError when a
// late fine already exists. Staff only.
func (s *FineService) CreateLateFine(ctx context.Context, orderID string) (*models.Fine, error) {
	if _, err := session.RequireStaff(ctx, "create fines"); err != nil {
		return nil, err
	}
	var (
		fine    *models.Fine
		pending pendingEvents
	)
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		outcome, f, err := s.tryCreateLateFine(ctx, tx, order)
		if err != nil {
			return err
		}
		switch outcome {
		case FineAlreadyExists:
			return apperr.Validation("late_fine", "order %s already has a late return fine", orderID)
		case FineCreated:
			fine = f
			pending.add(KeyFineCreated, fineEvent(order, f))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.flush(ctx, pending)
	return fine, nil
}

// tryCreateLateFine is the outcome-typed core of CreateLateFine.
func (s *FineService) tryCreateLateFine(ctx context.Context, tx repositories.Store, order *models.RentalOrder) (FineOutcome, *models.Fine, error) {
	if order.ActualReturnDate == nil {
		return FineNotApplicable, nil, apperr.Validation("actual_return_date", "order %s has not been returned", order.ID)
	}
	days := DaysBetween(order.DueDate(), *order.ActualReturnDate)
	if days <= 0 {
		return FineNotApplicable, nil, nil
	}
	existing, err := tx.Fines().ListByOrder(ctx, order.ID)
	if err != nil {
		return FineNotApplicable, nil, err
	}
	for _, f := range existing {
		if f.Kind == models.FineLateReturn {
			return FineAlreadyExists, &f, nil
		}
	}
	fine := &models.Fine{
		OrderID:     order.ID,
		Kind:        models.FineLateReturn,
		Amount:      s.LateFee(*order.ActualReturnDate, order.DueDate()),
		Description: fmt.Sprintf("Returned %d day(s) late", days),
	}
	// A concurrent retry may win the late fine index between the read above
	// and this insert.
	err = tx.WithinTx(ctx, func(sp repositories.Store) error {
		return sp.Fines().Create(ctx, fine)
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return FineAlreadyExists, nil, nil
	}
	if err != nil {
		return FineNotApplicable, nil, err
	}
	metrics.FinesCreatedTotal.WithLabelValues(string(models.FineLateReturn)).Inc()
	s.log.Info("late fine created", zap.String("order_id", order.ID), zap.Int("days_late", days), zap.String("amount", fine.Amount.String()))
	return FineCreated, fine, nil
}

// CreateDamageFine records a manual damage fine on a returned order. Staff only.
func (s *FineService) CreateDamageFine(ctx context.Context, orderID string, amount decimal.Decimal, description string) (*models.Fine, error) {
	return s.createManualFine(ctx, orderID, models.FineDamage, amount, description)
}

// CreateLossFine records a manual loss fine on a returned order. Staff only.
func (s *FineService) CreateLossFine(ctx context.Context, orderID string, amount decimal.Decimal, description string) (*models.Fine, error) {
	return s.createManualFine(ctx, orderID, models.FineLoss, amount, description)
}

func (s *FineService) createManualFine(ctx context.Context, orderID string, kind models.FineKind, amount decimal.Decimal, description string) (*models.Fine, error) {
	if _, err := session.RequireStaff(ctx, "create fines"); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be greater than 0, got %s", amount)
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperr.Validation("description", "must not be empty")
	}
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusReturned {
		return nil, apperr.Validation("status", "fines can only be added to returned orders, order %s is %s", orderID, order.Status)
	}
	fine := &models.Fine{
		OrderID:     orderID,
		Kind:        kind,
		Amount:      amount,
		Description: strings.TrimSpace(description),
	}
	if err := s.store.Fines().Create(ctx, fine); err != nil {
		return nil, err
	}
	metrics.FinesCreatedTotal.WithLabelValues(string(kind)).Inc()
	var pending pendingEvents
	pending.add(KeyFineCreated, fineEvent(order, fine))
	s.events.flush(ctx, pending)
	return fine, nil
}

// AutoCreateFinesOnReturn creates the late fine and one damage fine per
// damaged line of a returned order. Running it again creates nothing new.
// Staff only.
func (s *FineService) AutoCreateFinesOnReturn(ctx context.Context, orderID string) ([]models.Fine, error) {
	if _, err := session.RequireStaff(ctx, "create fines"); err != nil {
		return nil, err
	}
	var (
		created []models.Fine
		pending pendingEvents
	)
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.StatusReturned {
			return apperr.Validation("status", "order %s is %s, not returned", orderID, order.Status)
		}
		created, err = s.autoCreate(ctx, tx, order, &pending)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.flush(ctx, pending)
	return created, nil
}

// autoCreate runs inside the caller's transaction and returns only the fines
// it created.
func (s *FineService) autoCreate(ctx context.Context, tx repositories.Store, order *models.RentalOrder, pending *pendingEvents) ([]models.Fine, error) {
	var created []models.Fine

	outcome, late, err := s.tryCreateLateFine(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if outcome == FineCreated {
		created = append(created, *late)
		pending.add(KeyFineCreated, fineEvent(order, late))
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		if !line.IsDamaged() {
			continue
		}
		outcome, fine, err := s.tryCreateDamageFine(ctx, tx, order, line)
		if err != nil {
			return nil, err
		}
		if outcome == FineCreated {
			created = append(created, *fine)
			pending.add(KeyFineCreated, fineEvent(order, fine))
		}
	}
	return created, nil
}

// tryCreateDamageFine creates the damage fine of one line, keyed by the line id.
func (s *FineService) tryCreateDamageFine(ctx context.Context, tx repositories.Store, order *models.RentalOrder, line *models.OrderLine) (FineOutcome, *models.Fine, error) {
	existing, err := tx.Fines().ListByOrder(ctx, order.ID)
	if err != nil {
		return FineNotApplicable, nil, err
	}
	for _, f := range existing {
		if f.OrderLineID != nil && *f.OrderLineID == line.ID {
			return FineAlreadyExists, &f, nil
		}
	}
	lineID := line.ID
	description := fmt.Sprintf("Returned %d item(s) %s", line.Quantity, line.ReturnedCondition)
	if line.DamageNotes != "" {
		description += ": " + line.DamageNotes
	}
	fine := &models.Fine{
		OrderID:     order.ID,
		OrderLineID: &lineID,
		Kind:        models.FineDamage,
		Amount:      line.DamageFineAmount(),
		Description: description,
	}
	// A concurrent retry may win the unique (order, line) index; the savepoint
	// keeps the outer transaction usable in that case.
	err = tx.WithinTx(ctx, func(sp repositories.Store) error {
		return sp.Fines().Create(ctx, fine)
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return FineAlreadyExists, nil, nil
	}
	if err != nil {
		return FineNotApplicable, nil, err
	}
	metrics.FinesCreatedTotal.WithLabelValues(string(models.FineDamage)).Inc()
	s.log.Info("damage fine created",
		zap.String("order_id", order.ID),
		zap.String("order_line_id", line.ID),
		zap.String("amount", fine.Amount.String()))
	return FineCreated, fine, nil
}

// ListFinesForOrder returns the fines of an order. Owner or staff.
func (s *FineService) ListFinesForOrder(ctx context.Context, orderID string) ([]models.Fine, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := session.RequireOwnerOrStaff(ctx, order.CustomerID, "view fines"); err != nil {
		return nil, err
	}
	return s.store.Fines().ListByOrder(ctx, orderID)
}

// ListUnpaidFines returns all unpaid fines. Staff only.
func (s *FineService) ListUnpaidFines(ctx context.Context) ([]models.Fine, error) {
	if _, err := session.RequireStaff(ctx, "list unpaid fines"); err != nil {
		return nil, err
	}
	return s.store.Fines().ListUnpaid(ctx)
}

// MarkFinePaid records that a fine has been paid. Staff only.
func (s *FineService) MarkFinePaid(ctx context.Context, fineID string) (*models.Fine, error) {
	actor, err := session.RequireStaff(ctx, "mark fines paid")
	if err != nil {
		return nil, err
	}
	var fine *models.Fine
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if _, err := tx.Fines().GetByID(ctx, fineID); err != nil {
			return err
		}
		if err := tx.Fines().MarkPaid(ctx, fineID, time.Now().UTC()); err != nil {
			if errors.Is(err, repositories.ErrStatusConflict) {
				return apperr.Validation("fine", "fine %s is already paid", fineID)
			}
			return err
		}
		fine, err = tx.Fines().GetByID(ctx, fineID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("fine paid", zap.String("fine_id", fineID), zap.String("staff_id", actor.CurrentActorID()))
	return fine, nil
}

// TotalFines sums every fine of an order. Owner or staff.
func (s *FineService) TotalFines(ctx context.Context, orderID string) (decimal.Decimal, error) {
	fines, err := s.ListFinesForOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumFines(fines, false), nil
}

// TotalUnpaidFines sums the unpaid fines of an order. Owner or staff.
func (s *FineService) TotalUnpaidFines(ctx context.Context, orderID string) (decimal.Decimal, error) {
	fines, err := s.ListFinesForOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumFines(fines, true), nil
}

func sumFines(fines []models.Fine, unpaidOnly bool) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fines {
		if unpaidOnly && f.Paid {
			continue
		}
		total = total.Add(f.Amount)
	}
	return total
}

func fineEvent(order *models.RentalOrder, fine *models.Fine) Event {
	return Event{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		FineID:     fine.ID,
		Status:     string(fine.Kind),
		Amount:     fine.Amount,
	}
}
