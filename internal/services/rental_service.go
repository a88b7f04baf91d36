package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sewabaju/internal/apperr"
	"sewabaju/internal/metrics"
	"sewabaju/internal/models"
	"sewabaju/internal/repositories"
	"sewabaju/internal/session"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultMaxRentalDays is the longest rental span accepted at checkout.
const DefaultMaxRentalDays = 30

// CartLine is one variant and quantity a customer wants to rent.
type CartLine struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// LineReturn is the condition report for one order line.
type LineReturn struct {
	LineID    string           `json:"line_id" validate:"required"`
	Condition models.Condition `json:"condition" validate:"required,oneof=new good lightly_damaged heavily_damaged"`
	Notes     string           `json:"notes" validate:"max=500"`
}

// ReturnResult is what ProcessReturn did besides returning the order.
type ReturnResult struct {
	Order         *models.RentalOrder `json:"order"`
	Fines         []models.Fine       `json:"fines"`
	PointsAwarded int                 `json:"points_awarded"`
}

// OrderSummary is an order together with everything that is owed on it.
type OrderSummary struct {
	Order          *models.RentalOrder `json:"order"`
	Payment        *models.Payment     `json:"payment,omitempty"`
	Fines          []models.Fine       `json:"fines"`
	TotalFines     decimal.Decimal     `json:"total_fines"`
	UnpaidFines    decimal.Decimal     `json:"unpaid_fines"`
	RunningLateFee decimal.Decimal     `json:"running_late_fee"`
	Outstanding    decimal.Decimal     `json:"outstanding"`
}

// RentalService drives rental orders through their lifecycle.
type RentalService struct {
	store   repositories.Store
	fines   *FineService
	loyalty *LoyaltyService
	events  eventSink
	cache   SearchCache
	today   Clock
	maxDays int
	log     *zap.Logger
}

// NewRentalService creates a new RentalService. cache may be nil; when set,
// catalog searches are invalidated whenever an order moves stock.
func NewRentalService(store repositories.Store, fines *FineService, loyalty *LoyaltyService, publisher Publisher, cache SearchCache, today Clock, maxDays int, log *zap.Logger) *RentalService {
	if today == nil {
		today = NewClock(time.UTC)
	}
	if maxDays < 1 {
		maxDays = DefaultMaxRentalDays
	}
	log = log.Named("rental")
	return &RentalService{
		store:   store,
		fines:   fines,
		loyalty: loyalty,
		events:  eventSink{pub: publisher, log: log},
		cache:   cache,
		today:   today,
		maxDays: maxDays,
		log:     log,
	}
}

// validateRentalPeriod normalizes the dates and returns the rental length in days.
func (s *RentalService) validateRentalPeriod(start, end time.Time) (time.Time, time.Time, int, error) {
	if start.IsZero() {
		return start, end, 0, apperr.Validation("start_date", "start date is required")
	}
	if end.IsZero() {
		return start, end, 0, apperr.Validation("end_date", "end date is required")
	}
	start, end = DateOf(start), DateOf(end)
	if !end.After(start) {
		return start, end, 0, apperr.Validation("end_date", "end date %s must be after start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if start.Before(s.today()) {
		return start, end, 0, apperr.Validation("start_date", "start date %s is in the past", start.Format(time.DateOnly))
	}
	days := DaysBetween(start, end)
	if days < 1 || days > s.maxDays {
		return start, end, 0, apperr.Validation("rental_days", "rental must last between 1 and %d days, got %d", s.maxDays, days)
	}
	return start, end, days, nil
}

// CreateOrder checks out a cart into a new order awaiting payment. Stock of
// every line is checked before anything is written; the order, its lines
// and the stock decrements commit together or not at all.
func (s *RentalService) CreateOrder(ctx context.Context, customerID string, cart []CartLine, startDate, endDate time.Time) (*models.RentalOrder, error) {
	if _, err := session.RequireOwnerOrStaff(ctx, customerID, "create orders"); err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, apperr.Validation("lines", "cart is empty")
	}
	requested := make(map[string]int, len(cart))
	for i, l := range cart {
		if l.VariantID == "" {
			return nil, apperr.Validation(fmt.Sprintf("lines[%d].variant_id", i), "variant is required")
		}
		if l.Quantity <= 0 {
			return nil, apperr.Validation(fmt.Sprintf("lines[%d].quantity", i), "quantity must be positive, got %d", l.Quantity)
		}
		requested[l.VariantID] += l.Quantity
	}
	start, end, days, err := s.validateRentalPeriod(startDate, endDate)
	if err != nil {
		return nil, err
	}

	order := &models.RentalOrder{
		CustomerID: customerID,
		StartDate:  start,
		EndDate:    end,
		Status:     models.StatusAwaitingPayment,
	}
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if _, err := tx.Customers().GetByID(ctx, customerID); err != nil {
			return err
		}

		// Check everything first.
		variants := make(map[string]*models.GarmentVariant, len(requested))
		for i, l := range cart {
			v, ok := variants[l.VariantID]
			if !ok {
				fetched, err := tx.Variants().GetByID(ctx, l.VariantID)
				if err != nil {
					return err
				}
				v = fetched
				variants[l.VariantID] = v
			}
			if !v.Condition.IsRentable() {
				return apperr.Validation(fmt.Sprintf("lines[%d].variant_id", i), "%s is %s and cannot be rented", v.DisplayName(), v.Condition)
			}
			if !v.IsStockSufficient(requested[l.VariantID]) {
				return &apperr.InsufficientStockError{
					VariantID: v.ID,
					Name:      v.DisplayName(),
					Available: v.Stock,
					Requested: requested[l.VariantID],
				}
			}
		}

		total := decimal.Zero
		order.Lines = make([]models.OrderLine, len(cart))
		for i, l := range cart {
			line := &order.Lines[i]
			line.VariantID = l.VariantID
			line.Quantity = l.Quantity
			line.Price(variants[l.VariantID].PricePerDay, days)
			total = total.Add(line.Subtotal)
		}
		order.TotalPrice = total

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		for _, line := range order.Lines {
			if err := decrementStock(ctx, tx.Variants(), line.VariantID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure("create order", err, zap.String("customer_id", customerID))
		return nil, err
	}

	s.stockChanged(ctx)
	metrics.OrdersCreatedTotal.Inc()
	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customerID),
		zap.Int("lines", len(order.Lines)),
		zap.String("total", order.TotalPrice.String()))
	var pending pendingEvents
	pending.add(KeyOrderCreated, orderEvent(order, ""))
	s.events.flush(ctx, pending)
	return order, nil
}

// transition moves order along the state machine inside tx. The stored status
// is compared and swapped, so a concurrent change makes this fail with
// InvalidTransitionError from whatever status the row is in now.
func transition(ctx context.Context, tx repositories.Store, order *models.RentalOrder, event OrderEvent) error {
	next, err := NextStatus(order.Status, event)
	if err != nil {
		return err
	}
	err = tx.Orders().CompareAndSetStatus(ctx, order.ID, order.Status, next)
	if errors.Is(err, repositories.ErrStatusConflict) {
		current, getErr := tx.Orders().GetByID(ctx, order.ID)
		if getErr != nil {
			return getErr
		}
		return &apperr.InvalidTransitionError{From: string(current.Status), To: string(next)}
	}
	if err != nil {
		return err
	}
	order.Status = next
	metrics.OrderTransitionsTotal.WithLabelValues(string(next)).Inc()
	return nil
}

// CancelOrder cancels an order that is still awaiting payment and puts its
// stock back. Owner or staff.
func (s *RentalService) CancelOrder(ctx context.Context, orderID string) (*models.RentalOrder, error) {
	var (
		order   *models.RentalOrder
		pending pendingEvents
	)
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		actor, err := session.RequireOwnerOrStaff(ctx, order.CustomerID, "cancel this order")
		if err != nil {
			return err
		}
		if order.Status != models.StatusAwaitingPayment {
			return &apperr.InvalidTransitionError{From: string(order.Status), To: string(models.StatusCancelled)}
		}
		if err := transition(ctx, tx, order, EventCancel); err != nil {
			return err
		}
		for _, line := range order.Lines {
			if err := tx.Variants().IncrementStock(ctx, line.VariantID, line.Quantity); err != nil {
				return err
			}
		}
		pending.add(KeyOrderCancelled, orderEvent(order, actor.CurrentActorID()))
		return nil
	})
	if err != nil {
		s.logFailure("cancel order", err, zap.String("order_id", orderID))
		return nil, err
	}
	s.stockChanged(ctx)
	s.log.Info("order cancelled", zap.String("order_id", orderID))
	s.events.flush(ctx, pending)
	return order, nil
}

// ConfirmOrder marks an order as paid. The order must already carry an
// approved payment. Staff only; payments confirm orders through confirmInTx.
func (s *RentalService) ConfirmOrder(ctx context.Context, orderID string) (*models.RentalOrder, error) {
	if _, err := session.RequireStaff(ctx, "confirm orders"); err != nil {
		return nil, err
	}
	var (
		order   *models.RentalOrder
		pending pendingEvents
	)
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if _, err := tx.Orders().GetByID(ctx, orderID); err != nil {
			return err
		}
		if err := requireApprovedPayment(ctx, tx, orderID); err != nil {
			return err
		}
		var err error
		order, err = s.confirmInTx(ctx, tx, orderID, &pending)
		return err
	})
	if err != nil {
		s.logFailure("confirm order", err, zap.String("order_id", orderID))
		return nil, err
	}
	s.events.flush(ctx, pending)
	return order, nil
}

func requireApprovedPayment(ctx context.Context, tx repositories.Store, orderID string) error {
	payment, err := tx.Payments().GetByOrderID(ctx, orderID)
	if apperr.IsNotFound(err) {
		return &apperr.PaymentConflictError{OrderID: orderID, Reason: "order has no payment"}
	}
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentApproved {
		return &apperr.PaymentConflictError{
			PaymentID: payment.ID,
			OrderID:   orderID,
			Reason:    fmt.Sprintf("payment is %s, not approved", payment.Status),
		}
	}
	return nil
}

func (s *RentalService) confirmInTx(ctx context.Context, tx repositories.Store, orderID string, pending *pendingEvents) (*models.RentalOrder, error) {
	order, err := tx.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := transition(ctx, tx, order, EventConfirm); err != nil {
		return nil, err
	}
	s.log.Info("order confirmed", zap.String("order_id", orderID))
	pending.add(KeyOrderConfirmed, orderEvent(order, ""))
	return order, nil
}

// StartRental records that the garments of a confirmed order were handed
// over. Staff only.
func (s *RentalService) StartRental(ctx context.Context, orderID string) (*models.RentalOrder, error) {
	actor, err := session.RequireStaff(ctx, "start rentals")
	if err != nil {
		return nil, err
	}
	var order *models.RentalOrder
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		return transition(ctx, tx, order, EventStart)
	})
	if err != nil {
		s.logFailure("start rental", err, zap.String("order_id", orderID))
		return nil, err
	}
	s.log.Info("rental started", zap.String("order_id", orderID), zap.String("staff_id", actor.CurrentActorID()))
	var pending pendingEvents
	pending.add(KeyOrderStarted, orderEvent(order, actor.CurrentActorID()))
	s.events.flush(ctx, pending)
	return order, nil
}

// ProcessReturn checks an active order back in. Every line needs exactly one
// condition report. Stock, conditions, return date, status, fines and the
// loyalty award are written in one transaction; the loyalty award may fail
// on its own without undoing the rest. Staff only.
func (s *RentalService) ProcessReturn(ctx context.Context, orderID string, actualReturnDate time.Time, reports []LineReturn) (*ReturnResult, error) {
	actor, err := session.RequireStaff(ctx, "process returns")
	if err != nil {
		return nil, err
	}
	if actualReturnDate.IsZero() {
		return nil, apperr.Validation("actual_return_date", "return date is required")
	}
	returnDate := DateOf(actualReturnDate)

	result := &ReturnResult{}
	var pending pendingEvents
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.StatusActive {
			return &apperr.InvalidTransitionError{From: string(order.Status), To: string(models.StatusReturned)}
		}
		if returnDate.Before(DateOf(order.StartDate)) {
			return apperr.Validation("actual_return_date", "return date %s is before the rental start %s",
				returnDate.Format(time.DateOnly), DateOf(order.StartDate).Format(time.DateOnly))
		}
		byLine, err := matchReports(order, reports)
		if err != nil {
			return err
		}

		if err := tx.Orders().SetActualReturnDate(ctx, order.ID, returnDate); err != nil {
			if errors.Is(err, repositories.ErrStatusConflict) {
				return &apperr.InvalidTransitionError{From: string(order.Status), To: string(models.StatusReturned)}
			}
			return err
		}
		order.ActualReturnDate = &returnDate

		for i := range order.Lines {
			line := &order.Lines[i]
			report := byLine[line.ID]
			if err := tx.Orders().UpdateLineReturn(ctx, line.ID, report.Condition, report.Notes); err != nil {
				return err
			}
			line.ReturnedCondition = report.Condition
			line.DamageNotes = report.Notes
			if err := tx.Variants().IncrementStock(ctx, line.VariantID, line.Quantity); err != nil {
				return err
			}
			if report.Condition.RequiresFine() {
				if err := flagVariantCondition(ctx, tx, line.VariantID, report.Condition); err != nil {
					return err
				}
			}
		}

		if err := transition(ctx, tx, order, EventReturn); err != nil {
			return err
		}

		fines, err := s.fines.autoCreate(ctx, tx, order, &pending)
		if err != nil {
			return err
		}
		result.Fines = fines
		result.PointsAwarded = s.loyalty.award(ctx, tx, order.CustomerID, order.TotalPrice)
		result.Order = order
		pending.add(KeyOrderReturned, orderEvent(order, actor.CurrentActorID()))
		return nil
	})
	if err != nil {
		s.logFailure("process return", err, zap.String("order_id", orderID))
		return nil, err
	}
	s.stockChanged(ctx)
	if result.Fines == nil {
		result.Fines = []models.Fine{}
	}
	s.log.Info("order returned",
		zap.String("order_id", orderID),
		zap.Int("fines", len(result.Fines)),
		zap.Int("points", result.PointsAwarded))
	s.events.flush(ctx, pending)
	return result, nil
}

// matchReports pairs each order line with exactly one report.
func matchReports(order *models.RentalOrder, reports []LineReturn) (map[string]LineReturn, error) {
	if len(reports) != len(order.Lines) {
		return nil, apperr.Validation("reports", "expected %d condition reports, got %d", len(order.Lines), len(reports))
	}
	byLine := make(map[string]LineReturn, len(reports))
	for i, r := range reports {
		if _, ok := order.Line(r.LineID); !ok {
			return nil, apperr.Validation(fmt.Sprintf("reports[%d].line_id", i), "line %s is not part of order %s", r.LineID, order.ID)
		}
		if _, dup := byLine[r.LineID]; dup {
			return nil, apperr.Validation(fmt.Sprintf("reports[%d].line_id", i), "line %s is reported more than once", r.LineID)
		}
		if !r.Condition.Valid() {
			return nil, apperr.Validation(fmt.Sprintf("reports[%d].condition", i), "unknown condition %q", r.Condition)
		}
		byLine[r.LineID] = r
	}
	return byLine, nil
}

// flagVariantCondition records damage on the catalog variant, never improving
// a condition that is already worse.
func flagVariantCondition(ctx context.Context, tx repositories.Store, variantID string, returned models.Condition) error {
	v, err := tx.Variants().GetByID(ctx, variantID)
	if err != nil {
		return err
	}
	if !returned.WorseThan(v.Condition) {
		return nil
	}
	return tx.Variants().UpdateCondition(ctx, variantID, returned)
}

// GetOrder retrieves an order with its lines. Owner or staff.
func (s *RentalService) GetOrder(ctx context.Context, orderID string) (*models.RentalOrder, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := session.RequireOwnerOrStaff(ctx, order.CustomerID, "view this order"); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersForCustomer returns a customer's orders, newest first. Owner or staff.
func (s *RentalService) ListOrdersForCustomer(ctx context.Context, customerID string) ([]models.RentalOrder, error) {
	if _, err := session.RequireOwnerOrStaff(ctx, customerID, "list orders"); err != nil {
		return nil, err
	}
	return s.store.Orders().ListByCustomer(ctx, customerID)
}

// ListOrdersByStatus returns every order in a status. Staff only.
func (s *RentalService) ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.RentalOrder, error) {
	if _, err := session.RequireStaff(ctx, "list orders by status"); err != nil {
		return nil, err
	}
	if _, ok := orderTransitions[status]; !ok {
		return nil, apperr.Validation("status", "unknown order status %q", status)
	}
	return s.store.Orders().ListByStatus(ctx, status)
}

// ListOverdueOrders returns active orders whose due date has passed. Staff only.
func (s *RentalService) ListOverdueOrders(ctx context.Context) ([]models.RentalOrder, error) {
	if _, err := session.RequireStaff(ctx, "list overdue orders"); err != nil {
		return nil, err
	}
	return s.store.Orders().ListOverdue(ctx, s.today())
}

// NotifyOverdue publishes an overdue event for every overdue order and
// returns how many there were. Staff only.
func (s *RentalService) NotifyOverdue(ctx context.Context) (int, error) {
	orders, err := s.ListOverdueOrders(ctx)
	if err != nil {
		return 0, err
	}
	metrics.OverdueOrders.Set(float64(len(orders)))
	var pending pendingEvents
	today := s.today()
	for i := range orders {
		o := &orders[i]
		e := orderEvent(o, "")
		e.Amount = s.fines.LateFee(today, o.DueDate())
		pending.add(KeyOrderOverdue, e)
	}
	s.events.flush(ctx, pending)
	return len(orders), nil
}

// GetOrderSummary returns an order with its payment, fines and what is still
// owed, including the late fee accruing on an active overdue order. Owner or staff.
func (s *RentalService) GetOrderSummary(ctx context.Context, orderID string) (*OrderSummary, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	summary := &OrderSummary{Order: order, RunningLateFee: decimal.Zero}

	payment, err := s.store.Payments().GetByOrderID(ctx, orderID)
	switch {
	case err == nil:
		summary.Payment = payment
	case !apperr.IsNotFound(err):
		return nil, err
	}

	summary.Fines, err = s.store.Fines().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	summary.TotalFines = sumFines(summary.Fines, false)
	summary.UnpaidFines = sumFines(summary.Fines, true)
	if order.Status == models.StatusActive {
		summary.RunningLateFee = s.fines.LateFee(s.today(), order.DueDate())
	}
	summary.Outstanding = summary.UnpaidFines.Add(summary.RunningLateFee)
	return summary, nil
}

// stockChanged drops cached catalog searches after a commit that changed
// stock or variant conditions.
func (s *RentalService) stockChanged(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func (s *RentalService) logFailure(op string, err error, fields ...zap.Field) {
	logFailure(s.log, op, err, fields...)
}

// logFailure logs storage failures as errors; expected caller errors are
// only worth a debug line.
func logFailure(log *zap.Logger, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if apperr.IsExpected(err) {
		log.Debug(op+" rejected", fields...)
		return
	}
	metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
	log.Error(op+" failed", fields...)
}

func orderEvent(order *models.RentalOrder, actorID string) Event {
	return Event{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		Amount:     order.TotalPrice,
		ActorID:    actorID,
	}
}
