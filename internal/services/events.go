package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Routing keys of the events published after a unit of work commits.
const (
	KeyOrderCreated           = "order.created"
	KeyOrderCancelled         = "order.cancelled"
	KeyOrderConfirmed         = "order.confirmed"
	KeyOrderStarted           = "order.started"
	KeyOrderReturned          = "order.returned"
	KeyOrderOverdue           = "order.overdue"
	KeyPaymentCreated         = "payment.created"
	KeyPaymentApproved        = "payment.approved"
	KeyPaymentRejected        = "payment.rejected"
	KeyPaymentProofReuploaded = "payment.proof_reuploaded"
	KeyFineCreated            = "fine.created"
)

// Publisher delivers events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
}

// Event is the JSON body of every published message.
type Event struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id,omitempty"`
	PaymentID  string          `json:"payment_id,omitempty"`
	FineID     string          `json:"fine_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	ActorID    string          `json:"actor_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// pendingEvents collects events inside a transaction; they are only sent
// once the transaction has committed.
type pendingEvents []Event

func (p *pendingEvents) add(key string, e Event) {
	e.Type = key
	e.OccurredAt = time.Now().UTC()
	*p = append(*p, e)
}

type eventSink struct {
	pub Publisher
	log *zap.Logger
}

func (s eventSink) flush(ctx context.Context, events pendingEvents) {
	for _, e := range events {
		if s.pub == nil {
			s.log.Debug("publisher not configured, skipping event", zap.String("type", e.Type), zap.String("order_id", e.OrderID))
			continue
		}
		if err := s.pub.Publish(ctx, e.Type, e); err != nil {
			s.log.Warn("failed to publish event",
				zap.String("type", e.Type),
				zap.String("order_id", e.OrderID),
				zap.Error(err))
		}
	}
}
