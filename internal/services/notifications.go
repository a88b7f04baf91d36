package services

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// NotificationHandler turns payment and overdue events into notifications
// for customers and staff. Delivery channels are not wired yet, so each
// notification is written to the log.
type NotificationHandler struct {
	log *zap.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{log: log.Named("notify")}
}

// Notification is a message for one recipient.
type Notification struct {
	Recipient string
	Text      string
}

// Handle decodes an event body and emits its notification. Unknown routing
// keys are ignored; undecodable bodies are returned as errors.
func (h *NotificationHandler) Handle(routingKey string, body []byte) (*Notification, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", routingKey, err)
	}
	n := notificationFor(routingKey, e)
	if n == nil {
		return nil, nil
	}
	h.log.Info("NOTIFICATION",
		zap.String("recipient", n.Recipient),
		zap.String("order_id", e.OrderID),
		zap.String("text", n.Text))
	return n, nil
}

func notificationFor(routingKey string, e Event) *Notification {
	switch routingKey {
	case KeyPaymentApproved:
		return &Notification{Recipient: e.CustomerID, Text: fmt.Sprintf("Payment for order %s has been approved", e.OrderID)}
	case KeyPaymentRejected:
		return &Notification{Recipient: e.CustomerID, Text: fmt.Sprintf("Payment for order %s was rejected, please upload a new proof", e.OrderID)}
	case KeyPaymentCreated:
		if e.Status != "pending_verification" {
			return nil
		}
		return &Notification{Recipient: "staff", Text: fmt.Sprintf("Payment %s for order %s is waiting for verification", e.PaymentID, e.OrderID)}
	case KeyPaymentProofReuploaded:
		return &Notification{Recipient: "staff", Text: fmt.Sprintf("New proof uploaded for payment %s (order %s)", e.PaymentID, e.OrderID)}
	case KeyOrderOverdue:
		return &Notification{Recipient: e.CustomerID, Text: fmt.Sprintf("Order %s is overdue, the late fee so far is %s", e.OrderID, e.Amount.StringFixed(0))}
	}
	return nil
}
