package services

import (
	"sewabaju/internal/apperr"
	"sewabaju/internal/models"
)

// OrderEvent is something that happens to a rental order.
type OrderEvent string

const (
	EventConfirm OrderEvent = "confirm"
	EventCancel  OrderEvent = "cancel"
	EventStart   OrderEvent = "start"
	EventReturn  OrderEvent = "return"
)

// eventTargets is the status each event asks for.
var eventTargets = map[OrderEvent]models.OrderStatus{
	EventConfirm: models.StatusConfirmed,
	EventCancel:  models.StatusCancelled,
	EventStart:   models.StatusActive,
	EventReturn:  models.StatusReturned,
}

// orderTransitions is the complete order state machine. A (state, event)
// pair that is missing here is rejected.
var orderTransitions = map[models.OrderStatus]map[OrderEvent]models.OrderStatus{
	models.StatusAwaitingPayment: {
		EventConfirm: models.StatusConfirmed,
		EventCancel:  models.StatusCancelled,
	},
	models.StatusConfirmed: {
		EventStart:  models.StatusActive,
		EventCancel: models.StatusCancelled,
	},
	models.StatusActive: {
		EventReturn: models.StatusReturned,
	},
	models.StatusReturned:  {},
	models.StatusCancelled: {},
}

// NextStatus looks up the status that event leads to from current.
func NextStatus(current models.OrderStatus, event OrderEvent) (models.OrderStatus, error) {
	if next, ok := orderTransitions[current][event]; ok {
		return next, nil
	}
	return "", &apperr.InvalidTransitionError{From: string(current), To: string(eventTargets[event])}
}
