// Package apperr defines the caller-facing error kinds returned by the rental
// services. Callers match them with errors.As; everything except StorageError
// is an expected, recoverable condition.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input. Field names the offending input or rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError with a formatted message.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError is returned when a variant cannot cover a requested quantity.
type InsufficientStockError struct {
	VariantID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (variant %s): requested %d, available %d",
		e.Name, e.VariantID, e.Requested, e.Available)
}

// InvalidTransitionError is returned when an order status change is not allowed.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// PaymentConflictError covers duplicate payments and verification of a
// payment that is not pending.
type PaymentConflictError struct {
	PaymentID string
	OrderID   string
	Reason    string
}

func (e *PaymentConflictError) Error() string {
	if e.PaymentID != "" {
		return fmt.Sprintf("payment %s: %s", e.PaymentID, e.Reason)
	}
	return fmt.Sprintf("payment for order %s: %s", e.OrderID, e.Reason)
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ForbiddenError is returned when the current actor may not perform an action.
type ForbiddenError struct {
	ActorID string
	Action  string
}

func (e *ForbiddenError) Error() string {
	if e.ActorID == "" {
		return fmt.Sprintf("not allowed to %s: no authenticated actor", e.Action)
	}
	return fmt.Sprintf("actor %s is not allowed to %s", e.ActorID, e.Action)
}

// StorageError wraps an underlying repository or file-storage failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it already is one of the
// caller-facing kinds, in which case it is returned untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsExpected(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsExpected reports whether err is one of the recoverable, caller-facing kinds.
func IsExpected(err error) bool {
	var (
		ve  *ValidationError
		ise *InsufficientStockError
		ite *InvalidTransitionError
		pce *PaymentConflictError
		nfe *NotFoundError
		fe  *ForbiddenError
	)
	return errors.As(err, &ve) || errors.As(err, &ise) || errors.As(err, &ite) ||
		errors.As(err, &pce) || errors.As(err, &nfe) || errors.As(err, &fe)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
