package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("too many requests")
	ErrLockHeld           = errors.New("resource is locked")
	ErrInUse              = errors.New("entity is still referenced")

	// Purchase errors (user-correctable)
	ErrUnavailable = errors.New("product is not available")
	ErrOutOfStock  = errors.New("product is out of stock")

	// Payment notification errors
	ErrSignatureInvalid  = errors.New("payment notification signature invalid")
	ErrMalformedEvent    = errors.New("payment notification malformed")
	ErrGatewayNotReady   = errors.New("payment gateway not configured for server")
	ErrInvalidTransition = errors.New("invalid order status transition")

	// Delivery errors
	ErrMisconfiguredProduct  = errors.New("product is misconfigured")
	ErrDeliveryFailed        = errors.New("delivery failed")
	ErrPartialDelivery       = errors.New("resource consumed but buyer was not notified")
	ErrOrderNotCompleted     = errors.New("order is not completed")
	ErrNotificationFailed    = errors.New("notification failed")
	ErrDirectMessagesBlocked = errors.New("recipient does not accept direct messages")

	// Review errors
	ErrInvalidToken = errors.New("invalid or expired token")
)

// DeliveryStage names where a delivery attempt stopped.
type DeliveryStage string

const (
	StageLookup  DeliveryStage = "lookup"
	StageFulfill DeliveryStage = "fulfill"
	StageNotify  DeliveryStage = "notify"
	StagePersist DeliveryStage = "persist"
)

// DeliveryError wraps a delivery failure with the order and stage it happened at.
// errors.Is matches the wrapped sentinel (ErrDeliveryFailed, ErrPartialDelivery, ...).
type DeliveryError struct {
	OrderID string
	Stage   DeliveryStage
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver order %s at %s: %v", e.OrderID, e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Retryable reports whether the whole delivery can be re-run from scratch.
// Failures after the resource was consumed are not.
func (e *DeliveryError) Retryable() bool {
	return !errors.Is(e.Err, ErrPartialDelivery) && !errors.Is(e.Err, ErrMisconfiguredProduct)
}
