package adapter

import (
	"context"
	"time"
)

type OrderEventType string

const (
	EventOrderCreated        OrderEventType = "order.created"
	EventOrderCompleted      OrderEventType = "order.completed"
	EventOrderFailed         OrderEventType = "order.failed"
	EventOrderDelivered      OrderEventType = "order.delivered"
	EventOrderDeliveryFailed OrderEventType = "order.delivery_failed"
	EventOrderPartial        OrderEventType = "order.delivery_partial"
)

// OrderEvent is a lifecycle fact published for downstream consumers.
type OrderEvent struct {
	Type       OrderEventType
	OrderID    string
	ServerID   string
	ProductID  string
	BuyerID    string
	Status     string
	Amount     string
	Currency   string
	OccurredAt time.Time
}

// EventPublisher emits order lifecycle events. Publishing never blocks the order
// flow; failures are reported to the caller for logging only.
type EventPublisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// Locker is a short-lived distributed mutex.
type Locker interface {
	// TryLock retries until key is held or ctx ends and returns the token for Unlock.
	// Returns domain.ErrLockHeld when the key stayed locked.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter counts hits on key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// PurchaseRateKey scopes the purchase limiter to one buyer.
func PurchaseRateKey(buyerID string) string { return "rate_limit:purchase:" + buyerID }

// ReviewClaims identify the order a review token was issued for.
type ReviewClaims struct {
	OrderID string
	BuyerID string
}

// ReviewTokenIssuer mints and verifies single-order review tokens.
type ReviewTokenIssuer interface {
	Issue(orderID, buyerID string) (string, error)
	// Verify returns domain.ErrInvalidToken for bad or expired tokens.
	Verify(token string) (*ReviewClaims, error)
}
