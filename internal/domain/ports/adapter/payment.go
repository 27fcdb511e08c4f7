package adapter

import (
	"context"
)

// PaymentIntent is the provider-agnostic result of creating a payment.
type PaymentIntent struct {
	ID           string // provider payment intent id
	ClientSecret string // handed to the buyer to complete the payment
	Amount       int64  // minor units
	Currency     string
}

type PaymentEventType string

const (
	PaymentSucceeded PaymentEventType = "payment_intent.succeeded"
	PaymentFailed    PaymentEventType = "payment_intent.payment_failed"
)

// PaymentEvent is a verified payment notification.
// Type is empty for events the storefront does not act on.
type PaymentEvent struct {
	ID              string
	Type            PaymentEventType
	PaymentIntentID string
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// CreatePaymentIntent opens a payment of amount minor units in currency.
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, meta map[string]string) (*PaymentIntent, error)

	// ParseNotification verifies the signature of a raw notification and decodes it.
	// Returns domain.ErrSignatureInvalid or domain.ErrMalformedEvent.
	ParseNotification(payload []byte, signature string) (*PaymentEvent, error)
}

// GatewayRegistry resolves the payment account configured for a server.
type GatewayRegistry interface {
	// Gateway returns domain.ErrGatewayNotReady when the server has no payment credentials.
	Gateway(ctx context.Context, serverID string) (PaymentGateway, error)
	Evict(serverID string)
}
