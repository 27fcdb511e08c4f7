package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway talks to the Stripe account of one server.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

type StripeOption func(*stripe.BackendConfig)

// WithStripeURL points the client at another API host (stripe-mock, tests).
func WithStripeURL(url string) StripeOption {
	return func(c *stripe.BackendConfig) { c.URL = stripe.String(url) }
}

func NewStripeGateway(secretKey, webhookSecret string, timeout time.Duration, opts ...StripeOption) (*StripeGateway, error) {
	if secretKey == "" || webhookSecret == "" {
		return nil, domain.ErrGatewayNotReady
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		MaxNetworkRetries: stripe.Int64(2),
	}
	for _, o := range opts {
		o(cfg)
	}
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	})
	return &StripeGateway{api: api, webhookSecret: webhookSecret}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, meta map[string]string) (*adapter.PaymentIntent, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &adapter.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// ParseNotification verifies the Stripe-Signature header and extracts the payment intent.
func (g *StripeGateway) ParseNotification(payload []byte, signature string) (*adapter.PaymentEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	out := &adapter.PaymentEvent{ID: ev.ID}
	switch adapter.PaymentEventType(ev.Type) {
	case adapter.PaymentSucceeded, adapter.PaymentFailed:
	default:
		return out, nil
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no object", domain.ErrMalformedEvent, ev.ID)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil || pi.ID == "" {
		return nil, fmt.Errorf("%w: event %s: payment intent: %v", domain.ErrMalformedEvent, ev.ID, err)
	}
	out.Type = adapter.PaymentEventType(ev.Type)
	out.PaymentIntentID = pi.ID
	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
