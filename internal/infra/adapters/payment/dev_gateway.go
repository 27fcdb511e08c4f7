package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*DevGateway)(nil)

// DevGateway is an in-memory gateway for local runs and tests.
// Notifications are JSON bodies signed with hex(HMAC-SHA256(secret, body)).
type DevGateway struct {
	secret string

	mu      sync.Mutex
	seq     int64
	intents map[string]int64 // intent id -> amount
}

func NewDevGateway(secret string) *DevGateway {
	return &DevGateway{
		secret:  secret,
		intents: make(map[string]int64),
	}
}

func (g *DevGateway) Name() string { return "dev" }

func (g *DevGateway) next() string {
	g.seq++
	return fmt.Sprintf("pi_dev_%d", g.seq)
}

func (g *DevGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, meta map[string]string) (*adapter.PaymentIntent, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.intents[id] = amount
	return &adapter.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       amount,
		Currency:     strings.ToLower(currency),
	}, nil
}

type devNotification struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	PaymentIntentID string `json:"payment_intent"`
}

func (g *DevGateway) ParseNotification(payload []byte, signature string) (*adapter.PaymentEvent, error) {
	if signature == "" || !strings.EqualFold(g.Sign(payload), signature) {
		return nil, domain.ErrSignatureInvalid
	}
	var n devNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	ev := &adapter.PaymentEvent{ID: n.ID}
	switch t := adapter.PaymentEventType(n.Type); t {
	case adapter.PaymentSucceeded, adapter.PaymentFailed:
		if n.PaymentIntentID == "" {
			return nil, fmt.Errorf("%w: missing payment_intent", domain.ErrMalformedEvent)
		}
		ev.Type, ev.PaymentIntentID = t, n.PaymentIntentID
	}
	return ev, nil
}

// Sign returns the signature ParseNotification expects for payload.
func (g *DevGateway) Sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(g.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Notification builds a signed notification body for intentID.
func (g *DevGateway) Notification(eventID string, t adapter.PaymentEventType, intentID string) ([]byte, string) {
	b, _ := json.Marshal(devNotification{ID: eventID, Type: string(t), PaymentIntentID: intentID})
	return b, g.Sign(b)
}
