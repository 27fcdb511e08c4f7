package model

import (
	"time"

	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
)

// ServerSettings holds the per-guild storefront configuration.
// StripeSecretKey and WebhookSecret are credentials of the shop owner's payment account.
type ServerSettings struct {
	ServerID        string
	CommissionRate  decimal.Decimal // fraction, 0.05 == 5%
	StripeSecretKey string
	WebhookSecret   string
	Currency        string
	UpdatedAt       time.Time
}

func (s *ServerSettings) Validate() error {
	if s == nil || s.ServerID == "" {
		return domain.ErrInvalidArgument
	}
	if s.CommissionRate.IsNegative() || s.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return domain.ErrInvalidArgument
	}
	if s.Currency != "" {
		code, err := NormalizeCurrency(s.Currency)
		if err != nil {
			return err
		}
		s.Currency = code
	}
	return nil
}

// PaymentReady reports whether the server can take payments.
func (s *ServerSettings) PaymentReady() bool {
	return s != nil && s.StripeSecretKey != "" && s.WebhookSecret != ""
}
