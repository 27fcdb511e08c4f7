package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/domain/ports/repository"
)

// Compile-time check
var _ ServerUseCase = (*serverUC)(nil)

// ServerSettingsInput is a partial update; nil fields keep their stored value.
type ServerSettingsInput struct {
	ServerID        string
	CommissionRate  *decimal.Decimal
	StripeSecretKey *string
	WebhookSecret   *string
	Currency        *string
}

type ServerUseCase interface {
	UpdateSettings(ctx context.Context, in ServerSettingsInput) (*model.ServerSettings, error)
	GetSettings(ctx context.Context, serverID string) (*model.ServerSettings, error)
	// CommissionRate is the rate applied to orders created now.
	CommissionRate(ctx context.Context, serverID string) (decimal.Decimal, error)
	Stats(ctx context.Context, serverID string) ([]model.LedgerTotals, error)
}

type serverUC struct {
	servers     repository.ServerRepository
	ledger      repository.LedgerRepository
	gateways    adapter.GatewayRegistry
	defaultRate decimal.Decimal
	log         *zerolog.Logger
}

func NewServerUseCase(
	servers repository.ServerRepository,
	ledger repository.LedgerRepository,
	gateways adapter.GatewayRegistry,
	defaultRate decimal.Decimal,
	logger *zerolog.Logger,
) *serverUC {
	l := logger.With().Str("component", "ServerUC").Logger()
	return &serverUC{servers: servers, ledger: ledger, gateways: gateways, defaultRate: defaultRate, log: &l}
}

func (u *serverUC) UpdateSettings(ctx context.Context, in ServerSettingsInput) (*model.ServerSettings, error) {
	if in.ServerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	s, err := u.servers.FindByID(ctx, repository.NoTX, in.ServerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s = &model.ServerSettings{ServerID: in.ServerID, CommissionRate: u.defaultRate}
	case err != nil:
		return nil, err
	}

	if in.CommissionRate != nil {
		s.CommissionRate = *in.CommissionRate
	}
	if in.StripeSecretKey != nil {
		s.StripeSecretKey = *in.StripeSecretKey
	}
	if in.WebhookSecret != nil {
		s.WebhookSecret = *in.WebhookSecret
	}
	if in.Currency != nil {
		s.Currency = *in.Currency
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	if err := u.servers.Upsert(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	// credentials may have changed; the next payment call rebuilds the client
	u.gateways.Evict(in.ServerID)
	u.log.Info().Str("server_id", s.ServerID).Str("commission_rate", s.CommissionRate.String()).Bool("payment_ready", s.PaymentReady()).Msg("server settings updated")
	return s, nil
}

func (u *serverUC) GetSettings(ctx context.Context, serverID string) (*model.ServerSettings, error) {
	return u.servers.FindByID(ctx, repository.NoTX, serverID)
}

func (u *serverUC) CommissionRate(ctx context.Context, serverID string) (decimal.Decimal, error) {
	s, err := u.servers.FindByID(ctx, repository.NoTX, serverID)
	if errors.Is(err, domain.ErrNotFound) {
		return u.defaultRate, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return s.CommissionRate, nil
}

func (u *serverUC) Stats(ctx context.Context, serverID string) ([]model.LedgerTotals, error) {
	if serverID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.ledger.TotalsByServer(ctx, repository.NoTX, serverID)
}
