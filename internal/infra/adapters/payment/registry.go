package payment

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/metrics"
)

var _ adapter.GatewayRegistry = (*Registry)(nil)

// Factory builds the gateway for one server's settings.
type Factory func(s *model.ServerSettings) (adapter.PaymentGateway, error)

// StripeFactory requires the server to carry both Stripe secrets.
func StripeFactory(timeout time.Duration, opts ...StripeOption) Factory {
	return func(s *model.ServerSettings) (adapter.PaymentGateway, error) {
		if !s.PaymentReady() {
			return nil, domain.ErrGatewayNotReady
		}
		return NewStripeGateway(s.StripeSecretKey, s.WebhookSecret, timeout, opts...)
	}
}

// DevFactory hands every known server the same in-memory gateway.
func DevFactory(g *DevGateway) Factory {
	return func(*model.ServerSettings) (adapter.PaymentGateway, error) { return g, nil }
}

// Registry caches one gateway per server. Entries expire after ttl and are
// evicted when the server settings change.
type Registry struct {
	servers repository.ServerRepository
	factory Factory
	cache   *expirable.LRU[string, adapter.PaymentGateway]
	log     *zerolog.Logger
}

func NewRegistry(servers repository.ServerRepository, factory Factory, size int, ttl time.Duration, logger *zerolog.Logger) *Registry {
	if size <= 0 {
		size = 256
	}
	l := logger.With().Str("component", "GatewayRegistry").Logger()
	return &Registry{
		servers: servers,
		factory: factory,
		cache:   expirable.NewLRU[string, adapter.PaymentGateway](size, nil, ttl),
		log:     &l,
	}
}

func (r *Registry) Gateway(ctx context.Context, serverID string) (adapter.PaymentGateway, error) {
	if serverID == "" {
		return nil, domain.ErrGatewayNotReady
	}
	if gw, ok := r.cache.Get(serverID); ok {
		metrics.IncCacheRequest("gateway", "hit")
		return gw, nil
	}
	metrics.IncCacheRequest("gateway", "miss")

	s, err := r.servers.FindByID(ctx, repository.NoTX, serverID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrGatewayNotReady
	}
	if err != nil {
		return nil, err
	}
	gw, err := r.factory(s)
	if err != nil {
		return nil, err
	}
	r.cache.Add(serverID, gw)
	r.log.Debug().Str("server_id", serverID).Str("gateway", gw.Name()).Msg("payment gateway loaded")
	return gw, nil
}

func (r *Registry) Evict(serverID string) {
	r.cache.Remove(serverID)
}
