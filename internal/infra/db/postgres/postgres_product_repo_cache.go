package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/metrics"
	red "discord-storefront/internal/infra/redis"
)

var _ repository.ProductRepository = (*productRepoCacheDecorator)(nil)

// productRepoCacheDecorator caches FindByID outside transactions. Every write drops the
// entry; writes made inside a transaction drop it again once the transaction commits, so a
// read racing the open transaction cannot keep the pre-commit row cached.
type productRepoCacheDecorator struct {
	inner repository.ProductRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewProductRepoCacheDecorator(inner repository.ProductRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ProductRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l := logger.With().Str("component", "ProductCache").Logger()
	return &productRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func productKey(id string) string { return "product:" + id }

func (d *productRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	// rows read inside a transaction are locked and must come from the database
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}

	key := productKey(id)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var p model.Product
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("product", "hit")
			return &p, nil
		}
	case !red.IsMiss(err):
		metrics.IncCacheRequest("product", "error")
		d.log.Warn().Err(err).Str("product_id", id).Msg("product cache read failed")
	}

	metrics.IncCacheRequest("product", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

func (d *productRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	if err := d.cache.Del(ctx, productKey(id)); err != nil {
		d.log.Warn().Err(err).Str("product_id", id).Msg("product cache invalidation failed")
	}
}

func (d *productRepoCacheDecorator) dropAfterWrite(ctx context.Context, tx repository.Tx, id string) {
	d.invalidate(ctx, id)
	if tx != nil {
		afterCommit(ctx, func(ctx context.Context) { d.invalidate(ctx, id) })
	}
}

func (d *productRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	err := d.inner.Save(ctx, tx, p)
	d.dropAfterWrite(ctx, tx, p.ID)
	return err
}

func (d *productRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	err := d.inner.Delete(ctx, tx, id)
	d.dropAfterWrite(ctx, tx, id)
	return err
}

func (d *productRepoCacheDecorator) RecordSale(ctx context.Context, tx repository.Tx, id string) (repository.SaleOutcome, error) {
	out, err := d.inner.RecordSale(ctx, tx, id)
	d.dropAfterWrite(ctx, tx, id)
	return out, err
}

func (d *productRepoCacheDecorator) AdjustStock(ctx context.Context, tx repository.Tx, id string, delta int64) error {
	err := d.inner.AdjustStock(ctx, tx, id, delta)
	d.dropAfterWrite(ctx, tx, id)
	return err
}

// Listings are not cached; stock changes on every sale.
func (d *productRepoCacheDecorator) ListByServer(ctx context.Context, tx repository.Tx, serverID string, activeOnly bool) ([]*model.Product, error) {
	return d.inner.ListByServer(ctx, tx, serverID, activeOnly)
}
