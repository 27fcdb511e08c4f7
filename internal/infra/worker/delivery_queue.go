package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/infra/logging"
	"discord-storefront/internal/infra/metrics"
)

// Deliverer is the delivery use case as seen by the queue.
type Deliverer interface {
	Deliver(ctx context.Context, orderID string) (*model.Order, error)
}

// DeliveryQueue runs deliveries for completed orders on the pool, off the webhook request.
// A rejected dispatch is not lost: the reconciler picks the order up later.
type DeliveryQueue struct {
	pool    *Pool
	deliver Deliverer
	timeout time.Duration
	log     *zerolog.Logger
}

func NewDeliveryQueue(pool *Pool, deliver Deliverer, timeout time.Duration, logger *zerolog.Logger) *DeliveryQueue {
	if timeout <= 0 {
		timeout = time.Minute
	}
	l := logger.With().Str("component", "DeliveryQueue").Logger()
	return &DeliveryQueue{pool: pool, deliver: deliver, timeout: timeout, log: &l}
}

func (q *DeliveryQueue) Dispatch(orderID string) error {
	err := q.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(logging.WithOrderID(ctx, orderID), q.timeout)
		defer cancel()
		_, err := q.deliver.Deliver(ctx, orderID)
		return err
	})
	if err != nil {
		metrics.IncDeliveryRejected()
		q.log.Warn().Err(err).Str("order_id", orderID).Msg("delivery not queued; left for reconciler")
	}
	return err
}
