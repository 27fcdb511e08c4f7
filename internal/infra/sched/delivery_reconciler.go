package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/metrics"
)

// Dispatcher queues a delivery; satisfied by worker.DeliveryQueue.
type Dispatcher interface {
	Dispatch(orderID string) error
}

// DeliveryReconciler periodically re-queues COMPLETED orders that were never delivered
// and whose resource was not consumed yet. This covers a full queue, a crash between
// payment and delivery, and transient fulfillment errors.
// Partial and blocked deliveries are never picked up; they need a manual re-delivery.
type DeliveryReconciler struct {
	orders   repository.OrderRepository
	dispatch Dispatcher
	interval time.Duration // how often to scan
	minAge   time.Duration // how long an order must sit undelivered before a retry
	batch    int
	log      *zerolog.Logger
}

func NewDeliveryReconciler(orders repository.OrderRepository, dispatch Dispatcher, interval, minAge time.Duration, logger *zerolog.Logger) *DeliveryReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if minAge <= 0 {
		minAge = 2 * time.Minute
	}
	l := logger.With().Str("component", "DeliveryReconciler").Logger()
	return &DeliveryReconciler{orders: orders, dispatch: dispatch, interval: interval, minAge: minAge, batch: 200, log: &l}
}

func (w *DeliveryReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting delivery reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping delivery reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx, time.Now())
		}
	}
}

// Tick re-queues one batch and returns how many orders were dispatched.
func (w *DeliveryReconciler) Tick(ctx context.Context, now time.Time) int {
	stuck, err := w.orders.ListUndelivered(ctx, repository.NoTX, now.Add(-w.minAge), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list undelivered orders failed")
		return 0
	}
	n := 0
	for _, o := range stuck {
		if o.ResourceConsumed() || o.DeliveryBlocked() {
			continue
		}
		if err := w.dispatch.Dispatch(o.ID); err != nil {
			// queue saturated; the rest waits for the next tick
			w.log.Warn().Err(err).Str("order_id", o.ID).Msg("re-queue stopped")
			break
		}
		n++
	}
	if n > 0 {
		metrics.AddReconcilerRequeued(n)
		w.log.Info().Int("count", n).Msg("undelivered orders re-queued")
	}
	return n
}
