package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/adapter"
)

const defaultExternalTimeout = 10 * time.Second

// outbound groups the best-effort side channels (broker events, operator alerts).
// Failures are logged and never retried or returned to the caller.
type outbound struct {
	events  adapter.EventPublisher
	alerts  adapter.OperatorAlerter
	timeout time.Duration
	log     *zerolog.Logger
}

func (o outbound) publish(ctx context.Context, ev adapter.OrderEvent) {
	if o.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.callTimeout())
	defer cancel()
	if err := o.events.Publish(ctx, ev); err != nil {
		o.log.Warn().Err(err).Str("event", string(ev.Type)).Str("order_id", ev.OrderID).Msg("publish order event failed")
	}
}

func (o outbound) alert(ctx context.Context, text string) {
	if o.alerts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.callTimeout())
	defer cancel()
	if err := o.alerts.Alert(ctx, text); err != nil {
		o.log.Warn().Err(err).Msg("operator alert failed")
	}
}

func (o outbound) callTimeout() time.Duration {
	if o.timeout <= 0 {
		return defaultExternalTimeout
	}
	return o.timeout
}

func orderEvent(t adapter.OrderEventType, o *model.Order) adapter.OrderEvent {
	return adapter.OrderEvent{
		Type:       t,
		OrderID:    o.ID,
		ServerID:   o.ServerID,
		ProductID:  o.ProductID,
		BuyerID:    o.BuyerID,
		Status:     string(o.Status),
		Amount:     o.Amount.String(),
		Currency:   o.Currency,
		OccurredAt: time.Now().UTC(),
	}
}
