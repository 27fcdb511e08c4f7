package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/logging"
	"discord-storefront/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// DeliveryDispatcher runs deliver(orderID) outside of the caller's request.
type DeliveryDispatcher interface {
	Dispatch(orderID string) error
}

type PurchaseRequest struct {
	ProductID  string
	BuyerID    string
	BuyerEmail string
}

type PurchaseResult struct {
	Order           *model.Order
	PaymentIntentID string
	ClientSecret    string
}

type OrderUseCase interface {
	// InitiatePurchase opens a payment intent and records a PENDING order for it.
	InitiatePurchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	// HandlePaymentNotification authenticates and applies a payment notification.
	// Only domain.ErrSignatureInvalid and domain.ErrMalformedEvent are returned; every
	// failure after authentication is logged and acknowledged.
	HandlePaymentNotification(ctx context.Context, serverID string, payload []byte, signature string) error
	Get(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error)
}

type OrderOption func(*orderUC)

// WithPurchaseLimit caps purchases per buyer inside window.
func WithPurchaseLimit(l adapter.RateLimiter, limit int, window time.Duration) OrderOption {
	return func(u *orderUC) {
		u.limiter, u.limit, u.window = l, limit, window
	}
}

func WithOrderEvents(p adapter.EventPublisher) OrderOption {
	return func(u *orderUC) { u.out.events = p }
}

func WithOrderAlerts(a adapter.OperatorAlerter) OrderOption {
	return func(u *orderUC) { u.out.alerts = a }
}

// WithGatewayTimeout bounds every call to the payment provider.
func WithGatewayTimeout(d time.Duration) OrderOption {
	return func(u *orderUC) { u.out.timeout = d }
}

type orderUC struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	ledger   repository.LedgerRepository
	servers  repository.ServerRepository
	gateways adapter.GatewayRegistry
	tm       repository.TransactionManager
	dispatch DeliveryDispatcher

	limiter adapter.RateLimiter
	limit   int
	window  time.Duration

	out outbound
	log *zerolog.Logger
}

func NewOrderUseCase(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	ledger repository.LedgerRepository,
	servers repository.ServerRepository,
	gateways adapter.GatewayRegistry,
	tm repository.TransactionManager,
	dispatch DeliveryDispatcher,
	logger *zerolog.Logger,
	opts ...OrderOption,
) *orderUC {
	l := logger.With().Str("component", "OrderUC").Logger()
	u := &orderUC{
		products: products,
		orders:   orders,
		ledger:   ledger,
		servers:  servers,
		gateways: gateways,
		tm:       tm,
		dispatch: dispatch,
		log:      &l,
	}
	u.out.log = &l
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *orderUC) InitiatePurchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	defer logging.TraceDuration(u.log, "OrderUC.InitiatePurchase")()
	if req.ProductID == "" || req.BuyerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := u.checkRate(ctx, req.BuyerID); err != nil {
		return nil, err
	}

	p, err := u.products.FindByID(ctx, repository.NoTX, req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := p.Purchasable(); err != nil {
		return nil, err
	}

	settings, err := u.servers.FindByID(ctx, repository.NoTX, p.ServerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrGatewayNotReady
	}
	if err != nil {
		return nil, err
	}
	gw, err := u.gateways.Gateway(ctx, p.ServerID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, u.out.callTimeout())
	intent, err := gw.CreatePaymentIntent(callCtx, p.MinorUnits(), p.Currency, map[string]string{
		"product_id": p.ID,
		"server_id":  p.ServerID,
		"buyer_id":   req.BuyerID,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	o, err := model.NewPendingOrder(p, req.BuyerID, req.BuyerEmail, intent.ID, settings.CommissionRate)
	if err != nil {
		return nil, err
	}
	if err := u.orders.Create(ctx, repository.NoTX, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.IncOrder(string(model.OrderStatusPending))
	u.out.publish(ctx, orderEvent(adapter.EventOrderCreated, o))
	logging.With(logging.WithOrderID(ctx, o.ID), u.log).Info().
		Str("product_id", p.ID).
		Str("payment_intent", intent.ID).
		Str("amount", o.Amount.String()).
		Str("commission", o.CommissionAmount.String()).
		Msg("order created")

	return &PurchaseResult{Order: o, PaymentIntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (u *orderUC) checkRate(ctx context.Context, buyerID string) error {
	if u.limiter == nil || u.limit <= 0 {
		return nil
	}
	ok, err := u.limiter.Allow(ctx, adapter.PurchaseRateKey(buyerID), u.limit, u.window)
	if err != nil {
		// limiter outage must not block sales
		u.log.Warn().Err(err).Msg("purchase rate limiter unavailable")
		return nil
	}
	if !ok {
		metrics.IncPurchaseRateLimited()
		return domain.ErrRateLimited
	}
	return nil
}

func (u *orderUC) HandlePaymentNotification(ctx context.Context, serverID string, payload []byte, signature string) error {
	start := time.Now()
	ctx = logging.WithServerID(ctx, serverID)
	log := logging.With(ctx, u.log)

	gw, err := u.gateways.Gateway(ctx, serverID)
	if err != nil {
		log.Warn().Err(err).Msg("no payment gateway for notification")
		u.observeWebhook(start, "rejected", "signature")
		return fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}
	ev, err := gw.ParseNotification(payload, signature)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, domain.ErrSignatureInvalid) {
			reason = "signature"
		}
		log.Warn().Err(err).Msg("payment notification rejected")
		u.observeWebhook(start, "rejected", reason)
		if errors.Is(err, domain.ErrSignatureInvalid) || errors.Is(err, domain.ErrMalformedEvent) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	// Authenticated from here on: everything below is acknowledged.
	result, reason := "ignored", "unhandled_type"
	switch ev.Type {
	case adapter.PaymentSucceeded:
		result, reason = u.complete(ctx, serverID, ev.PaymentIntentID)
	case adapter.PaymentFailed:
		result, reason = u.fail(ctx, serverID, ev.PaymentIntentID)
	default:
		log.Debug().Str("event_id", ev.ID).Msg("ignoring unhandled payment event")
	}
	u.observeWebhook(start, result, reason)
	return nil
}

func (u *orderUC) observeWebhook(start time.Time, result, reason string) {
	metrics.IncWebhook(result, reason)
	metrics.ObserveWebhook(result, time.Since(start).Seconds())
}

// lookup finds the order of a notification and checks it belongs to serverID.
func (u *orderUC) lookup(ctx context.Context, serverID, paymentIntentID string) (*model.Order, string, string) {
	log := logging.With(ctx, u.log)
	o, err := u.orders.FindByPaymentIntent(ctx, repository.NoTX, paymentIntentID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Str("payment_intent", paymentIntentID).Msg("payment notification for unknown order")
		return nil, "ignored", "unknown_order"
	}
	if err != nil {
		log.Error().Err(err).Str("payment_intent", paymentIntentID).Msg("order lookup failed")
		return nil, "ignored", "internal"
	}
	if o.ServerID != serverID {
		log.Warn().Str("payment_intent", paymentIntentID).Str("order_server", o.ServerID).Msg("payment notification signed by another server")
		return nil, "ignored", "unknown_order"
	}
	return o, "", ""
}

func (u *orderUC) complete(ctx context.Context, serverID, paymentIntentID string) (string, string) {
	o, result, reason := u.lookup(ctx, serverID, paymentIntentID)
	if o == nil {
		return result, reason
	}
	ctx = logging.WithOrderID(ctx, o.ID)
	log := logging.With(ctx, u.log)
	if o.Status.Terminal() {
		if o.Status == model.OrderStatusFailed {
			log.Warn().Msg("payment succeeded for a FAILED order; left unchanged")
		}
		return "ok", "duplicate"
	}

	var (
		transitioned bool
		outcome      repository.SaleOutcome
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.orders.UpdateStatusIfPending(ctx, tx, o.ID, model.OrderStatusCompleted)
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		if !ok {
			return nil
		}
		transitioned = true
		o.Status = model.OrderStatusCompleted

		if outcome, err = u.products.RecordSale(ctx, tx, o.ProductID); err != nil {
			return fmt.Errorf("record sale: %w", err)
		}
		entry, err := model.NewLedgerEntry(o)
		if err != nil {
			return err
		}
		if err := u.ledger.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("applying payment success failed")
		return "ignored", "internal"
	}
	if !transitioned {
		return "ok", "duplicate"
	}

	metrics.IncOrder(string(model.OrderStatusCompleted))
	metrics.AddOrderRevenue(o.Currency, o.Amount, o.CommissionAmount)
	log.Info().Str("amount", o.Amount.String()).Msg("order completed")

	if outcome == repository.SaleOversold {
		metrics.IncOversold()
		log.Warn().Str("product_id", o.ProductID).Msg("payment confirmed for a product with no stock left")
		u.out.alert(ctx, fmt.Sprintf("Oversold: order %s paid for product %s after its stock reached 0.", o.ID, o.ProductID))
	}
	u.out.publish(ctx, orderEvent(adapter.EventOrderCompleted, o))

	if err := u.dispatch.Dispatch(o.ID); err != nil {
		// the queue counts its own rejections
		log.Error().Err(err).Msg("delivery not queued; left for the reconciler")
	}
	return "ok", "none"
}

func (u *orderUC) fail(ctx context.Context, serverID, paymentIntentID string) (string, string) {
	o, result, reason := u.lookup(ctx, serverID, paymentIntentID)
	if o == nil {
		return result, reason
	}
	ctx = logging.WithOrderID(ctx, o.ID)
	log := logging.With(ctx, u.log)

	ok, err := u.orders.UpdateStatusIfPending(ctx, repository.NoTX, o.ID, model.OrderStatusFailed)
	if err != nil {
		log.Error().Err(err).Msg("applying payment failure failed")
		return "ignored", "internal"
	}
	if !ok {
		return "ok", "duplicate"
	}
	o.Status = model.OrderStatusFailed
	metrics.IncOrder(string(model.OrderStatusFailed))
	log.Info().Msg("order failed")
	u.out.publish(ctx, orderEvent(adapter.EventOrderFailed, o))
	return "ok", "none"
}

func (u *orderUC) Get(ctx context.Context, id string) (*model.Order, error) {
	return u.orders.FindByID(ctx, repository.NoTX, id)
}

func (u *orderUC) List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return u.orders.List(ctx, repository.NoTX, f)
}
