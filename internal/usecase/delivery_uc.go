package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/i18n"
	"discord-storefront/internal/infra/logging"
	"discord-storefront/internal/infra/metrics"
)

// Compile-time check
var _ DeliveryUseCase = (*deliveryUC)(nil)

type DeliveryUseCase interface {
	// Deliver hands the purchased resource of a COMPLETED order to its buyer.
	// Already delivered orders are returned unchanged. Errors are *domain.DeliveryError.
	Deliver(ctx context.Context, orderID string) (*model.Order, error)
}

type DeliveryOption func(*deliveryUC)

// WithReviewLinks appends a review link with a token for the order to every notice.
func WithReviewLinks(tokens adapter.ReviewTokenIssuer, baseURL string) DeliveryOption {
	return func(u *deliveryUC) { u.tokens, u.reviewURL = tokens, baseURL }
}

// WithPoolLocker serializes serial pool access per product across processes.
func WithPoolLocker(l adapter.Locker, ttl time.Duration) DeliveryOption {
	return func(u *deliveryUC) { u.locker, u.lockTTL = l, ttl }
}

// WithDeliveryTimeout bounds every external call made during delivery.
func WithDeliveryTimeout(d time.Duration) DeliveryOption {
	return func(u *deliveryUC) { u.out.timeout = d }
}

// WithNoticeTexts localizes buyer notices; the default is English.
func WithNoticeTexts(t adapter.Translator) DeliveryOption {
	return func(u *deliveryUC) {
		if t != nil {
			u.texts = t
		}
	}
}

func WithDeliveryEvents(p adapter.EventPublisher) DeliveryOption {
	return func(u *deliveryUC) { u.out.events = p }
}

func WithDeliveryAlerts(a adapter.OperatorAlerter) DeliveryOption {
	return func(u *deliveryUC) { u.out.alerts = a }
}

type deliveryUC struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	serials  repository.SerialRepository
	grants   repository.RoleGrantRepository
	roles    adapter.RoleAssigner
	dm       adapter.DirectNotifier
	email    adapter.EmailNotifier

	tokens    adapter.ReviewTokenIssuer
	reviewURL string
	locker    adapter.Locker
	lockTTL   time.Duration
	texts     adapter.Translator

	out outbound
	log *zerolog.Logger
	now func() time.Time
}

func NewDeliveryUseCase(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	serials repository.SerialRepository,
	grants repository.RoleGrantRepository,
	roles adapter.RoleAssigner,
	dm adapter.DirectNotifier,
	email adapter.EmailNotifier,
	logger *zerolog.Logger,
	opts ...DeliveryOption,
) *deliveryUC {
	l := logger.With().Str("component", "DeliveryUC").Logger()
	u := &deliveryUC{
		orders:   orders,
		products: products,
		serials:  serials,
		grants:   grants,
		roles:    roles,
		dm:       dm,
		email:    email,
		lockTTL:  30 * time.Second,
		texts:    defaultTexts(),
		log:      &l,
		now:      time.Now,
	}
	u.out.log = &l
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *deliveryUC) Deliver(ctx context.Context, orderID string) (*model.Order, error) {
	defer logging.TraceDuration(u.log, "DeliveryUC.Deliver")()
	start := u.now()
	ctx = logging.WithOrderID(ctx, orderID)
	log := logging.With(ctx, u.log)

	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, &domain.DeliveryError{OrderID: orderID, Stage: domain.StageLookup, Err: err}
	}
	if o.Delivered {
		log.Debug().Msg("order already delivered")
		return o, nil
	}
	if o.Status != model.OrderStatusCompleted {
		return nil, &domain.DeliveryError{OrderID: orderID, Stage: domain.StageLookup, Err: domain.ErrOrderNotCompleted}
	}
	p, err := u.products.FindByID(ctx, repository.NoTX, o.ProductID)
	if err != nil {
		return nil, &domain.DeliveryError{OrderID: orderID, Stage: domain.StageLookup, Err: err}
	}
	ptype := strings.ToLower(string(p.Type))

	data := o.DeliveryData
	if o.ResourceConsumed() {
		log.Info().Str("fulfillment", string(data.Fulfillment.Kind())).Msg("resource already handed out; resending notice only")
	} else {
		f, err := u.fulfill(ctx, o, p)
		if err != nil {
			metrics.IncDelivery(ptype, "failed")
			u.logFailure(log, err)
			if errors.Is(err, domain.ErrMisconfiguredProduct) {
				u.block(ctx, o, err)
			}
			u.out.publish(ctx, orderEvent(adapter.EventOrderDeliveryFailed, o))
			return nil, &domain.DeliveryError{OrderID: orderID, Stage: domain.StageFulfill, Err: err}
		}
		data = &model.DeliveryData{Fulfillment: f, FulfilledAt: u.now().UTC()}
		// Recorded before notifying so that a retry never consumes a second resource.
		if err := u.orders.SaveDeliveryData(ctx, repository.NoTX, o.ID, data); err != nil {
			metrics.IncDelivery(ptype, "failed")
			log.Error().Err(err).Msg("recording fulfillment failed")
			return nil, &domain.DeliveryError{OrderID: orderID, Stage: domain.StagePersist, Err: err}
		}
		o.DeliveryData = data
	}

	channels, notifyErr := u.notify(ctx, o, p, data.Fulfillment)
	if len(channels) == 0 {
		data.Partial = true
		data.LastError = notifyErr.Error()
		if err := u.orders.SaveDeliveryData(ctx, repository.NoTX, o.ID, data); err != nil {
			log.Error().Err(err).Msg("recording partial delivery failed")
		}
		metrics.IncDelivery(ptype, "partial")
		log.Error().Err(notifyErr).
			Str("failure", "partial").
			Str("fulfillment", string(data.Fulfillment.Kind())).
			Msg("resource consumed but buyer was not notified; notify manually")
		u.out.alert(ctx, fmt.Sprintf("Partial delivery: order %s (%s) was fulfilled but the buyer <%s> could not be reached: %v",
			o.ID, p.Name, o.BuyerID, notifyErr))
		u.out.publish(ctx, orderEvent(adapter.EventOrderPartial, o))
		return o, &domain.DeliveryError{
			OrderID: orderID,
			Stage:   domain.StageNotify,
			Err:     fmt.Errorf("%w: %w", domain.ErrPartialDelivery, notifyErr),
		}
	}

	data.Channels = channels
	data.Partial = false
	data.LastError = ""
	at := u.now().UTC()
	ok, err := u.orders.MarkDelivered(ctx, repository.NoTX, o.ID, data, at)
	if err != nil {
		metrics.IncDelivery(ptype, "failed")
		log.Error().Err(err).Msg("marking order delivered failed")
		return nil, &domain.DeliveryError{OrderID: orderID, Stage: domain.StagePersist, Err: err}
	}
	if !ok {
		// a concurrent attempt finished first
		metrics.IncDelivery(ptype, "skipped")
		return u.orders.FindByID(ctx, repository.NoTX, o.ID)
	}
	o.Delivered = true
	o.DeliveredAt = &at
	o.DeliveryData = data

	metrics.IncDelivery(ptype, "delivered")
	metrics.ObserveDelivery(ptype, time.Since(start).Seconds())
	log.Info().Interface("channels", channels).Msg("order delivered")
	u.out.publish(ctx, orderEvent(adapter.EventOrderDelivered, o))
	return o, nil
}

// block marks the order so the reconciler stops retrying it. A later successful
// delivery overwrites the marker.
func (u *deliveryUC) block(ctx context.Context, o *model.Order, cause error) {
	data := &model.DeliveryData{Blocked: true, LastError: cause.Error()}
	if err := u.orders.SaveDeliveryData(ctx, repository.NoTX, o.ID, data); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("recording blocked delivery failed")
		return
	}
	o.DeliveryData = data
}

func (u *deliveryUC) logFailure(log *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrMisconfiguredProduct):
		log.Error().Err(err).Str("failure", "misconfigured").Msg("delivery failed; fix the product before retrying")
	case errors.Is(err, domain.ErrOutOfStock):
		log.Error().Err(err).Str("failure", "out_of_stock").Msg("delivery failed; serial pool is empty")
	default:
		log.Warn().Err(err).Str("failure", "retryable").Msg("delivery failed; safe to retry")
	}
}

// fulfill performs the one type-specific action of the product.
func (u *deliveryUC) fulfill(ctx context.Context, o *model.Order, p *model.Product) (model.Fulfillment, error) {
	if err := p.Validate(); err != nil {
		if errors.Is(err, domain.ErrMisconfiguredProduct) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMisconfiguredProduct, err)
	}
	switch p.Type {
	case model.ProductTypeFile:
		return model.FileLink{URL: p.File.URL, Name: p.File.Name}, nil
	case model.ProductTypeSerialPool:
		return u.popSerial(ctx, o, p)
	case model.ProductTypeRole:
		return u.grantRole(ctx, o, p)
	}
	return nil, domain.ErrMisconfiguredProduct
}

func (u *deliveryUC) popSerial(ctx context.Context, o *model.Order, p *model.Product) (model.Fulfillment, error) {
	if u.locker != nil {
		key := "lock:serials:" + p.ID
		lockCtx, cancel := context.WithTimeout(ctx, u.out.callTimeout())
		token, err := u.locker.TryLock(lockCtx, key, u.lockTTL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: serial pool lock: %v", domain.ErrDeliveryFailed, err)
		}
		defer func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				u.log.Warn().Err(err).Str("product_id", p.ID).Msg("serial pool unlock failed")
			}
		}()
	}

	serial, err := u.serials.PopSerial(ctx, repository.NoTX, p.ID, o.ID)
	if errors.Is(err, domain.ErrOutOfStock) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pop serial: %v", domain.ErrDeliveryFailed, err)
	}
	return model.SerialAssignment{Serial: serial}, nil
}

func (u *deliveryUC) grantRole(ctx context.Context, o *model.Order, p *model.Product) (model.Fulfillment, error) {
	callCtx, cancel := context.WithTimeout(ctx, u.out.callTimeout())
	err := u.roles.AssignRole(callCtx, o.ServerID, o.BuyerID, p.Role.RoleID, p.Role.Duration)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: assign role: %v", domain.ErrDeliveryFailed, err)
	}

	rec := model.RoleGrantRecord{GuildID: o.ServerID, RoleID: p.Role.RoleID}
	g := model.NewRoleGrant(o, p.Role, u.now().UTC())
	metrics.IncRoleGrant(g != nil)
	if g == nil {
		return rec, nil
	}
	expires := g.ExpiresAt
	rec.ExpiresAt = &expires
	if err := u.grants.Save(ctx, repository.NoTX, g); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		// the role is granted; only its expiry is untracked
		u.log.Error().Err(err).Str("role_id", p.Role.RoleID).Msg("recording role grant failed; role will not expire")
		u.out.alert(ctx, fmt.Sprintf("Role grant of order %s was not recorded; remove role %s from <%s> manually at %s.",
			o.ID, p.Role.RoleID, o.BuyerID, g.RevocableAt().Format(time.RFC3339)))
	}
	return rec, nil
}

// notify tries the direct message first and falls back to email.
// It returns the channels that reached the buyer, or the joined channel errors.
func (u *deliveryUC) notify(ctx context.Context, o *model.Order, p *model.Product, f model.Fulfillment) ([]model.NoticeChannel, error) {
	log := logging.With(ctx, u.log)
	text := u.noticeText(ctx, o, p, f)

	callCtx, cancel := context.WithTimeout(ctx, u.out.callTimeout())
	dmErr := u.dm.SendDirect(callCtx, o.BuyerID, text)
	cancel()
	if dmErr == nil {
		metrics.IncNotification(string(model.ChannelDirectMessage), "sent")
		return []model.NoticeChannel{model.ChannelDirectMessage}, nil
	}
	status := "error"
	if errors.Is(dmErr, domain.ErrDirectMessagesBlocked) {
		status = "blocked"
	}
	metrics.IncNotification(string(model.ChannelDirectMessage), status)
	log.Warn().Err(dmErr).Msg("direct message failed; falling back to email")

	if u.email == nil || o.BuyerEmail == "" {
		return nil, errors.Join(fmt.Errorf("dm: %w", dmErr), errors.New("email: no address or channel"))
	}
	callCtx, cancel = context.WithTimeout(ctx, u.out.callTimeout())
	mailErr := u.email.SendEmail(callCtx, o.BuyerEmail, u.texts.T("notice.subject", p.Name), text)
	cancel()
	if mailErr != nil {
		metrics.IncNotification(string(model.ChannelEmail), "error")
		return nil, errors.Join(fmt.Errorf("dm: %w", dmErr), fmt.Errorf("email: %w", mailErr))
	}
	metrics.IncNotification(string(model.ChannelEmail), "sent")
	return []model.NoticeChannel{model.ChannelEmail}, nil
}

func (u *deliveryUC) noticeText(ctx context.Context, o *model.Order, p *model.Product, f model.Fulfillment) string {
	var b strings.Builder
	b.WriteString(u.texts.T("notice.thanks", p.Name))
	b.WriteString("\n\n")
	b.WriteString(f.Describe())
	b.WriteString("\n\n")
	b.WriteString(u.texts.T("notice.order", o.ID))

	if u.tokens == nil || u.reviewURL == "" {
		return b.String()
	}
	token, err := u.tokens.Issue(o.ID, o.BuyerID)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("review token not issued")
		return b.String()
	}
	link := u.reviewURL
	if strings.Contains(link, "?") {
		link += "&"
	} else {
		link += "?"
	}
	b.WriteString("\n")
	b.WriteString(u.texts.T("notice.review", link+"token="+url.QueryEscape(token)))
	return b.String()
}

func defaultTexts() adapter.Translator {
	t, err := i18n.Load(i18n.DefaultLang)
	if err != nil {
		// the english locale is embedded
		panic(err)
	}
	return t
}
