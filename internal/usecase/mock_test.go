//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	if o.DeliveryData != nil {
		d := *o.DeliveryData
		d.Channels = append([]model.NoticeChannel(nil), o.DeliveryData.Channels...)
		c.DeliveryData = &d
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}

func cloneProduct(p *model.Product) *model.Product {
	c := *p
	if p.Stock != nil {
		c.Stock = ptr(*p.Stock)
	}
	return &c
}

// =============================
// Repositories
// =============================

// ---- Mock ProductRepository ----

type MockProductRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Product

	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id string) (*model.Product, error)
	RecordSaleFunc func(ctx context.Context, tx repository.Tx, id string) (repository.SaleOutcome, error)
}

var _ repository.ProductRepository = (*MockProductRepo)(nil)

func NewMockProductRepo() *MockProductRepo {
	return &MockProductRepo{byID: map[string]*model.Product{}}
}

func (m *MockProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = cloneProduct(p)
	return nil
}

func (m *MockProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (m *MockProductRepo) ListByServer(ctx context.Context, tx repository.Tx, serverID string, activeOnly bool) ([]*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Product
	for _, p := range m.byID {
		if p.ServerID == serverID && (!activeOnly || p.Active) {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockProductRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *MockProductRepo) RecordSale(ctx context.Context, tx repository.Tx, id string) (repository.SaleOutcome, error) {
	if m.RecordSaleFunc != nil {
		return m.RecordSaleFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	p.SalesCount++
	switch {
	case p.Stock == nil:
		return repository.SaleUntracked, nil
	case *p.Stock > 0:
		*p.Stock--
		return repository.SaleDecremented, nil
	default:
		return repository.SaleOversold, nil
	}
}

func (m *MockProductRepo) AdjustStock(ctx context.Context, tx repository.Tx, id string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock == nil {
		return nil
	}
	n := *p.Stock + delta
	if n < 0 {
		n = 0
	}
	p.Stock = &n
	return nil
}

// ---- Mock SerialRepository ----

type MockSerialRepo struct {
	mu       sync.Mutex
	pool     map[string][]string // productID -> unassigned, in insertion order
	assigned map[string]string   // orderID -> serial

	PopSerialFunc func(ctx context.Context, tx repository.Tx, productID, orderID string) (string, error)
	Pops          int
}

var _ repository.SerialRepository = (*MockSerialRepo)(nil)

func NewMockSerialRepo() *MockSerialRepo {
	return &MockSerialRepo{pool: map[string][]string{}, assigned: map[string]string{}}
}

func (m *MockSerialRepo) AddSerials(ctx context.Context, tx repository.Tx, productID string, serials []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	for _, s := range m.pool[productID] {
		seen[s] = true
	}
	for _, s := range m.assigned {
		seen[s] = true
	}
	added := 0
	for _, s := range serials {
		if seen[s] {
			continue
		}
		seen[s] = true
		m.pool[productID] = append(m.pool[productID], s)
		added++
	}
	return added, nil
}

func (m *MockSerialRepo) PopSerial(ctx context.Context, tx repository.Tx, productID, orderID string) (string, error) {
	if m.PopSerialFunc != nil {
		return m.PopSerialFunc(ctx, tx, productID, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.assigned[orderID]; ok {
		return s, nil
	}
	pool := m.pool[productID]
	if len(pool) == 0 {
		return "", domain.ErrOutOfStock
	}
	s := pool[0]
	m.pool[productID] = pool[1:]
	m.assigned[orderID] = s
	m.Pops++
	return s, nil
}

func (m *MockSerialRepo) CountAvailable(ctx context.Context, tx repository.Tx, productID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pool[productID])), nil
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Order

	CreateFunc          func(ctx context.Context, tx repository.Tx, o *model.Order) error
	MarkDeliveredFunc   func(ctx context.Context, tx repository.Tx, id string, data *model.DeliveryData, at time.Time) (bool, error)
	SaveDeliveryDataErr error
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{byID: map[string]*model.Order{}}
}

func (m *MockOrderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if e.PaymentIntentID == o.PaymentIntentID {
			return domain.ErrAlreadyExists
		}
	}
	m.byID[o.ID] = cloneOrder(o)
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *MockOrderRepo) FindByPaymentIntent(ctx context.Context, tx repository.Tx, pi string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.PaymentIntentID == pi {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) List(ctx context.Context, tx repository.Tx, f repository.OrderFilter) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.byID {
		if f.ServerID != "" && o.ServerID != f.ServerID {
			continue
		}
		if f.BuyerID != "" && o.BuyerID != f.BuyerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MockOrderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockOrderRepo) SaveDeliveryData(ctx context.Context, tx repository.Tx, id string, data *model.DeliveryData) error {
	if m.SaveDeliveryDataErr != nil {
		return m.SaveDeliveryDataErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	d := *data
	o.DeliveryData = &d
	return nil
}

func (m *MockOrderRepo) MarkDelivered(ctx context.Context, tx repository.Tx, id string, data *model.DeliveryData, at time.Time) (bool, error) {
	if m.MarkDeliveredFunc != nil {
		return m.MarkDeliveredFunc(ctx, tx, id, data, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.Status != model.OrderStatusCompleted || o.Delivered {
		return false, nil
	}
	d := *data
	o.DeliveryData = &d
	o.Delivered = true
	o.DeliveredAt = &at
	return true, nil
}

func (m *MockOrderRepo) ListUndelivered(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.byID {
		if o.Status == model.OrderStatusCompleted && !o.Delivered && !o.ResourceConsumed() && !o.DeliveryBlocked() && o.UpdatedAt.Before(olderThan) {
			out = append(out, cloneOrder(o))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// put stores o as-is, for arranging test state.
func (m *MockOrderRepo) put(o *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[o.ID] = cloneOrder(o)
}

func (m *MockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// ---- Mock LedgerRepository ----

type MockLedgerRepo struct {
	mu      sync.Mutex
	entries []*model.LedgerEntry
}

var _ repository.LedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo { return &MockLedgerRepo{} }

func (m *MockLedgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.entries {
		if x.OrderID == e.OrderID {
			return domain.ErrAlreadyExists
		}
	}
	c := *e
	m.entries = append(m.entries, &c)
	return nil
}

func (m *MockLedgerRepo) FindByOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.entries {
		if x.OrderID == orderID {
			c := *x
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockLedgerRepo) TotalsByServer(ctx context.Context, tx repository.Tx, serverID string) ([]model.LedgerTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCur := map[string]*model.LedgerTotals{}
	var order []string
	for _, e := range m.entries {
		if e.ServerID != serverID {
			continue
		}
		t, ok := byCur[e.Currency]
		if !ok {
			t = &model.LedgerTotals{ServerID: serverID, Currency: e.Currency}
			byCur[e.Currency] = t
			order = append(order, e.Currency)
		}
		t.Sales++
		t.Revenue = t.Revenue.Add(e.Amount)
		t.Commission = t.Commission.Add(e.CommissionAmount)
	}
	out := make([]model.LedgerTotals, 0, len(order))
	for _, c := range order {
		out = append(out, *byCur[c])
	}
	return out, nil
}

func (m *MockLedgerRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ---- Mock ServerRepository ----

type MockServerRepo struct {
	mu   sync.Mutex
	byID map[string]*model.ServerSettings
}

var _ repository.ServerRepository = (*MockServerRepo)(nil)

func NewMockServerRepo() *MockServerRepo {
	return &MockServerRepo{byID: map[string]*model.ServerSettings{}}
}

func (m *MockServerRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.ServerSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.byID[s.ServerID] = &c
	return nil
}

func (m *MockServerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ServerSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s
	return &c, nil
}

// ---- Mock ReviewRepository ----

type MockReviewRepo struct {
	mu      sync.Mutex
	byOrder map[string]*model.Review
}

var _ repository.ReviewRepository = (*MockReviewRepo)(nil)

func NewMockReviewRepo() *MockReviewRepo {
	return &MockReviewRepo{byOrder: map[string]*model.Review{}}
}

func (m *MockReviewRepo) Create(ctx context.Context, tx repository.Tx, r *model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOrder[r.OrderID]; ok {
		return domain.ErrAlreadyExists
	}
	c := *r
	m.byOrder[r.OrderID] = &c
	return nil
}

func (m *MockReviewRepo) FindByOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byOrder[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *MockReviewRepo) ListByProduct(ctx context.Context, tx repository.Tx, productID string, limit int) ([]*model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Review
	for _, r := range m.byOrder {
		if r.ProductID == productID {
			c := *r
			out = append(out, &c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock RoleGrantRepository ----

type MockRoleGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*model.RoleGrant

	SaveErr error
}

var _ repository.RoleGrantRepository = (*MockRoleGrantRepo)(nil)

func NewMockRoleGrantRepo() *MockRoleGrantRepo {
	return &MockRoleGrantRepo{grants: map[string]*model.RoleGrant{}}
}

func (m *MockRoleGrantRepo) Save(ctx context.Context, tx repository.Tx, g *model.RoleGrant) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.grants {
		if x.OrderID == g.OrderID {
			return domain.ErrAlreadyExists
		}
	}
	c := *g
	m.grants[g.ID] = &c
	return nil
}

func (m *MockRoleGrantRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RoleGrant
	for _, g := range m.grants {
		if g.Due(now) {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRoleGrantRepo) MarkRevoked(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok {
		return domain.ErrNotFound
	}
	g.RevokedAt = &at
	return nil
}

func (m *MockRoleGrantRepo) all() []*model.RoleGrant {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RoleGrant
	for _, g := range m.grants {
		c := *g
		out = append(out, &c)
	}
	return out
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

// testEvent is the wire shape understood by MockPaymentGateway.
type testEvent struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	PaymentIntent string `json:"payment_intent"`
}

const testSignature = "valid-signature"

func signedEvent(typ adapter.PaymentEventType, paymentIntentID string) ([]byte, string) {
	b, _ := json.Marshal(testEvent{ID: "evt_" + uuid.NewString(), Type: string(typ), PaymentIntent: paymentIntentID})
	return b, testSignature
}

type MockPaymentGateway struct {
	mu      sync.Mutex
	Intents []adapter.PaymentIntent

	CreatePaymentIntentFunc func(ctx context.Context, amount int64, currency string, meta map[string]string) (*adapter.PaymentIntent, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, meta map[string]string) (*adapter.PaymentIntent, error) {
	if g.CreatePaymentIntentFunc != nil {
		return g.CreatePaymentIntentFunc(ctx, amount, currency, meta)
	}
	pi := adapter.PaymentIntent{ID: "pi_" + uuid.NewString(), ClientSecret: "secret_" + uuid.NewString(), Amount: amount, Currency: currency}
	g.mu.Lock()
	g.Intents = append(g.Intents, pi)
	g.mu.Unlock()
	return &pi, nil
}

func (g *MockPaymentGateway) ParseNotification(payload []byte, signature string) (*adapter.PaymentEvent, error) {
	if signature != testSignature {
		return nil, domain.ErrSignatureInvalid
	}
	var ev testEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.ID == "" {
		return nil, domain.ErrMalformedEvent
	}
	return &adapter.PaymentEvent{ID: ev.ID, Type: adapter.PaymentEventType(ev.Type), PaymentIntentID: ev.PaymentIntent}, nil
}

func (g *MockPaymentGateway) intentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Intents)
}

// ---- Mock GatewayRegistry ----

type MockGatewayRegistry struct {
	mu      sync.Mutex
	Gw      *MockPaymentGateway
	Servers map[string]bool // servers with credentials
	Evicted []string
}

var _ adapter.GatewayRegistry = (*MockGatewayRegistry)(nil)

func NewMockGatewayRegistry(servers ...string) *MockGatewayRegistry {
	r := &MockGatewayRegistry{Gw: &MockPaymentGateway{}, Servers: map[string]bool{}}
	for _, s := range servers {
		r.Servers[s] = true
	}
	return r
}

func (r *MockGatewayRegistry) Gateway(ctx context.Context, serverID string) (adapter.PaymentGateway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.Servers[serverID] {
		return nil, domain.ErrGatewayNotReady
	}
	return r.Gw, nil
}

func (r *MockGatewayRegistry) Evict(serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Evicted = append(r.Evicted, serverID)
}

// ---- Mock RoleAssigner ----

type roleCall struct {
	Guild, User, Role string
	Duration          time.Duration
}

type MockRoleAssigner struct {
	mu       sync.Mutex
	Assigned []roleCall
	Revoked  []roleCall

	AssignErr error
	RevokeErr error
}

var _ adapter.RoleAssigner = (*MockRoleAssigner)(nil)

func (m *MockRoleAssigner) AssignRole(ctx context.Context, guildID, userID, roleID string, d time.Duration) error {
	if m.AssignErr != nil {
		return m.AssignErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Assigned = append(m.Assigned, roleCall{guildID, userID, roleID, d})
	return nil
}

func (m *MockRoleAssigner) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	if m.RevokeErr != nil {
		return m.RevokeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Revoked = append(m.Revoked, roleCall{Guild: guildID, User: userID, Role: roleID})
	return nil
}

// ---- Mock notifiers ----

type sentNotice struct {
	To, Subject, Text string
}

type MockDirectNotifier struct {
	mu   sync.Mutex
	Sent []sentNotice
	Err  error
}

var _ adapter.DirectNotifier = (*MockDirectNotifier)(nil)

func (m *MockDirectNotifier) SendDirect(ctx context.Context, userID, text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentNotice{To: userID, Text: text})
	return nil
}

func (m *MockDirectNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

type MockEmailNotifier struct {
	mu   sync.Mutex
	Sent []sentNotice
	Err  error
}

var _ adapter.EmailNotifier = (*MockEmailNotifier)(nil)

func (m *MockEmailNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentNotice{To: to, Subject: subject, Text: body})
	return nil
}

type MockAlerter struct {
	mu     sync.Mutex
	Alerts []string
}

var _ adapter.OperatorAlerter = (*MockAlerter)(nil)

func (m *MockAlerter) Alert(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, text)
	return nil
}

func (m *MockAlerter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}

type MockEventPublisher struct {
	mu     sync.Mutex
	Events []adapter.OrderEvent
	Err    error
}

var _ adapter.EventPublisher = (*MockEventPublisher)(nil)

func (m *MockEventPublisher) Publish(ctx context.Context, ev adapter.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return m.Err
}

func (m *MockEventPublisher) types() []adapter.OrderEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adapter.OrderEventType, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}

// ---- In-memory Locker ----

// MockLocker blocks like the redis locker does until the key is free or ctx ends.
type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	Locks int
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	for {
		l.mu.Lock()
		if _, busy := l.held[key]; !busy {
			tok := uuid.NewString()
			l.held[key] = tok
			l.Locks++
			l.mu.Unlock()
			return tok, nil
		}
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", domain.ErrLockHeld
		case <-time.After(time.Millisecond):
		}
	}
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("lock not held")
	}
	delete(l.held, key)
	return nil
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	Err    error
}

var _ adapter.RateLimiter = (*MockRateLimiter)(nil)

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[key]++
	return m.counts[key] <= limit, nil
}

// ---- Mock ReviewTokenIssuer ----

// MockTokens encodes claims as "order|buyer" tokens.
type MockTokens struct{}

var _ adapter.ReviewTokenIssuer = MockTokens{}

func (MockTokens) Issue(orderID, buyerID string) (string, error) { return orderID + "|" + buyerID, nil }

func (MockTokens) Verify(token string) (*adapter.ReviewClaims, error) {
	for i := 0; i < len(token); i++ {
		if token[i] == '|' {
			return &adapter.ReviewClaims{OrderID: token[:i], BuyerID: token[i+1:]}, nil
		}
	}
	return nil, domain.ErrInvalidToken
}

// ---- Dispatcher ----

// recordingDispatcher remembers dispatched orders and optionally runs them inline.
type recordingDispatcher struct {
	mu      sync.Mutex
	ids     []string
	Err     error
	deliver func(orderID string)
}

func (d *recordingDispatcher) Dispatch(orderID string) error {
	if d.Err != nil {
		return d.Err
	}
	d.mu.Lock()
	d.ids = append(d.ids, orderID)
	d.mu.Unlock()
	if d.deliver != nil {
		d.deliver(orderID)
	}
	return nil
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}
