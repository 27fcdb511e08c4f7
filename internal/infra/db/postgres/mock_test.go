//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
	red "discord-storefront/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerProductRepo mocks the database repository that the product decorator wraps.
type mockInnerProductRepo struct {
	SaveFunc         func(ctx context.Context, tx repository.Tx, p *model.Product) error
	DeleteFunc       func(ctx context.Context, tx repository.Tx, id string) error
	FindByIDFunc     func(ctx context.Context, tx repository.Tx, id string) (*model.Product, error)
	ListByServerFunc func(ctx context.Context, tx repository.Tx, serverID string, activeOnly bool) ([]*model.Product, error)
	RecordSaleFunc   func(ctx context.Context, tx repository.Tx, id string) (repository.SaleOutcome, error)
	AdjustStockFunc  func(ctx context.Context, tx repository.Tx, id string, delta int64) error
}

func (m *mockInnerProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerProductRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return m.DeleteFunc(ctx, tx, id)
}
func (m *mockInnerProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerProductRepo) ListByServer(ctx context.Context, tx repository.Tx, serverID string, activeOnly bool) ([]*model.Product, error) {
	return m.ListByServerFunc(ctx, tx, serverID, activeOnly)
}
func (m *mockInnerProductRepo) RecordSale(ctx context.Context, tx repository.Tx, id string) (repository.SaleOutcome, error) {
	return m.RecordSaleFunc(ctx, tx, id)
}
func (m *mockInnerProductRepo) AdjustStock(ctx context.Context, tx repository.Tx, id string, delta int64) error {
	return m.AdjustStockFunc(ctx, tx, id, delta)
}

// mockRedisClient is an in-memory stand-in for the Redis wrapper; Func fields override.
type mockRedisClient struct {
	data    map[string]string
	deleted []string

	GetFunc func(ctx context.Context, key string) (string, error)
}

var _ red.RedisClient = &mockRedisClient{}

func newMockRedisClient() *mockRedisClient { return &mockRedisClient{data: map[string]string{}} }

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deleted = append(m.deleted, keys...)
	return nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error                      { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return -1, nil
}
func (m *mockRedisClient) Close() error { return nil }
