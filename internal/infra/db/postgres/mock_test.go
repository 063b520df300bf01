//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

// --- Mocks for Cache Decorator Tests ---

type mockInnerPackageRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, p *model.Package) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Package, error)
	ListAllFunc  func(ctx context.Context, tx repository.Tx) ([]*model.Package, error)
}

func (m *mockInnerPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return m.ListAllFunc(ctx, tx)
}

// mockRedisClient is an in-memory stand-in; nil funcs fall back to the map.
type mockRedisClient struct {
	data    map[string]string
	GetFunc func(ctx context.Context, key string) (string, error)
	DelFunc func(ctx context.Context, keys ...string) error
}

func newMockRedis() *mockRedisClient { return &mockRedisClient{data: map[string]string{}} }

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}
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
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
