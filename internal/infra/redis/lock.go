// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"membership-billing/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisLocker is a single-instance SET NX lock released by token.
type RedisLocker struct {
	cli     redis.Cmdable
	retries int
	backoff time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, retries: 5, backoff: 50 * time.Millisecond}
}

// TryLock returns domain.ErrAlreadyExists when key stays held for all retries.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < l.retries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err == nil && ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	return "", domain.ErrAlreadyExists
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
