// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"channelcast/internal/domain"
	"channelcast/internal/domain/ports/repository"

	"github.com/google/uuid"
)

var _ repository.Locker = (*RedisLocker)(nil)

// RedisLocker is a single-key SETNX lease; Unlock only deletes a lease it owns.
type RedisLocker struct {
	client  RedisClient
	retries int
	backoff time.Duration
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{client: c, retries: 3, backoff: 50 * time.Millisecond}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < l.retries; i++ {
		ok, err := l.client.SetNX(ctx, key, token, ttl)
		if err == nil && ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	return "", domain.ErrBroadcastRunning
}

const luaUnlock = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.client.Eval(ctx, luaUnlock, []string{key}, token)
	return err
}
