package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"channelcast/internal/domain"
	"channelcast/internal/domain/ports/repository"
)

var _ repository.Locker = (*Locker)(nil)

type lease struct {
	token   string
	expires time.Time
}

// Locker is the single-process counterpart of the Redis locker.
type Locker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    Clock
}

func NewLocker(now Clock) *Locker {
	if now == nil {
		now = time.Now
	}
	return &Locker{leases: make(map[string]lease), now: now}
}

// TryLock fails fast with domain.ErrBroadcastRunning when key is held and unexpired.
func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.leases[key]; ok && now.Before(cur.expires) {
		return "", domain.ErrBroadcastRunning
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}
	return token, nil
}

// Unlock releases key only if token still owns it.
func (l *Locker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.leases[key]; ok && cur.token == token {
		delete(l.leases, key)
	}
	return nil
}
