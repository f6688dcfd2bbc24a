package repository

import (
	"context"
	"time"

	"channelcast/internal/domain/model"
)

// SessionRepository is the port for per-user compose state.
type SessionRepository interface {
	// Get never returns domain.ErrNotFound: an unknown user gets a fresh idle session.
	Get(ctx context.Context, userID int64) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	// Reset sets the session to idle with an empty draft, keeping authorization.
	Reset(ctx context.Context, userID int64) error
}

// Locker guards a critical section across workers (and instances, for the Redis implementation).
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
