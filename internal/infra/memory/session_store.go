// Package memory holds process-local implementations of the session ports.
package memory

import (
	"context"
	"sync"
	"time"

	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionStore)(nil)

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// SessionStore keeps compose sessions in a mutex-guarded map. Sessions that
// have not been touched for idleTTL are dropped by Sweep. An evicted user
// starts over as idle and, when a password gate is on, unauthorized.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*model.Session
	now      Clock
	idleTTL  time.Duration
}

func NewSessionStore(idleTTL time.Duration, now Clock) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		sessions: make(map[int64]*model.Session),
		now:      now,
		idleTTL:  idleTTL,
	}
}

func (s *SessionStore) Get(_ context.Context, userID int64) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess.Clone(), nil
	}
	return model.NewSession(userID, s.now()), nil
}

func (s *SessionStore) Save(_ context.Context, sess *model.Session) error {
	cp := sess.Clone()
	cp.Touch(s.now())
	s.mu.Lock()
	s.sessions[sess.UserID] = cp
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Reset(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	sess.Reset()
	sess.Touch(s.now())
	return nil
}

// Sweep drops sessions idle for longer than idleTTL and returns how many went.
// A non-positive idleTTL disables eviction.
func (s *SessionStore) Sweep(_ context.Context) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
