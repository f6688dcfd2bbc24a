package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps compose sessions in Redis so several bot instances can
// share them. The key TTL is the idle bound: every Save pushes it forward.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionRepo(client RedisClient, idleTTL time.Duration, now func() time.Time) *SessionRepo {
	if idleTTL <= 0 {
		idleTTL = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &SessionRepo{client: client, ttl: idleTTL, now: now}
}

func (s *SessionRepo) sessionKey(userID int64) string {
	return fmt.Sprintf("compose_state:%d", userID)
}

func (s *SessionRepo) Get(ctx context.Context, userID int64) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(userID))
	if errors.Is(err, redis.Nil) {
		return model.NewSession(userID, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w: %v", domain.ErrStoreUnavailable, err)
	}

	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		// a corrupt entry is treated as absent
		return model.NewSession(userID, s.now()), nil
	}
	sess.UserID = userID
	return &sess, nil
}

func (s *SessionRepo) Save(ctx context.Context, sess *model.Session) error {
	cp := sess.Clone()
	cp.Touch(s.now())
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.sessionKey(sess.UserID), data, s.ttl); err != nil {
		return fmt.Errorf("save session: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionRepo) Reset(ctx context.Context, userID int64) error {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if sess.Step == model.StepIdle && len(sess.Draft) == 0 && !sess.Authorized {
		return s.client.Del(ctx, s.sessionKey(userID))
	}
	sess.Reset()
	return s.Save(ctx, sess)
}
