package usecase

import (
	"context"
	"crypto/subtle"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// AccessUseCase implements the optional shared-password gate in front of the bot.
type AccessUseCase interface {
	Enabled() bool
	// Check reports whether the user may use the bot right now.
	Check(ctx context.Context, userID int64) (bool, error)
	// Challenge puts the user in the awaiting-credential step.
	Challenge(ctx context.Context, userID int64) error
	// Awaiting reports whether the next text from the user is a password attempt.
	Awaiting(ctx context.Context, userID int64) (bool, error)
	// Submit checks a password attempt; a wrong one returns domain.ErrBadCredential.
	Submit(ctx context.Context, userID int64, password string) error
}

type accessUC struct {
	password []byte
	admins   map[int64]struct{}
	sessions repository.SessionRepository
	log      *zerolog.Logger
}

// NewAccessUseCase builds the gate. An empty password disables it; adminIDs always pass.
func NewAccessUseCase(password string, adminIDs []int64, sessions repository.SessionRepository, logger *zerolog.Logger) *accessUC {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &accessUC{password: []byte(password), admins: admins, sessions: sessions, log: logger}
}

func (uc *accessUC) Enabled() bool { return len(uc.password) > 0 }

func (uc *accessUC) Check(ctx context.Context, userID int64) (bool, error) {
	if !uc.Enabled() {
		return true, nil
	}
	if _, ok := uc.admins[userID]; ok {
		return true, nil
	}
	sess, err := uc.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return sess.Authorized, nil
}

func (uc *accessUC) Challenge(ctx context.Context, userID int64) error {
	sess, err := uc.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess.Step = model.StepAwaitingCredential
	sess.Draft = nil
	return uc.sessions.Save(ctx, sess)
}

func (uc *accessUC) Awaiting(ctx context.Context, userID int64) (bool, error) {
	sess, err := uc.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return sess.Step == model.StepAwaitingCredential, nil
}

func (uc *accessUC) Submit(ctx context.Context, userID int64, password string) error {
	if subtle.ConstantTimeCompare([]byte(password), uc.password) != 1 {
		uc.log.Warn().Int64("tg_id", userID).Msg("wrong bot password")
		return domain.ErrBadCredential
	}
	sess, err := uc.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess.Authorized = true
	sess.Reset()
	if err := uc.sessions.Save(ctx, sess); err != nil {
		return err
	}
	uc.log.Info().Int64("tg_id", userID).Msg("user authorized")
	return nil
}
