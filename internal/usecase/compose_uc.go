package usecase

import (
	"context"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ComposeUseCase = (*composeUC)(nil)

// ComposeUseCase drives a user's draft from idle through collecting.
type ComposeUseCase interface {
	// Start returns the user to idle with an empty draft.
	Start(ctx context.Context, userID int64) error
	// BeginCollect enters collecting; it fails with domain.ErrNoChannels when the user has nowhere to post.
	BeginCollect(ctx context.Context, userID int64) error
	// Collect appends one item and returns the draft length. Outside collecting it
	// returns domain.ErrNotCollecting and changes nothing.
	Collect(ctx context.Context, userID int64, item model.DraftItem) (int, error)
	Cancel(ctx context.Context, userID int64) error
	State(ctx context.Context, userID int64) (*model.Session, error)
}

type composeUC struct {
	sessions  repository.SessionRepository
	channels  repository.ChannelRepository
	ownership Ownership
	log       *zerolog.Logger
}

func NewComposeUseCase(
	sessions repository.SessionRepository,
	channels repository.ChannelRepository,
	ownership Ownership,
	logger *zerolog.Logger,
) *composeUC {
	return &composeUC{sessions: sessions, channels: channels, ownership: ownership, log: logger}
}

func (uc *composeUC) Start(ctx context.Context, userID int64) error {
	return uc.sessions.Reset(ctx, userID)
}

func (uc *composeUC) BeginCollect(ctx context.Context, userID int64) error {
	defer logging.TraceDuration(uc.log, "ComposeUC.BeginCollect")()

	n, err := uc.channels.CountByOwner(ctx, repository.NoTX, uc.ownership.OwnerOf(userID))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNoChannels
	}
	sess, err := uc.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess.BeginCollecting()
	return uc.sessions.Save(ctx, sess)
}

func (uc *composeUC) Collect(ctx context.Context, userID int64, item model.DraftItem) (int, error) {
	if err := item.Validate(); err != nil {
		return 0, err
	}
	sess, err := uc.sessions.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !sess.Collecting() {
		return 0, domain.ErrNotCollecting
	}
	sess.Append(item)
	if err := uc.sessions.Save(ctx, sess); err != nil {
		return 0, err
	}
	uc.log.Debug().Int64("tg_id", userID).Str("kind", string(item.Kind)).Int("draft_len", len(sess.Draft)).Msg("draft item collected")
	return len(sess.Draft), nil
}

func (uc *composeUC) Cancel(ctx context.Context, userID int64) error {
	return uc.sessions.Reset(ctx, userID)
}

func (uc *composeUC) State(ctx context.Context, userID int64) (*model.Session, error) {
	return uc.sessions.Get(ctx, userID)
}
