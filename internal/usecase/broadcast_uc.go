package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/adapter"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/logging"
	"channelcast/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Compile-time check
var _ BroadcastUseCase = (*broadcastUC)(nil)

// Plan is a validated broadcast ready to run: a frozen copy of the draft and
// the owner's channels at the time /done was received.
type Plan struct {
	ID       ulid.ULID
	UserID   int64
	OwnerID  int64
	Items    []model.DraftItem
	Channels []*model.ChannelBinding

	lockToken string
}

// ChannelFailure is a channel that kept its binding but did not receive the whole draft.
type ChannelFailure struct {
	Channel *model.ChannelBinding
	Err     error
}

// Report is the outcome of one broadcast.
type Report struct {
	PlanID    ulid.ULID
	Items     int
	Delivered []*model.ChannelBinding
	Removed   []*model.ChannelBinding
	Failed    []ChannelFailure
}

// BroadcastUseCase sends a collected draft to every channel of the user's owner.
type BroadcastUseCase interface {
	// Prepare checks, in order: the user is collecting (domain.ErrNothingToPost, session
	// untouched), the draft is non-empty (domain.ErrEmptyDraft) and the owner has
	// channels (domain.ErrNoChannels). The last two reset the session.
	Prepare(ctx context.Context, userID int64) (*Plan, error)
	// Execute replays the draft into each channel in turn. A channel that no longer
	// exists loses its binding; any other failure is reported and the binding kept.
	// The session is reset afterwards whatever the outcome.
	Execute(ctx context.Context, plan *Plan) (*Report, error)
}

type broadcastUC struct {
	sessions  repository.SessionRepository
	channels  repository.ChannelRepository
	sender    adapter.Sender
	locker    repository.Locker
	limiter   *rate.Limiter
	lockTTL   time.Duration
	ownership Ownership
	log       *zerolog.Logger
}

// NewBroadcastUseCase paces all sends through one limiter of ratePerSec. A nil
// locker disables the one-broadcast-per-user guard.
func NewBroadcastUseCase(
	sessions repository.SessionRepository,
	channels repository.ChannelRepository,
	sender adapter.Sender,
	locker repository.Locker,
	ratePerSec int,
	lockTTL time.Duration,
	ownership Ownership,
	logger *zerolog.Logger,
) *broadcastUC {
	limit, burst := rate.Inf, 1
	if ratePerSec > 0 {
		limit, burst = rate.Limit(ratePerSec), ratePerSec
	}
	return &broadcastUC{
		sessions:  sessions,
		channels:  channels,
		sender:    sender,
		locker:    locker,
		limiter:   rate.NewLimiter(limit, burst),
		lockTTL:   lockTTL,
		ownership: ownership,
		log:       logger,
	}
}

func lockKey(userID int64) string { return "broadcast:" + strconv.FormatInt(userID, 10) }

func (uc *broadcastUC) Prepare(ctx context.Context, userID int64) (*Plan, error) {
	defer logging.TraceDuration(uc.log, "BroadcastUC.Prepare")()

	sess, err := uc.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sess.Collecting() {
		metrics.IncBroadcastRun("nothing_to_post")
		return nil, domain.ErrNothingToPost
	}

	plan := &Plan{
		ID:      ulid.Make(),
		UserID:  userID,
		OwnerID: uc.ownership.OwnerOf(userID),
	}
	if uc.locker != nil {
		tok, err := uc.locker.TryLock(ctx, lockKey(userID), uc.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrBroadcastRunning) {
				metrics.IncBroadcastRun("busy")
			}
			return nil, err
		}
		plan.lockToken = tok
	}

	if len(sess.Draft) == 0 {
		metrics.IncBroadcastRun("empty_draft")
		return nil, uc.abort(ctx, plan, domain.ErrEmptyDraft)
	}
	chans, err := uc.channels.ListByOwner(ctx, repository.NoTX, plan.OwnerID)
	if err != nil {
		uc.unlock(ctx, plan)
		return nil, err
	}
	if len(chans) == 0 {
		metrics.IncBroadcastRun("no_channels")
		return nil, uc.abort(ctx, plan, domain.ErrNoChannels)
	}

	plan.Items = append([]model.DraftItem(nil), sess.Draft...)
	plan.Channels = chans
	return plan, nil
}

// abort resets the session, releases the lock and returns cause (or the reset failure).
func (uc *broadcastUC) abort(ctx context.Context, plan *Plan, cause error) error {
	defer uc.unlock(ctx, plan)
	if err := uc.sessions.Reset(ctx, plan.UserID); err != nil {
		return fmt.Errorf("%w (reset failed: %v)", cause, err)
	}
	return cause
}

func (uc *broadcastUC) unlock(ctx context.Context, plan *Plan) {
	if uc.locker == nil || plan.lockToken == "" {
		return
	}
	if err := uc.locker.Unlock(context.WithoutCancel(ctx), lockKey(plan.UserID), plan.lockToken); err != nil {
		uc.log.Warn().Err(err).Int64("tg_id", plan.UserID).Msg("broadcast lock release failed")
	}
}

func (uc *broadcastUC) Execute(ctx context.Context, plan *Plan) (*Report, error) {
	defer uc.unlock(ctx, plan)
	start := time.Now()
	log := uc.log.With().Str("plan_id", plan.ID.String()).Int64("owner_id", plan.OwnerID).Logger()

	report := &Report{PlanID: plan.ID, Items: len(plan.Items)}
	for _, ch := range plan.Channels {
		err := uc.deliver(ctx, ch.ChannelID, plan.Items)
		switch {
		case err == nil:
			report.Delivered = append(report.Delivered, ch)
			metrics.IncBroadcastChannel("delivered")
		case errors.Is(err, domain.ErrTargetUnreachable):
			if _, rmErr := uc.channels.Remove(context.WithoutCancel(ctx), repository.NoTX, plan.OwnerID, ch.ChannelID); rmErr != nil {
				log.Error().Err(rmErr).Int64("channel_id", ch.ChannelID).Msg("failed to drop unreachable channel")
				report.Failed = append(report.Failed, ChannelFailure{Channel: ch, Err: err})
				metrics.IncBroadcastChannel("failed")
				continue
			}
			log.Warn().Err(err).Int64("channel_id", ch.ChannelID).Msg("channel unreachable; binding removed")
			report.Removed = append(report.Removed, ch)
			metrics.IncBroadcastChannel("removed")
			metrics.AddBindingsRemoved("unreachable", 1)
		default:
			log.Warn().Err(err).Int64("channel_id", ch.ChannelID).Msg("broadcast to channel failed")
			report.Failed = append(report.Failed, ChannelFailure{Channel: ch, Err: err})
			metrics.IncBroadcastChannel("failed")
		}
	}

	metrics.IncBroadcastRun("executed")
	metrics.ObserveBroadcastDuration(time.Since(start).Seconds())
	log.Info().
		Int("items", report.Items).
		Int("delivered", len(report.Delivered)).
		Int("removed", len(report.Removed)).
		Int("failed", len(report.Failed)).
		Dur("took", time.Since(start)).
		Msg("broadcast finished")

	if err := uc.sessions.Reset(context.WithoutCancel(ctx), plan.UserID); err != nil {
		return report, fmt.Errorf("reset session after broadcast: %w", err)
	}
	return report, nil
}

// deliver sends items to one channel in order and stops at the first failure.
func (uc *broadcastUC) deliver(ctx context.Context, channelID int64, items []model.DraftItem) error {
	for _, item := range items {
		if err := uc.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransientSend, err)
		}
		if err := uc.sender.SendItem(ctx, channelID, item); err != nil {
			result := "failed"
			if errors.Is(err, domain.ErrTargetUnreachable) {
				result = "unreachable"
			}
			metrics.IncBroadcastSend(string(item.Kind), result)
			return err
		}
		metrics.IncBroadcastSend(string(item.Kind), "ok")
	}
	return nil
}
