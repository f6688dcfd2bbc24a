package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/adapter"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/i18n"
	"channelcast/internal/infra/logging"
	"channelcast/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ChannelUseCase = (*channelUC)(nil)

// Link sources, also used as metric labels.
const (
	SourceCommand    = "command"
	SourceForward    = "forward"
	SourceMembership = "membership"
)

// ChannelUseCase manages the channel directory on behalf of users and
// reacts to changes of the bot's own membership in channels.
type ChannelUseCase interface {
	// LinkByRef resolves "@name", "-100..." or a t.me link and binds it to the user's owner.
	LinkByRef(ctx context.Context, userID int64, ref string) (*model.ChannelBinding, error)
	// LinkChat binds an already resolved chat, verifying the bot is an admin there.
	LinkChat(ctx context.Context, userID int64, chat model.ChatInfo, source string) (*model.ChannelBinding, error)
	HandleMembershipChange(ctx context.Context, ev model.MembershipChange) error
	List(ctx context.Context, userID int64) ([]*model.ChannelBinding, error)
	Unlink(ctx context.Context, userID, channelID int64) (bool, error)
}

type channelUC struct {
	repo       repository.ChannelRepository
	tm         repository.TransactionManager
	bot        adapter.TelegramBotAdapter
	ownership  Ownership
	translator *i18n.Translator
	log        *zerolog.Logger
}

func NewChannelUseCase(
	repo repository.ChannelRepository,
	bot adapter.TelegramBotAdapter,
	ownership Ownership,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) *channelUC {
	return &channelUC{
		repo:       repo,
		bot:        bot,
		ownership:  ownership,
		translator: translator,
		log:        logger,
	}
}

// WithTxManager makes linking atomic: the channel's metadata refresh for every
// owner and the new binding commit together. Without one both writes run on
// the pool directly.
func (uc *channelUC) WithTxManager(tm repository.TransactionManager) *channelUC {
	uc.tm = tm
	return uc
}

func (uc *channelUC) withTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if uc.tm == nil {
		return fn(ctx, repository.NoTX)
	}
	return uc.tm.WithTx(ctx, fn)
}

// NormalizeChannelRef turns user input into something ResolveChat accepts.
func NormalizeChannelRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	for _, p := range []string{"https://", "http://"} {
		ref = strings.TrimPrefix(ref, p)
	}
	if rest, ok := strings.CutPrefix(ref, "t.me/"); ok {
		ref = strings.Trim(rest, "/")
		if i := strings.IndexByte(ref, '/'); i >= 0 {
			ref = ref[:i]
		}
	}
	if ref == "" || ref == "@" {
		return "", fmt.Errorf("%w: empty channel reference", domain.ErrInvalidArgument)
	}
	if strings.HasPrefix(ref, "-100") {
		if _, err := strconv.ParseInt(ref, 10, 64); err != nil {
			return "", fmt.Errorf("%w: bad channel id %q", domain.ErrInvalidArgument, ref)
		}
		return ref, nil
	}
	if strings.ContainsAny(ref, " \t\n") {
		return "", fmt.Errorf("%w: bad channel username %q", domain.ErrInvalidArgument, ref)
	}
	return model.NormalizeHandle(ref), nil
}

func (uc *channelUC) LinkByRef(ctx context.Context, userID int64, ref string) (*model.ChannelBinding, error) {
	defer logging.TraceDuration(uc.log, "ChannelUC.LinkByRef")()

	norm, err := NormalizeChannelRef(ref)
	if err != nil {
		return nil, err
	}
	chat, err := uc.bot.ResolveChat(ctx, norm)
	if err != nil {
		return nil, err
	}
	return uc.LinkChat(ctx, userID, chat, SourceCommand)
}

func (uc *channelUC) LinkChat(ctx context.Context, userID int64, chat model.ChatInfo, source string) (*model.ChannelBinding, error) {
	if !chat.IsChannel() {
		return nil, domain.ErrNotAChannel
	}
	status, err := uc.bot.BotStatus(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if !status.IsAdmin() {
		return nil, domain.ErrNotAdmin
	}
	return uc.bind(ctx, uc.ownership.OwnerOf(userID), chat, source)
}

func (uc *channelUC) bind(ctx context.Context, ownerID int64, chat model.ChatInfo, source string) (*model.ChannelBinding, error) {
	b, err := model.NewChannelBinding(ownerID, chat.ID, chat.Title, chat.Username)
	if err != nil {
		return nil, err
	}
	err = uc.withTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		// Other owners of the same channel see the current title and handle too.
		if _, err := uc.repo.RefreshChannel(ctx, tx, b.ChannelID, b.Title, b.Username); err != nil {
			return err
		}
		return uc.repo.Upsert(ctx, tx, b)
	})
	if err != nil {
		uc.log.Error().Err(err).Int64("owner_id", ownerID).Int64("channel_id", chat.ID).Msg("channel upsert failed")
		return nil, err
	}
	metrics.IncChannelLinked(source)
	uc.log.Info().Int64("owner_id", ownerID).Int64("channel_id", chat.ID).Str("source", source).Msg("channel linked")
	return b, nil
}

// HandleMembershipChange keeps the directory in step with the bot's role in channels.
// Promotion links the channel for the acting user, leaving or being kicked unlinks it
// for everyone, and every other transition is ignored.
func (uc *channelUC) HandleMembershipChange(ctx context.Context, ev model.MembershipChange) error {
	defer logging.TraceDuration(uc.log, "ChannelUC.HandleMembershipChange")()

	if !ev.Chat.IsChannel() {
		return nil
	}
	log := uc.log.With().Int64("channel_id", ev.Chat.ID).Int64("actor_id", ev.ActorID).
		Str("old", string(ev.OldStatus)).Str("new", string(ev.NewStatus)).Logger()

	switch {
	case ev.NewStatus.IsAdmin():
		if ev.ActorID == 0 && !uc.ownership.SingleTenant {
			log.Warn().Msg("promotion without actor; cannot attribute channel")
			return nil
		}
		b, err := uc.bind(ctx, uc.ownership.OwnerOf(ev.ActorID), ev.Chat, SourceMembership)
		if err != nil {
			return err
		}
		if ev.ActorID != 0 {
			// Best effort: the actor may never have started a private chat with the bot.
			if err := uc.bot.SendMessage(ctx, ev.ActorID, uc.translator.T("channel_linked", b.DisplayName())); err != nil {
				log.Debug().Err(err).Msg("link notice not delivered")
			}
		}
		return nil
	case ev.NewStatus.IsGone():
		n, err := uc.repo.RemoveChannel(ctx, repository.NoTX, ev.Chat.ID)
		if err != nil {
			log.Error().Err(err).Msg("channel removal failed")
			return err
		}
		metrics.AddBindingsRemoved("demoted", n)
		log.Info().Int64("removed", n).Msg("channel unlinked after membership change")
		return nil
	default:
		log.Debug().Msg("membership change ignored")
		return nil
	}
}

func (uc *channelUC) List(ctx context.Context, userID int64) ([]*model.ChannelBinding, error) {
	return uc.repo.ListByOwner(ctx, repository.NoTX, uc.ownership.OwnerOf(userID))
}

// Unlink drops one binding. Both the bot and the operator API go through here;
// an owner id resolves to itself, so the API may pass the owner from its path.
func (uc *channelUC) Unlink(ctx context.Context, userID, channelID int64) (bool, error) {
	ok, err := uc.repo.Remove(ctx, repository.NoTX, uc.ownership.OwnerOf(userID), channelID)
	if err != nil {
		return false, err
	}
	if ok {
		metrics.AddBindingsRemoved("operator", 1)
		uc.log.Info().Int64("owner_id", uc.ownership.OwnerOf(userID)).Int64("channel_id", channelID).Msg("binding removed")
	}
	return ok, nil
}
