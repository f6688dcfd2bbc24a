package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/infra/i18n"
	"channelcast/internal/usecase"

	"github.com/rs/zerolog"
)

// BotFacade composes usecases into high-level bot commands.
// Methods return the reply text so the Telegram adapter just forwards it to the chat.
// A non-nil error means something unexpected happened; the reply is still usable.
type BotFacade struct {
	ChannelUC   ChannelUseCaseIface
	ComposeUC   ComposeUseCaseIface
	AccessUC    AccessUseCaseIface
	BroadcastUC BroadcastUseCaseIface

	t   *i18n.Translator
	log *zerolog.Logger
}

func NewBotFacade(
	channelUC ChannelUseCaseIface,
	composeUC ComposeUseCaseIface,
	accessUC AccessUseCaseIface,
	broadcastUC BroadcastUseCaseIface,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) *BotFacade {
	return &BotFacade{
		ChannelUC:   channelUC,
		ComposeUC:   composeUC,
		AccessUC:    accessUC,
		BroadcastUC: broadcastUC,
		t:           translator,
		log:         logger,
	}
}

func (b *BotFacade) T(key string, args ...interface{}) string { return b.t.T(key, args...) }

func (b *BotFacade) generic(err error) (string, error) {
	return b.t.T("error_generic"), err
}

// GateDecision is the password gate's verdict on one private message.
type GateDecision struct {
	// Allowed lets the message through to normal routing.
	Allowed bool
	// Granted is set on the message that just unlocked the bot; the reply
	// should carry the main menu.
	Granted bool
	// Reply, when not empty, answers a message the gate consumed.
	Reply string
}

// Guard runs the password gate for an incoming private message. When the
// decision is not Allowed the update is consumed and Reply should be sent back.
func (b *BotFacade) Guard(ctx context.Context, userID int64, text string) (GateDecision, error) {
	if b.AccessUC == nil || !b.AccessUC.Enabled() {
		return GateDecision{Allowed: true}, nil
	}
	ok, err := b.AccessUC.Check(ctx, userID)
	if err != nil {
		return b.gateFailure(err)
	}
	if ok {
		return GateDecision{Allowed: true}, nil
	}

	awaiting, err := b.AccessUC.Awaiting(ctx, userID)
	if err != nil {
		return b.gateFailure(err)
	}
	if awaiting && text != "" && !strings.HasPrefix(text, "/") {
		switch err := b.AccessUC.Submit(ctx, userID, strings.TrimSpace(text)); {
		case err == nil:
			return GateDecision{Granted: true, Reply: b.t.T("password_ok") + "\n\n" + b.t.T("welcome")}, nil
		case errors.Is(err, domain.ErrBadCredential):
			return GateDecision{Reply: b.t.T("password_wrong")}, nil
		default:
			return b.gateFailure(err)
		}
	}
	if err := b.AccessUC.Challenge(ctx, userID); err != nil {
		return b.gateFailure(err)
	}
	return GateDecision{Reply: b.t.T("password_prompt")}, nil
}

func (b *BotFacade) gateFailure(err error) (GateDecision, error) {
	reply, err := b.generic(err)
	return GateDecision{Reply: reply}, err
}

// HandleStart drops any draft in progress and shows the main menu.
func (b *BotFacade) HandleStart(ctx context.Context, userID int64) (string, error) {
	if err := b.ComposeUC.Start(ctx, userID); err != nil {
		return b.generic(err)
	}
	return b.t.T("welcome"), nil
}

func (b *BotFacade) HandleHelp(ctx context.Context, userID int64) (string, error) {
	return b.t.T("help"), nil
}

// HandleAddChannel links the channel named in args ("@name", "-100..." or a t.me link).
func (b *BotFacade) HandleAddChannel(ctx context.Context, userID int64, args string) (string, error) {
	if strings.TrimSpace(args) == "" {
		return b.t.T("addchannel_usage"), nil
	}
	ch, err := b.ChannelUC.LinkByRef(ctx, userID, args)
	if err != nil {
		return b.linkError(err)
	}
	return b.t.T("channel_linked", ch.DisplayName()), nil
}

// HandleForwardedChannel links the channel a post was forwarded from.
func (b *BotFacade) HandleForwardedChannel(ctx context.Context, userID int64, chat model.ChatInfo) (string, error) {
	ch, err := b.ChannelUC.LinkChat(ctx, userID, chat, usecase.SourceForward)
	if err != nil {
		return b.linkError(err)
	}
	return b.t.T("channel_linked", ch.DisplayName()), nil
}

func (b *BotFacade) linkError(err error) (string, error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return b.t.T("addchannel_usage"), nil
	case errors.Is(err, domain.ErrNotAChannel):
		return b.t.T("channel_not_a_channel"), nil
	case errors.Is(err, domain.ErrNotAdmin):
		return b.t.T("channel_not_admin"), nil
	case errors.Is(err, domain.ErrTargetUnreachable), errors.Is(err, domain.ErrNotFound):
		return b.t.T("channel_not_found"), nil
	default:
		return b.generic(err)
	}
}

func (b *BotFacade) HandleListChannels(ctx context.Context, userID int64) (string, error) {
	chans, err := b.ChannelUC.List(ctx, userID)
	if err != nil {
		return b.generic(err)
	}
	if len(chans) == 0 {
		return b.t.T("channels_empty"), nil
	}
	var sb strings.Builder
	sb.WriteString(b.t.T("channels_header"))
	sb.WriteString("\n")
	for _, c := range chans {
		sb.WriteString(fmt.Sprintf("• %s\n", c.DisplayName()))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleNewPost starts collecting content for a fresh draft.
func (b *BotFacade) HandleNewPost(ctx context.Context, userID int64) (string, error) {
	switch err := b.ComposeUC.BeginCollect(ctx, userID); {
	case err == nil:
		return b.t.T("compose_started"), nil
	case errors.Is(err, domain.ErrNoChannels):
		return b.t.T("compose_no_channels"), nil
	default:
		return b.generic(err)
	}
}

// HandleContent queues one item. It returns "" when the user is not composing,
// in which case the message is ignored.
func (b *BotFacade) HandleContent(ctx context.Context, userID int64, item model.DraftItem) (string, error) {
	_, err := b.ComposeUC.Collect(ctx, userID, item)
	switch {
	case err == nil:
		return b.t.T("content_saved"), nil
	case errors.Is(err, domain.ErrNotCollecting):
		return "", nil
	case errors.Is(err, domain.ErrInvalidArgument):
		return b.t.T("content_unsupported"), nil
	default:
		return b.generic(err)
	}
}

func (b *BotFacade) HandleCancel(ctx context.Context, userID int64) (string, error) {
	if err := b.ComposeUC.Cancel(ctx, userID); err != nil {
		return b.generic(err)
	}
	return b.t.T("canceled"), nil
}

// BeginBroadcast validates /done. With a nil plan the reply is final; otherwise
// it is the progress notice and FinishBroadcast must be called with the plan.
func (b *BotFacade) BeginBroadcast(ctx context.Context, userID int64) (*usecase.Plan, string, error) {
	plan, err := b.BroadcastUC.Prepare(ctx, userID)
	switch {
	case err == nil:
		return plan, b.t.T("sending"), nil
	case errors.Is(err, domain.ErrNothingToPost):
		return nil, b.t.T("done_nothing"), nil
	case errors.Is(err, domain.ErrEmptyDraft):
		return nil, b.t.T("done_empty"), nil
	case errors.Is(err, domain.ErrNoChannels):
		return nil, b.t.T("done_no_channels"), nil
	case errors.Is(err, domain.ErrBroadcastRunning):
		return nil, b.t.T("done_busy"), nil
	default:
		reply, err := b.generic(err)
		return nil, reply, err
	}
}

// FinishBroadcast runs the plan and summarises the result. The closing
// confirmation is sent even when some channels failed.
func (b *BotFacade) FinishBroadcast(ctx context.Context, plan *usecase.Plan) (string, error) {
	report, err := b.BroadcastUC.Execute(ctx, plan)
	if report == nil {
		return b.generic(err)
	}
	if err != nil {
		b.log.Error().Err(err).Str("plan_id", plan.ID.String()).Msg("broadcast finished with error")
	}

	var sb strings.Builder
	sb.WriteString(b.t.T("done_ok"))
	if len(report.Removed) > 0 {
		names := make([]string, 0, len(report.Removed))
		for _, c := range report.Removed {
			names = append(names, c.DisplayName())
		}
		sb.WriteString("\n")
		sb.WriteString(b.t.T("done_removed", strings.Join(names, ", ")))
	}
	if len(report.Failed) > 0 {
		names := make([]string, 0, len(report.Failed))
		for _, f := range report.Failed {
			names = append(names, f.Channel.DisplayName())
		}
		sb.WriteString("\n")
		sb.WriteString(b.t.T("done_failed", strings.Join(names, ", ")))
	}
	return sb.String(), nil
}

// HandleMembershipChange forwards a my_chat_member update to the directory.
func (b *BotFacade) HandleMembershipChange(ctx context.Context, ev model.MembershipChange) error {
	return b.ChannelUC.HandleMembershipChange(ctx, ev)
}
