package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channelcast/internal/infra/logging"
	"channelcast/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, msg *tgbotapi.Message) error

// commandRoutes maps slash commands to handlers.
func (b *Bot) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":      b.handleStart,
		"help":       b.handleHelp,
		"addchannel": b.handleAddChannel,
		"channels":   b.handleChannels,
		"newpost":    b.handleNewPost,
		"done":       b.handleDone,
		"cancel":     b.handleCancel,
	}
}

// keywordRoutes maps reply-keyboard labels to handlers. Labels come from the locale.
func (b *Bot) keywordRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		b.translator.T("menu_create_post"):   b.handleNewPost,
		b.translator.T("menu_view_channels"): b.handleChannels,
		b.translator.T("menu_cancel"):        b.handleCancel,
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat == nil || !msg.Chat.IsPrivate() || msg.From == nil {
		return nil
	}
	userID := msg.From.ID
	ctx = logging.WithChatID(logging.WithTgID(ctx, userID), msg.Chat.ID)
	log := logging.With(ctx, b.log)

	if !b.allow(ctx, userID, "message") {
		return b.reply(ctx, msg.Chat.ID, b.translator.T("rate_limited"), false)
	}

	gate, err := b.facade.Guard(ctx, userID, msg.Text)
	if err != nil {
		log.Error().Err(err).Msg("access check failed")
	}
	if !gate.Allowed {
		return b.reply(ctx, msg.Chat.ID, gate.Reply, gate.Granted)
	}

	if msg.IsCommand() {
		if h, ok := b.commandRoutes()[strings.ToLower(msg.Command())]; ok {
			metrics.IncTelegramCommand("/" + strings.ToLower(msg.Command()))
			return h(ctx, msg)
		}
	}
	if h, ok := b.keywordRoutes()[strings.TrimSpace(msg.Text)]; ok {
		metrics.IncTelegramCommand("menu")
		return h(ctx, msg)
	}
	return b.handleContent(ctx, msg)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.facade.HandleStart(ctx, msg.From.ID)
	b.logErr(ctx, err, "start")
	return b.reply(ctx, msg.Chat.ID, text, true)
}

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) error {
	text, _ := b.facade.HandleHelp(ctx, msg.From.ID)
	return b.reply(ctx, msg.Chat.ID, text, false)
}

func (b *Bot) handleAddChannel(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.facade.HandleAddChannel(ctx, msg.From.ID, msg.CommandArguments())
	b.logErr(ctx, err, "addchannel")
	return b.reply(ctx, msg.Chat.ID, text, false)
}

func (b *Bot) handleChannels(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.facade.HandleListChannels(ctx, msg.From.ID)
	b.logErr(ctx, err, "channels")
	return b.reply(ctx, msg.Chat.ID, text, false)
}

func (b *Bot) handleNewPost(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.facade.HandleNewPost(ctx, msg.From.ID)
	b.logErr(ctx, err, "newpost")
	return b.reply(ctx, msg.Chat.ID, text, false)
}

func (b *Bot) handleCancel(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.facade.HandleCancel(ctx, msg.From.ID)
	b.logErr(ctx, err, "cancel")
	return b.reply(ctx, msg.Chat.ID, text, true)
}

// handleDone announces the broadcast, runs it in this worker and reports back.
func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	plan, text, err := b.facade.BeginBroadcast(ctx, msg.From.ID)
	b.logErr(ctx, err, "done")
	if plan == nil {
		return b.reply(ctx, msg.Chat.ID, text, false)
	}
	if err := b.reply(ctx, msg.Chat.ID, text, false); err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Msg("progress notice not delivered")
	}
	text, err = b.facade.FinishBroadcast(ctx, plan)
	b.logErr(ctx, err, "done")
	return b.reply(ctx, msg.Chat.ID, text, true)
}

// handleContent queues the message while composing. Outside compose a post
// forwarded from a channel links that channel; anything else is ignored.
func (b *Bot) handleContent(ctx context.Context, msg *tgbotapi.Message) error {
	if item, ok := classifyMessage(msg); ok {
		text, err := b.facade.HandleContent(ctx, msg.From.ID, item)
		b.logErr(ctx, err, "content")
		if text != "" {
			return b.reply(ctx, msg.Chat.ID, text, false)
		}
	}
	if chat, ok := forwardedChannel(msg); ok {
		text, err := b.facade.HandleForwardedChannel(ctx, msg.From.ID, chat)
		b.logErr(ctx, err, "forward")
		return b.reply(ctx, msg.Chat.ID, text, false)
	}
	return nil
}

func (b *Bot) logErr(ctx context.Context, err error, action string) {
	if err != nil {
		logging.With(ctx, b.log).Error().Err(err).Str("action", action).Msg("handler failed")
	}
}
