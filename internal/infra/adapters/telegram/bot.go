package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"channelcast/internal/application"
	"channelcast/internal/config"
	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/adapter"
	"channelcast/internal/infra/i18n"
	"channelcast/internal/infra/logging"
	"channelcast/internal/infra/metrics"
	red "channelcast/internal/infra/redis"
	"channelcast/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*Bot)(nil)

// Bot is the Telegram side of the system: it sends content for the use cases
// and, once Serve is called, polls updates and routes them to the facade.
type Bot struct {
	api        *tgbotapi.BotAPI
	cfg        *config.BotConfig
	translator *i18n.Translator
	log        *zerolog.Logger

	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	pool        *worker.ShardedPool
}

func NewBot(cfg *config.BotConfig, translator *i18n.Translator, logger *zerolog.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newBotWithAPI(api, cfg, translator, logger), nil
}

func newBotWithAPI(api *tgbotapi.BotAPI, cfg *config.BotConfig, translator *i18n.Translator, logger *zerolog.Logger) *Bot {
	botLog := logger.With().Str("component", "telegram").Str("bot", api.Self.UserName).Logger()
	return &Bot{api: api, cfg: cfg, translator: translator, log: &botLog}
}

// WithRateLimiter enables per-user throttling of inbound messages (cfg.RateLimit per minute).
func (b *Bot) WithRateLimiter(rl *red.RateLimiter) *Bot {
	b.rateLimiter = rl
	return b
}

func (b *Bot) Username() string { return b.api.Self.UserName }

// Serve polls updates until ctx is done. Updates are dispatched to a sharded
// pool keyed by user, so one user's messages are handled strictly in order.
// A full shard pauses polling until a worker frees a slot.
func (b *Bot) Serve(ctx context.Context, facade *application.BotFacade) error {
	if facade == nil {
		return errors.New("bot facade is nil")
	}
	b.facade = facade
	b.pool = worker.NewShardedPool(b.cfg.Workers, 64, b.log)
	b.pool.Start(ctx)
	defer b.pool.Stop()

	if err := b.setCommands(); err != nil {
		b.log.Warn().Err(err).Msg("failed to register bot commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "my_chat_member"}
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.log.Info().Int("workers", b.pool.Workers()).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("polling stopped")
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, up)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, up tgbotapi.Update) {
	key, ok := shardKey(up)
	if !ok {
		metrics.IncTelegramUpdate("ignored")
		return
	}
	// Blocks while the user's shard is full; polling stalls rather than losing updates.
	err := b.pool.Submit(ctx, key, func(ctx context.Context) error {
		return b.handleUpdate(ctx, up)
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.IncTelegramUpdate("dropped")
		b.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("update dropped")
	}
}

// shardKey picks the ordering key: the sender for messages, the channel for membership changes.
func shardKey(up tgbotapi.Update) (int64, bool) {
	switch {
	case up.Message != nil && up.Message.From != nil:
		return up.Message.From.ID, true
	case up.MyChatMember != nil:
		return up.MyChatMember.Chat.ID, true
	default:
		return 0, false
	}
}

func (b *Bot) handleUpdate(ctx context.Context, up tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, strconv.Itoa(up.UpdateID))
	switch {
	case up.MyChatMember != nil:
		metrics.IncTelegramUpdate("my_chat_member")
		ev, ok := membershipChange(up.MyChatMember, b.api.Self.ID)
		if !ok {
			return nil
		}
		ctx = logging.WithChatID(ctx, ev.Chat.ID)
		return b.facade.HandleMembershipChange(ctx, ev)
	case up.Message != nil:
		metrics.IncTelegramUpdate("message")
		return b.handleMessage(ctx, up.Message)
	}
	return nil
}

// ---- adapter.Sender ----

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return classifySendError(err)
}

// SendItem replays one draft item into chatID using the cached file reference.
func (b *Bot) SendItem(ctx context.Context, chatID int64, item model.DraftItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := itemConfig(chatID, item)
	if err != nil {
		return err
	}
	_, err = b.api.Send(c)
	return classifySendError(err)
}

func itemConfig(chatID int64, item model.DraftItem) (tgbotapi.Chattable, error) {
	switch item.Kind {
	case model.KindText:
		return tgbotapi.NewMessage(chatID, item.Body), nil
	case model.KindPhoto:
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(item.MediaRef))
		p.Caption = item.Caption
		return p, nil
	case model.KindVideo:
		v := tgbotapi.NewVideo(chatID, tgbotapi.FileID(item.MediaRef))
		v.Caption = item.Caption
		return v, nil
	case model.KindAnimation:
		return tgbotapi.NewAnimation(chatID, tgbotapi.FileID(item.MediaRef)), nil
	case model.KindSticker:
		return tgbotapi.NewSticker(chatID, tgbotapi.FileID(item.MediaRef)), nil
	default:
		return nil, domain.ErrInvalidArgument
	}
}

// ---- adapter.ChatResolver ----

func (b *Bot) ResolveChat(ctx context.Context, ref string) (model.ChatInfo, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatInfo{}, err
	}
	cfg := tgbotapi.ChatInfoConfig{}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.SuperGroupUsername = ref
	}
	chat, err := b.api.GetChat(cfg)
	if err != nil {
		return model.ChatInfo{}, classifySendError(err)
	}
	return chatInfo(&chat), nil
}

func (b *Bot) BotStatus(ctx context.Context, chatID int64) (model.MemberStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: b.api.Self.ID},
	})
	if err != nil {
		return "", classifySendError(err)
	}
	return model.MemberStatus(m.Status), nil
}

// ---- menus ----

func (b *Bot) mainMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(b.translator.T("menu_create_post"))),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(b.translator.T("menu_view_channels"))),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(b.translator.T("menu_cancel"))),
	)
	kb.ResizeKeyboard = true
	return kb
}

// reply sends text with the main menu attached. Empty text is a no-op.
func (b *Bot) reply(ctx context.Context, chatID int64, text string, withMenu bool) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if withMenu {
		msg.ReplyMarkup = b.mainMenu()
	}
	_, err := b.api.Send(msg)
	return classifySendError(err)
}

func (b *Bot) setCommands() error {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Main menu"},
		tgbotapi.BotCommand{Command: "newpost", Description: "Start a new post"},
		tgbotapi.BotCommand{Command: "done", Description: "Send the post"},
		tgbotapi.BotCommand{Command: "cancel", Description: "Abort the current post"},
		tgbotapi.BotCommand{Command: "channels", Description: "List linked channels"},
		tgbotapi.BotCommand{Command: "addchannel", Description: "Link a channel"},
		tgbotapi.BotCommand{Command: "help", Description: "Show help"},
	)
	_, err := b.api.Request(cmds)
	return err
}

func (b *Bot) allow(ctx context.Context, userID int64, action string) bool {
	if b.rateLimiter == nil || b.cfg.RateLimit <= 0 {
		return true
	}
	ok, err := b.rateLimiter.Allow(ctx, red.UserActionKey(userID, action), b.cfg.RateLimit, time.Minute)
	if err != nil {
		b.log.Warn().Err(err).Msg("rate limiter unavailable; allowing")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}
