// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"

	"channelcast/internal/domain/model"
)

// Sender delivers content to a chat. SendItem reports domain.ErrTargetUnreachable
// when the chat is gone or the bot lost access, and domain.ErrTransientSend otherwise.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendItem(ctx context.Context, chatID int64, item model.DraftItem) error
}

// ChatResolver looks chats up on the platform.
type ChatResolver interface {
	// ResolveChat accepts a numeric chat ID ("-100...") or a public "@username".
	ResolveChat(ctx context.Context, ref string) (model.ChatInfo, error)
	// BotStatus returns the bot's own membership status in chatID.
	BotStatus(ctx context.Context, chatID int64) (model.MemberStatus, error)
}

// TelegramBotAdapter is everything the use cases need from the platform.
type TelegramBotAdapter interface {
	Sender
	ChatResolver
}
