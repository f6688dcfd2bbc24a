package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channelcast/internal/domain/model"
)

// classifyMessage turns a private message into a draft item. Media wins over
// text; for photos the last size (the largest) is kept.
func classifyMessage(msg *tgbotapi.Message) (model.DraftItem, bool) {
	switch {
	case len(msg.Photo) > 0:
		return model.NewPhotoItem(msg.Photo[len(msg.Photo)-1].FileID, msg.Caption), true
	case msg.Video != nil:
		return model.NewVideoItem(msg.Video.FileID, msg.Caption), true
	case msg.Animation != nil:
		return model.NewAnimationItem(msg.Animation.FileID), true
	case msg.Sticker != nil:
		return model.NewStickerItem(msg.Sticker.FileID), true
	case msg.Text != "":
		return model.NewTextItem(msg.Text), true
	default:
		return model.DraftItem{}, false
	}
}

func chatInfo(c *tgbotapi.Chat) model.ChatInfo {
	if c == nil {
		return model.ChatInfo{}
	}
	return model.ChatInfo{
		ID:       c.ID,
		Type:     model.ChatType(c.Type),
		Title:    c.Title,
		Username: c.UserName,
	}
}

// membershipChange converts a my_chat_member update about the bot itself.
// Updates about other members are rejected.
func membershipChange(u *tgbotapi.ChatMemberUpdated, selfID int64) (model.MembershipChange, bool) {
	if u == nil {
		return model.MembershipChange{}, false
	}
	if nu := u.NewChatMember.User; nu != nil && selfID != 0 && nu.ID != selfID {
		return model.MembershipChange{}, false
	}
	return model.MembershipChange{
		Chat:      chatInfo(&u.Chat),
		ActorID:   u.From.ID,
		OldStatus: model.MemberStatus(u.OldChatMember.Status),
		NewStatus: model.MemberStatus(u.NewChatMember.Status),
	}, true
}

// forwardedChannel returns the channel a message was forwarded from, if any.
func forwardedChannel(msg *tgbotapi.Message) (model.ChatInfo, bool) {
	if msg.ForwardFromChat == nil || !msg.ForwardFromChat.IsChannel() {
		return model.ChatInfo{}, false
	}
	return chatInfo(msg.ForwardFromChat), true
}
