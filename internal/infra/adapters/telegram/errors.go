package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channelcast/internal/domain"
)

// unreachableMarkers are Bot API descriptions meaning the chat is gone or
// closed to the bot for good. Matched case-insensitively.
var unreachableMarkers = []string{
	"chat not found",
	"bot was kicked",
	"bot is not a member",
	"channel_private",
	"need administrator rights",
}

// classifySendError maps Bot API failures to domain errors, keeping the original
// description in the message.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		var v tgbotapi.Error
		if errors.As(err, &v) {
			apiErr = &v
		}
	}
	if apiErr != nil {
		desc := strings.ToLower(apiErr.Message)
		for _, m := range unreachableMarkers {
			if strings.Contains(desc, m) {
				return fmt.Errorf("%w: %s", domain.ErrTargetUnreachable, apiErr.Message)
			}
		}
		return fmt.Errorf("%w: %d %s", domain.ErrTransientSend, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", domain.ErrTransientSend, err)
}
