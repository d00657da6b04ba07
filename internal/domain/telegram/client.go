package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

// Client delivers text messages to a Telegram chat (guardian or health worker).
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string, options *telebot.SendOptions) error
}
