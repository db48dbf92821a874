package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Messenger delivers plain HTML-formatted messages to Telegram chats.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type botMessenger struct {
	bot *tgbotapi.BotAPI
}

// NewBotMessenger connects to the Bot API with the given token.
func NewBotMessenger(token string) (Messenger, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Printf("[telegram] authorized as @%s", bot.Self.UserName)
	return &botMessenger{bot: bot}, nil
}

func (m *botMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return nil
}

// NopMessenger only logs; used when no bot token is configured.
type NopMessenger struct{}

func (NopMessenger) SendMessage(_ context.Context, chatID int64, text string) error {
	log.WithField("chat_id", chatID).Debugf("[telegram] bot disabled, dropping message: %s", text)
	return nil
}
