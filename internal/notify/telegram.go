package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mmms/internal/log"
)

// ErrNoChat is returned when neither the notification nor the notifier
// names a chat.
var ErrNoChat = errors.New("no telegram chat configured")

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var _ Sender = (*tgbotapi.BotAPI)(nil)

// Telegram delivers notifications as Telegram chat messages.
type Telegram struct {
	sender        Sender
	defaultChatID int64
	logger        *log.Logger
}

// NewTelegramBot connects to the bot API with token.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return bot, nil
}

// NewTelegram creates a notifier. defaultChatID may be empty when every
// notification carries its own chat.
func NewTelegram(sender Sender, defaultChatID string, logger *log.Logger) (*Telegram, error) {
	t := &Telegram{sender: sender}
	if defaultChatID != "" {
		id, err := strconv.ParseInt(defaultChatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat id %q: %w", defaultChatID, err)
		}
		t.defaultChatID = id
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	t.logger = logger.WithComponent(log.ComponentNotify)
	return t, nil
}

func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	chatID := t.defaultChatID
	if n.ChatID != "" {
		id, err := strconv.ParseInt(n.ChatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram chat id %q: %w", n.ChatID, err)
		}
		chatID = id
	}
	if chatID == 0 {
		return ErrNoChat
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, n.Message())
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	t.logger.InfoContext(ctx, "Notification delivered",
		log.FieldNotification, string(n.Kind),
		log.FieldUser, n.Owner,
		"chat_id", chatID)
	return nil
}
