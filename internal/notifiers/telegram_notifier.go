package notifiers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	"github.com/rs/zerolog"
)

// TelegramConfiguration is the per-notification configuration of the telegram channel.
type TelegramConfiguration struct {
	ChatID    int64  `json:"chatId"`
	Message   string `json:"message"`
	ParseMode string `json:"parseMode,omitempty"`
}

// ParseTelegramConfiguration decodes and validates a telegram notification's configuration.
func ParseTelegramConfiguration(raw json.RawMessage) (TelegramConfiguration, error) {
	cfg := TelegramConfiguration{ParseMode: tgbotapi.ModeMarkdown}
	if err := decodeConfiguration(raw, &cfg); err != nil {
		return cfg, err
	}
	if cfg.ChatID == 0 {
		return cfg, &model.ConfigurationError{Field: "chatId", Value: cfg.ChatID, Err: errors.New("chat id is required")}
	}
	return cfg, nil
}

// botSender is the part of tgbotapi.BotAPI the notifier uses.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends notifications via a Telegram bot.
type TelegramNotifier struct {
	Base
	bot      botSender
	renderer *Renderer
	logger   zerolog.Logger
}

// NewTelegramNotifier creates a new instance of TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig, renderer *Renderer, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot api: %w", err)
	}
	return newTelegramNotifier(bot, renderer, logger), nil
}

func newTelegramNotifier(bot botSender, renderer *Renderer, logger *zerolog.Logger) *TelegramNotifier {
	n := &TelegramNotifier{
		bot:      bot,
		renderer: renderer,
		logger:   logger.With().Str("component", "telegram_notifier").Logger(),
	}
	n.Base = NewBase(TypeTelegram, n)
	return n
}

// DoSend implements Sender for Telegram.
func (n *TelegramNotifier) DoSend(_ context.Context, notification *model.Notification, params map[string]any) error {
	cfg, err := ParseTelegramConfiguration(notification.Configuration)
	if err != nil {
		return err
	}

	text, err := n.renderer.Render(cfg.Message, params)
	if err != nil {
		return fmt.Errorf("telegram message: %w", err)
	}

	msg := tgbotapi.NewMessage(cfg.ChatID, text)
	msg.ParseMode = cfg.ParseMode

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Stringer("notification_id", notification.ID).Msg("failed to send telegram message")
		return err
	}

	n.logger.Info().Stringer("notification_id", notification.ID).Int64("chat_id", cfg.ChatID).Msg("telegram message sent successfully")
	return nil
}
