package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"mmms/internal/amqp"
	"mmms/internal/auth"
	"mmms/internal/config"
	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/notify"
	"mmms/internal/services"
)

// SetupNotifier picks the notification channel: the AMQP queue when
// AMQP_URL is set, Telegram directly when a bot token is set, the log
// otherwise. The returned close func is never nil.
func SetupNotifier(cfg *config.Config, logger *log.Logger) (notify.Notifier, func() error) {
	noop := func() error { return nil }

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err == nil {
			logger.Info("Notifications are queued for notify-worker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			return client, client.Close
		}
		logger.Warn("Failed to initialize AMQP client, falling back", log.FieldError, err)
	}

	if cfg.TelegramBotToken != "" {
		tg, err := NewTelegramNotifier(cfg, logger)
		if err == nil {
			logger.Info("Notifications are sent to Telegram directly")
			return tg, noop
		}
		logger.Warn("Failed to initialize Telegram bot, falling back", log.FieldError, err)
	}

	logger.Info("No notification channel configured, notifications are logged")
	return notify.NewLogNotifier(logger), noop
}

// NewTelegramNotifier connects the configured bot.
func NewTelegramNotifier(cfg *config.Config, logger *log.Logger) (*notify.Telegram, error) {
	bot, err := notify.NewTelegramBot(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	return notify.NewTelegram(bot, cfg.TelegramChatID, logger)
}

// ServiceDeps builds the process-wide service dependencies.
func ServiceDeps(cfg *config.Config, notifier notify.Notifier, logger *log.Logger) services.Deps {
	return services.Deps{
		Converter:     core.NewConverter(cfg.ExchangeRateKHR),
		Clock:         time.Now,
		Notifier:      notifier,
		CategoryCache: services.NewCategoryCache(256),
		Logger:        logger,
		DefaultChatID: cfg.TelegramChatID,
	}.WithDefaults()
}

// NewAuthService configures Google sign-in and session tokens.
func NewAuthService(cfg *config.Config, logger *log.Logger) *auth.Service {
	if cfg.BypassEnabled() {
		logger.Warn("Authentication bypass is enabled, every request acts as the development user",
			log.FieldUser, auth.DevUser.Email)
	}
	return auth.NewService(auth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		JWTSecret:    cfg.JWTSecret,
		SessionTTL:   cfg.SessionTTL,
		Bypass:       cfg.BypassEnabled(),
		Logger:       logger,
	})
}

// LoadToken reads an OAuth token written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, fmt.Errorf("token file %s holds no token", path)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
