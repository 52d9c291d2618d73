package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// devJWTSecret signs sessions outside production when JWT_SECRET is unset.
	devJWTSecret = "mmms-development-secret-do-not-use-in-production"
)

type Config struct {
	// HTTP Server
	Port        string `env:"PORT" envDefault:"3001"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Backend selection
	DataBackend  string `env:"DATA_BACKEND" envDefault:"memory"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/mmms.db"`

	// Google OAuth and Sheets
	GoogleClientID       string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI    string        `env:"GOOGLE_REDIRECT_URI" envDefault:"http://localhost:3001/api/auth/google/callback"`
	GoogleAPITimeout     time.Duration `env:"GOOGLE_API_TIMEOUT" envDefault:"15s"`
	GoogleOAuthTokenFile string        `env:"GOOGLE_OAUTH_TOKEN_FILE" envDefault:"./data/oauth-token.json"`

	// Sessions
	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	AuthBypass bool          `env:"AUTH_BYPASS" envDefault:"false"`

	// Money
	ExchangeRateKHR float64 `env:"EXCHANGE_RATE_KHR" envDefault:"4100"`

	// Rate limiting
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"mmms"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"notifications"`

	// Telegram
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`

	// Recurring worker
	RecurringInterval   time.Duration `env:"RECURRING_INTERVAL" envDefault:"1h"`
	RecurringOwnerEmail string        `env:"RECURRING_OWNER_EMAIL"`
}

// Load parses the environment into a Config. A missing JWT secret outside
// production is replaced by a fixed development secret.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), EnvProduction)
}

// BypassEnabled reports whether the development auth bypass is active. It
// is never active in production, whatever AUTH_BYPASS says.
func (c *Config) BypassEnabled() bool {
	return c.AuthBypass && !c.IsProduction()
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Validate data backend
	validBackends := []string{"memory", "sheets", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Google OAuth is needed to sign users in and to reach their sheets
	if c.DataBackend == "sheets" || c.IsProduction() {
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			errors = append(errors, "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required with the sheets backend and in production")
		}
		if _, err := url.ParseRequestURI(c.GoogleRedirectURI); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Google redirect URI '%s'", c.GoogleRedirectURI))
		}
	}
	if c.GoogleAPITimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid Google API timeout %v: must be positive", c.GoogleAPITimeout))
	}

	if _, err := url.ParseRequestURI(c.FrontendURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid frontend URL '%s'", c.FrontendURL))
	}

	// Sessions
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET must be at least 32 characters in production")
	} else if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET cannot be empty")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.AuthBypass && c.IsProduction() {
		errors = append(errors, "AUTH_BYPASS cannot be enabled in production")
	}

	if c.ExchangeRateKHR <= 0 {
		errors = append(errors, fmt.Sprintf("invalid exchange rate %v: must be positive", c.ExchangeRateKHR))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.TelegramChatID != "" {
		if _, err := strconv.ParseInt(c.TelegramChatID, 10, 64); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Telegram chat id '%s': must be a number", c.TelegramChatID))
		}
	}

	if c.RecurringInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
