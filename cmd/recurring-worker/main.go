package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"

	"mmms/internal/backend"
	"mmms/internal/cli"
	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/services"
	"mmms/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting recurring-worker")

	if cfg.RecurringOwnerEmail == "" {
		logger.Error("RECURRING_OWNER_EMAIL is required", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	if cfg.DataBackend == string(backend.MemoryBackend) {
		logger.Warn("Memory backend is private to this process, generated transactions are not visible to the API")
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// The sheets backend acts with the owner's Google token, refreshed as needed.
	var tokens oauth2.TokenSource
	if cfg.DataBackend == string(backend.SheetsBackend) {
		tok, err := cli.LoadToken(cfg.GoogleOAuthTokenFile)
		if err != nil {
			logger.Error("Run oauth-init first", log.FieldError, err, "token_file", cfg.GoogleOAuthTokenFile)
			os.Exit(1)
		}
		authSvc := cli.NewAuthService(cfg, logger)
		tokens = authSvc.OAuthConfig().TokenSource(context.Background(), tok)
	}

	notifier, closeNotifier := cli.SetupNotifier(cfg, logger)
	svcDeps := cli.ServiceDeps(cfg, notifier, logger)

	job := func(ctx context.Context, now time.Time) (int, error) {
		user := core.User{Email: cfg.RecurringOwnerEmail}
		if tokens != nil {
			tok, err := tokens.Token()
			if err != nil {
				return 0, fmt.Errorf("refresh google token: %w", err)
			}
			user.AccessToken = tok.AccessToken
		}
		gw, err := result.Provider.Gateway(ctx, user)
		if err != nil {
			return 0, err
		}
		ws := services.NewWorkspace(user, gw, svcDeps)
		return services.NewRecurringProcessor(ws).ProcessDue(ctx, core.DateOf(now))
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := closeNotifier(); err != nil {
			logger.Warn("Notifier close error", log.FieldError, err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	worker.NewPeriodic("recurring transactions", cfg.RecurringInterval, job, logger).Run(ctx)
	cli.WaitForShutdown(ctx, done)
}
