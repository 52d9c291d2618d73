package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"mmms/internal/backend"
	"mmms/internal/cache"
	"mmms/internal/cli"
	apphttp "mmms/internal/http"
	"mmms/internal/log"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting mmms", "env", cfg.AppEnv, "backend", cfg.DataBackend, "port", cfg.Port)

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

	notifier, closeNotifier := cli.SetupNotifier(cfg, logger)
	svcDeps := cli.ServiceDeps(cfg, notifier, logger)

	caches := cache.NewManager(logger)
	caches.Register(result.Caches...)
	caches.Register(svcDeps.CategoryCache)
	caches.StartCleanup(5 * time.Minute)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		FrontendURL:        cfg.FrontendURL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Provider: result.Provider,
		Ready:    result.Ready,
		Auth:     cli.NewAuthService(cfg, logger),
		Services: svcDeps,
		Logger:   logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := closeNotifier(); err != nil {
			logger.Warn("Notifier close error", log.FieldError, err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	go func() {
		logger.Info("API listening", "addr", srv.Addr, "frontend", cfg.FrontendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
