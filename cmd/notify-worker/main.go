package main

import (
	"context"
	"os"
	"time"

	"mmms/internal/amqp"
	"mmms/internal/cli"
	"mmms/internal/log"
	"mmms/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting notify-worker")

	if cfg.AMQPURL == "" || cfg.TelegramBotToken == "" {
		logger.Error("notify-worker needs AMQP_URL and TELEGRAM_BOT_TOKEN", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	telegram, err := cli.NewTelegramNotifier(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot", log.FieldError, err)
		os.Exit(1)
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}

	w := worker.NewNotificationWorker(client, telegram, logger)
	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(context.Context) {
		stats := w.Stats()
		logger.Info("Notification worker stats",
			"delivered", stats.Delivered, "failed", stats.Failed, "dropped", stats.Dropped)
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
	})

	if err := w.Run(ctx); err != nil {
		logger.Error("Notification worker stopped", log.FieldError, err)
		_ = client.Close()
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
