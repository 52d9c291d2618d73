// Package worker holds the long-running consumers started by the worker
// binaries.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"mmms/internal/amqp"
	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/notify"
)

const deliveryTimeout = 10 * time.Second

// Source yields queued notifications. *amqp.Client implements it.
type Source interface {
	ConsumeWithRetry(ctx context.Context, handler amqp.Handler) error
}

var _ Source = (*amqp.Client)(nil)

// NotificationWorker drains the notification queue into a delivery channel,
// usually Telegram.
type NotificationWorker struct {
	source   Source
	notifier notify.Notifier
	logger   *log.Logger

	delivered int64
	failed    int64
	dropped   int64
}

// Stats counts what the worker did with the notifications it received.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

func NewNotificationWorker(source Source, notifier notify.Notifier, logger *log.Logger) *NotificationWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &NotificationWorker{
		source:   source,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Notification worker started")
	err := w.source.ConsumeWithRetry(ctx, w.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle delivers one notification. Notifications that can never be
// delivered are dropped so the queue does not redeliver them forever; any
// other failure is returned and the message requeued.
func (w *NotificationWorker) Handle(ctx context.Context, n notify.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	err := w.notifier.Notify(ctx, n)
	if err == nil {
		atomic.AddInt64(&w.delivered, 1)
		return nil
	}

	var ve *core.ValidationError
	if errors.Is(err, notify.ErrNoChat) || errors.As(err, &ve) {
		atomic.AddInt64(&w.dropped, 1)
		w.logger.WarnContext(ctx, "Dropping undeliverable notification",
			log.FieldNotification, string(n.Kind),
			log.FieldUser, n.Owner,
			log.FieldError, err)
		return nil
	}

	atomic.AddInt64(&w.failed, 1)
	w.logger.ErrorContext(ctx, "Notification delivery failed",
		log.FieldNotification, string(n.Kind),
		log.FieldUser, n.Owner,
		log.FieldError, err,
		log.FieldErrorType, log.ErrorTypeNetwork)
	return err
}

func (w *NotificationWorker) Stats() Stats {
	return Stats{
		Delivered: atomic.LoadInt64(&w.delivered),
		Failed:    atomic.LoadInt64(&w.failed),
		Dropped:   atomic.LoadInt64(&w.dropped),
	}
}
