package worker

import (
	"context"
	"time"

	"mmms/internal/log"
)

// Periodic runs a job once at start and then on every tick until its
// context is cancelled. Job errors are logged, not fatal.
type Periodic struct {
	name     string
	interval time.Duration
	job      func(ctx context.Context, now time.Time) (int, error)
	logger   *log.Logger

	// ticks is replaced in tests.
	ticks func(d time.Duration) (<-chan time.Time, func())
}

// NewPeriodic schedules job every interval. job reports how many items it
// processed.
func NewPeriodic(name string, interval time.Duration, job func(ctx context.Context, now time.Time) (int, error), logger *log.Logger) *Periodic {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Periodic{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger.WithComponent(log.ComponentWorker),
		ticks: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Run blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	p.logger.InfoContext(ctx, "Running initial pass", "job", p.name, "interval", p.interval.String())
	p.runOnce(ctx, time.Now())

	ticks, stop := p.ticks(p.interval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Periodic job stopped", "job", p.name)
			return
		case now := <-ticks:
			p.runOnce(ctx, now)
		}
	}
}

func (p *Periodic) runOnce(ctx context.Context, now time.Time) {
	start := time.Now()
	count, err := p.job(ctx, now)
	if err != nil {
		p.logger.ErrorContext(ctx, "Periodic job failed", "job", p.name, log.FieldError, err)
		return
	}
	p.logger.InfoContext(ctx, "Periodic job complete",
		"job", p.name,
		log.FieldCount, count,
		log.FieldDuration, time.Since(start).Milliseconds(),
		"next_check", now.Add(p.interval).Format("15:04:05"))
}
