package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/scheduler"
	"ratehub/internal/storage"
)

// Monitor periodically logs the outbox backlog per state. FAILED records
// need an operator, so a non-zero count is logged at warn level.
type Monitor struct {
	store    storage.OutboxStore
	interval time.Duration
	logger   zerolog.Logger
}

// NewMonitor constructs a Monitor.
func NewMonitor(store storage.OutboxStore, interval time.Duration, logger zerolog.Logger) *Monitor {
	return &Monitor{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("component", "outbox_monitor").Logger(),
	}
}

// Run blocks, reporting until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	runner := scheduler.New(scheduler.Options{Name: "outbox_stats", Interval: m.interval}, m.logger)
	return runner.Run(ctx, m.report)
}

func (m *Monitor) report(ctx context.Context) error {
	pending, err := m.store.CountByStatus(ctx, storage.StatusPending)
	if err != nil {
		return err
	}
	retry, err := m.store.CountByStatus(ctx, storage.StatusRetry)
	if err != nil {
		return err
	}
	failed, err := m.store.CountByStatus(ctx, storage.StatusFailed)
	if err != nil {
		return err
	}

	evt := m.logger.Info()
	if failed > 0 {
		evt = m.logger.Warn()
	}
	evt.
		Int64("pending", pending).
		Int64("retry", retry).
		Int64("failed", failed).
		Msg("outbox backlog")
	return nil
}
