package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/scheduler"
	"ratehub/internal/storage"
)

// Watchdog periodically reclaims records stuck in PROCESSING after a crash
// or hang between claim and result persistence. This is the sole recovery
// path for such records: they are returned to RETRY, never lost, though
// they may then be delivered more than once.
type Watchdog struct {
	store          storage.OutboxStore
	interval       time.Duration
	stuckThreshold time.Duration
	logger         zerolog.Logger
}

// NewWatchdog constructs a Watchdog.
func NewWatchdog(store storage.OutboxStore, interval, stuckThreshold time.Duration, logger zerolog.Logger) *Watchdog {
	return &Watchdog{
		store:          store,
		interval:       interval,
		stuckThreshold: stuckThreshold,
		logger:         logger.With().Str("component", "outbox_watchdog").Logger(),
	}
}

// Run blocks, scanning until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) error {
	runner := scheduler.New(scheduler.Options{Name: "outbox_watchdog", Interval: w.interval}, w.logger)
	return runner.Run(ctx, w.reclaim)
}

func (w *Watchdog) reclaim(ctx context.Context) error {
	threshold := time.Now().UTC().Add(-w.stuckThreshold)
	count, err := w.store.ReclaimStuck(ctx, threshold)
	if err != nil {
		return err
	}
	if count > 0 {
		w.logger.Warn().
			Int64("count", count).
			Dur("stuck_threshold", w.stuckThreshold).
			Msg("reclaimed stuck outbox events")
	} else {
		w.logger.Debug().Msg("no stuck outbox events found to reclaim")
	}
	return nil
}
