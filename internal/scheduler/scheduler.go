package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context) error

// Options tune runner behaviour.
type Options struct {
	Name         string
	Interval     time.Duration
	StartupDelay time.Duration
}

// Runner drives fixed-delay execution of periodic jobs: the next wait
// starts after the previous tick returns, so a slow tick never overlaps
// the next one.
type Runner struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Runner instance.
func New(opts Options, logger zerolog.Logger) *Runner {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Runner{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Str("job", opts.Name).Logger(),
	}
}

// Run blocks, invoking the tick function at each interval until ctx is
// cancelled. Tick errors are logged and the loop continues.
func (r *Runner) Run(ctx context.Context, tick TickFunc) error {
	if r.opts.StartupDelay > 0 {
		timer := time.NewTimer(r.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	for {
		timer := time.NewTimer(r.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error().Err(err).Msg("tick execution failed")
		}
	}
}
