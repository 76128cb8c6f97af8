package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/scheduler"
	"ratehub/internal/storage"
)

// Poller periodically claims eligible outbox records and hands them to the
// dispatcher. Claiming uses storage-level locking, so any number of
// instances may poll the same table without double-processing a record.
type Poller struct {
	store      storage.OutboxStore
	dispatcher *Dispatcher
	batchSize  int
	interval   time.Duration
	logger     zerolog.Logger
}

// NewPoller constructs a Poller.
func NewPoller(store storage.OutboxStore, dispatcher *Dispatcher, batchSize int, interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		store:      store,
		dispatcher: dispatcher,
		batchSize:  batchSize,
		interval:   interval,
		logger:     logger.With().Str("component", "outbox_poller").Logger(),
	}
}

// Run blocks, polling until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	runner := scheduler.New(scheduler.Options{Name: "outbox_poll", Interval: p.interval}, p.logger)
	err := runner.Run(ctx, p.poll)
	p.dispatcher.Wait()
	return err
}

func (p *Poller) poll(ctx context.Context) error {
	claimed, err := p.store.ClaimBatch(ctx, p.batchSize, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		p.logger.Debug().Msg("outbox poll executed, no events claimed")
		return nil
	}

	p.logger.Info().Int("count", len(claimed)).Msg("outbox poll claimed events, dispatching")
	p.dispatcher.Dispatch(ctx, claimed)
	return nil
}
