package outbox

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ratehub/internal/storage"
)

// Dispatcher fans a claimed batch out as concurrent publish attempts.
// Concurrency is bounded by a semaphore so a large claim cannot open an
// unbounded number of outbound connections; submission blocks once every
// slot is busy.
type Dispatcher struct {
	processor *Processor
	slots     chan struct{}
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

// NewDispatcher constructs a Dispatcher with the given concurrency ceiling.
func NewDispatcher(processor *Processor, workers int, logger zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		processor: processor,
		slots:     make(chan struct{}, workers),
		logger:    logger.With().Str("component", "outbox_dispatcher").Logger(),
	}
}

// Dispatch hands every record of the batch to an independent publish
// attempt. It returns once the whole batch has been submitted; deliveries
// continue in the background and never abort each other.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []storage.OutboxRecord) {
	if len(batch) == 0 {
		return
	}

	d.logger.Debug().Int("count", len(batch)).Msg("dispatching outbox batch")
	for _, rec := range batch {
		select {
		case d.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}

		d.wg.Add(1)
		go func(rec storage.OutboxRecord) {
			defer func() {
				<-d.slots
				d.wg.Done()
			}()
			d.processor.Process(ctx, rec)
		}(rec)
	}
}

// Wait blocks until all in-flight publish attempts have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
