package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/storage"
)

const (
	// maxAttempts is the publish attempt ceiling; afterwards the record is
	// permanently FAILED and left to an operator.
	maxAttempts = 5
	// backoffBase and backoffCap bound the exponential retry delay:
	// min(250ms * 2^min(attempts,6), 30s).
	backoffBase = 250 * time.Millisecond
	backoffCap  = 30 * time.Second
)

// Processor executes a single publish attempt and records its outcome.
type Processor struct {
	registry   *Registry
	store      storage.OutboxStore
	attemptTTL time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewProcessor constructs a Processor. attemptTTL bounds each publisher
// call so a hung transport cannot occupy a dispatch slot longer than the
// watchdog would take to reclaim the record.
func NewProcessor(registry *Registry, store storage.OutboxStore, attemptTTL time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		registry:   registry,
		store:      store,
		attemptTTL: attemptTTL,
		logger:     logger.With().Str("component", "outbox_processor").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Process publishes one claimed record and persists the resulting state
// transition unconditionally, whether the attempt succeeded or failed.
func (p *Processor) Process(ctx context.Context, rec storage.OutboxRecord) {
	err := p.attempt(ctx, rec)
	if err == nil {
		rec.Status = storage.StatusSent
		rec.LastError = nil
		p.logger.Info().
			Stringer("id", rec.ID).
			Str("event_type", rec.EventType).
			Msg("outbox event published")
	} else {
		rec.Attempts++
		msg := err.Error()
		rec.LastError = &msg

		if rec.Attempts >= maxAttempts {
			rec.Status = storage.StatusFailed
			rec.AvailableAt = nil
			p.logger.Error().
				Err(err).
				Stringer("id", rec.ID).
				Str("event_type", rec.EventType).
				Int("attempts", rec.Attempts).
				Msg("outbox event permanently failed")
		} else {
			next := p.now().Add(backoffDelay(rec.Attempts))
			rec.Status = storage.StatusRetry
			rec.AvailableAt = &next
			p.logger.Warn().
				Err(err).
				Stringer("id", rec.ID).
				Str("event_type", rec.EventType).
				Int("attempt", rec.Attempts).
				Time("next_at", next).
				Msg("outbox event publish failed, retrying")
		}
	}

	if saveErr := p.store.SaveResult(ctx, rec); saveErr != nil {
		// The record stays in PROCESSING; the watchdog will return it to RETRY.
		p.logger.Error().Err(saveErr).Stringer("id", rec.ID).Msg("failed to persist outbox result")
	}
}

func (p *Processor) attempt(ctx context.Context, rec storage.OutboxRecord) error {
	publisher, ok := p.registry.Get(rec.EventType)
	if !ok {
		return fmt.Errorf("no publisher registered for event type %q", rec.EventType)
	}

	if p.attemptTTL > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.attemptTTL)
		defer cancel()
	}
	return publisher.Publish(ctx, rec)
}

// backoffDelay computes the capped exponential retry delay for the given
// attempt count.
func backoffDelay(attempts int) time.Duration {
	shift := attempts
	if shift > 6 {
		shift = 6
	}
	delay := backoffBase * time.Duration(1<<shift)
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}
