package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"ratehub/internal/domain"
	"ratehub/internal/storage"
)

// Writer is the single entry point for producing events that will be
// published asynchronously. The record is persisted inside the caller's
// transaction, so durability is tied to the business write.
type Writer struct {
	store  storage.OutboxStore
	logger zerolog.Logger
}

// NewWriter constructs a Writer.
func NewWriter(store storage.OutboxStore, logger zerolog.Logger) *Writer {
	return &Writer{
		store:  store,
		logger: logger.With().Str("component", "outbox_writer").Logger(),
	}
}

// Write persists a PENDING outbox record for the event inside tx. A
// duplicate event key means the event is already durable; the duplicate
// is swallowed and reported as success.
func (w *Writer) Write(ctx context.Context, tx pgx.Tx, eventType string, event domain.RateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	rec := storage.NewPendingRecord(event.EventKey, eventType, event.SchemaVersion, payload)
	if err := w.store.InsertOutbox(ctx, tx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateEvent) {
			w.logger.Warn().Str("event_key", event.EventKey).Msg("duplicate outbox event detected (idempotent)")
			return nil
		}
		return err
	}

	w.logger.Info().
		Str("event_key", rec.EventKey).
		Int("schema_version", rec.SchemaVersion).
		Msg("outbox event persisted")
	return nil
}
