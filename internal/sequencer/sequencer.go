package sequencer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"ratehub/internal/storage"
)

// ErrSequenceUnavailable indicates the counter record could not be created
// or locked. No event may be issued without a sequence, so callers must
// abort their whole unit of work.
var ErrSequenceUnavailable = errors.New("sequencer: sequence unavailable")

// Sequencer issues strictly increasing per-pair sequence numbers.
type Sequencer struct {
	store  storage.SequenceStore
	logger zerolog.Logger
}

// New constructs a Sequencer over a durable counter store.
func New(store storage.SequenceStore, logger zerolog.Logger) *Sequencer {
	return &Sequencer{
		store:  store,
		logger: logger.With().Str("component", "sequencer").Logger(),
	}
}

// NextSeq issues the next sequence number for pair inside the caller's
// transaction. The counter row is created at zero on first use; the
// increment holds a pair-scoped row lock, so same-pair callers are
// serialised and the persisted value is visible to every later call.
func (s *Sequencer) NextSeq(ctx context.Context, tx pgx.Tx, pair string) (uint64, error) {
	if err := s.store.SeedSequence(ctx, tx, pair); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSequenceUnavailable, err)
	}

	next, err := s.store.IncrementSequence(ctx, tx, pair)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSequenceUnavailable, err)
	}

	s.logger.Debug().Str("pair", pair).Uint64("seq", next).Msg("sequence issued")
	return next, nil
}
