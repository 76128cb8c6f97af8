package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratehub/internal/domain"
	"ratehub/internal/outbox"
	"ratehub/internal/sequencer"
	"ratehub/internal/storage"
)

// PairTxStore is the transactional storage surface the ingestion path
// needs: a way to open the unit of work plus allowed-pair lookups in it.
type PairTxStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	FindPair(ctx context.Context, tx pgx.Tx, pair string) (storage.AllowedPair, bool, error)
	CreatePair(ctx context.Context, tx pgx.Tx, pair string) error
}

// RateService runs the ingestion unit of work: validate the request,
// gate on pair activation, issue the sequence, and durably record the
// event in the outbox. Sequence issuance and the outbox write commit or
// abort together.
type RateService struct {
	store  PairTxStore
	seq    *sequencer.Sequencer
	writer *outbox.Writer
	source string
	logger zerolog.Logger
}

// NewRateService constructs a RateService. source identifies this producer
// in event keys.
func NewRateService(store PairTxStore, seq *sequencer.Sequencer, writer *outbox.Writer, source string, logger zerolog.Logger) *RateService {
	return &RateService{
		store:  store,
		seq:    seq,
		writer: writer,
		source: source,
		logger: logger.With().Str("component", "rate_service").Logger(),
	}
}

// CreateRateEvent accepts a raw rate for the pair and persists it as a
// PENDING outbox record. A duplicate submission (same resulting event key)
// is swallowed as success.
func (s *RateService) CreateRateEvent(ctx context.Context, pair, bid, ask string) error {
	s.logger.Info().Str("pair", pair).Msg("rate event request received")

	if err := validateRate(bid, ask); err != nil {
		s.logger.Warn().Err(err).Str("pair", pair).Msg("rate validation failed")
		return err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rate event tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ensureActivePair(ctx, tx, pair); err != nil {
		return err
	}

	seq, err := s.seq.NextSeq(ctx, tx, pair)
	if err != nil {
		return err
	}

	event, err := domain.NewRateEvent(domain.RawRate{
		Source:    s.source,
		Pair:      pair,
		Seq:       seq,
		Bid:       bid,
		Ask:       ask,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := s.writer.Write(ctx, tx, domain.EventTypeRate, event); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rate event tx: %w", err)
	}

	s.logger.Info().Str("pair", pair).Uint64("seq", seq).Msg("rate event written to outbox")
	return nil
}

// ensureActivePair finds the pair, creating it (active by default) when it
// is seen for the first time.
func (s *RateService) ensureActivePair(ctx context.Context, tx pgx.Tx, pair string) error {
	existing, found, err := s.store.FindPair(ctx, tx, pair)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Info().Str("pair", pair).Msg("pair not found, creating new pair")
		return s.store.CreatePair(ctx, tx, pair)
	}
	if !existing.IsActive {
		s.logger.Warn().Str("pair", pair).Msg("pair is inactive")
		return &PairNotActiveError{Pair: pair}
	}
	return nil
}

// validateRate enforces the pricing rules on the raw request: decimal
// syntax and bid strictly below ask.
func validateRate(bid, ask string) error {
	bidDec, err := decimal.NewFromString(bid)
	if err != nil {
		return &InvalidRateError{Reason: "bid/ask must be valid decimal numbers", Bid: bid, Ask: ask}
	}
	askDec, err := decimal.NewFromString(ask)
	if err != nil {
		return &InvalidRateError{Reason: "bid/ask must be valid decimal numbers", Bid: bid, Ask: ask}
	}
	if bidDec.GreaterThanOrEqual(askDec) {
		return &InvalidRateError{Reason: "bid must be smaller than ask", Bid: bid, Ask: ask}
	}
	return nil
}
