package ratestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ratehub/internal/domain"
)

const (
	// keyRatePrefix holds the latest valid snapshot per pair. These keys do
	// not expire; they represent the last known good state.
	keyRatePrefix = "rate:view:"
	// keyFreshPrefix carries the same snapshot under a TTL; once it expires
	// the snapshot is considered stale by readers, but the value survives.
	keyFreshPrefix = "rate:fresh:"
	// keySeqPrefix tracks the last accepted sequence per pair for ordering
	// and idempotency decisions. Never expires.
	keySeqPrefix = "rate:seq:"
	// keyPairSet indexes the pairs that currently have a snapshot.
	keyPairSet = "rate:pairs"
)

// Store validates, orders, and idempotently applies incoming rate events,
// maintaining the last-known-good snapshot of each pair in the replicated
// key-value store.
type Store struct {
	client            redis.UniversalClient
	parser            *domain.Parser
	validator         *domain.Validator
	locks             *PairLock
	snapshotTTL       time.Duration
	invalidRefreshTTL time.Duration
	logger            zerolog.Logger
}

// NewStore constructs a Store. snapshotTTL is the freshness window granted
// on acceptance; invalidRefreshTTL is the short window granted when an
// invalid or stale event re-confirms the previous snapshot.
func NewStore(client redis.UniversalClient, locks *PairLock, snapshotTTL, invalidRefreshTTL time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		client:            client,
		parser:            domain.NewParser(logger),
		validator:         domain.NewValidator(logger),
		locks:             locks,
		snapshotTTL:       snapshotTTL,
		invalidRefreshTTL: invalidRefreshTTL,
		logger:            logger.With().Str("component", "rate_store").Logger(),
	}
}

// OnRawMessage handles a raw transport payload and delegates to OnEvent.
func (s *Store) OnRawMessage(ctx context.Context, raw []byte) domain.StoreUpdate {
	event, ok := s.parser.Parse(raw)
	if !ok {
		s.logger.Debug().Msg("dropped message: invalid transport payload")
		return domain.DroppedUpdate(domain.DroppedInvalidTransport)
	}
	return s.OnEvent(ctx, event)
}

// OnEvent applies a rate event to the snapshot state. The whole decision
// runs under an exclusive pair-scoped lock, making application thread-safe
// across instances, idempotent via the sequence check, and resilient by
// keeping the last good snapshot on rejection.
func (s *Store) OnEvent(ctx context.Context, e domain.RateEvent) domain.StoreUpdate {
	pair := e.Pair
	if pair == "" {
		s.logger.Warn().Msg("dropped event: missing pair field")
		return domain.DroppedUpdate(domain.DroppedInvalidSchema)
	}

	release, err := s.locks.Acquire(ctx, pair)
	if err != nil {
		s.logger.Error().Err(err).Str("pair", pair).Msg("failed to acquire pair lock")
		return domain.DroppedUpdate(domain.DroppedInvalidTransport)
	}
	defer release()

	if !s.validator.IsValid(e) {
		s.logger.Warn().Str("pair", pair).Uint64("seq", e.Seq).Msg("invalid domain event received")
		return s.keepLastGood(ctx, pair, domain.KeptLastGood, domain.DroppedInvalidDomain)
	}

	lastSeq, hasSeq, err := s.lastSeq(ctx, pair)
	if err != nil {
		s.logger.Error().Err(err).Str("pair", pair).Msg("failed to read last sequence")
		return domain.DroppedUpdate(domain.DroppedInvalidTransport)
	}
	if hasSeq && e.Seq <= lastSeq {
		s.logger.Debug().
			Str("pair", pair).
			Uint64("incoming_seq", e.Seq).
			Uint64("current_seq", lastSeq).
			Msg("dropped outdated event")
		return s.keepLastGood(ctx, pair, domain.DroppedOldSeq, domain.DroppedOldSeq)
	}

	view := domain.RateView{
		Pair:      pair,
		Seq:       e.Seq,
		Bid:       domain.FromPips(e.BidPips),
		Ask:       domain.FromPips(e.AskPips),
		Timestamp: e.ProducedAt.UnixMilli(),
	}
	if err := s.persistAccepted(ctx, pair, e.Seq, view); err != nil {
		s.logger.Error().Err(err).Str("pair", pair).Msg("failed to persist snapshot")
		return domain.DroppedUpdate(domain.DroppedInvalidTransport)
	}

	s.logger.Debug().
		Str("pair", pair).
		Uint64("seq", e.Seq).
		Dur("ttl", s.snapshotTTL).
		Msg("rate snapshot updated")
	return domain.AcceptedUpdate(view)
}

// keepLastGood re-persists the existing snapshot with a short freshness
// refresh, or reports a plain drop when no snapshot exists for the pair.
func (s *Store) keepLastGood(ctx context.Context, pair string, kept, dropped domain.UpdateResult) domain.StoreUpdate {
	existing, err := s.Get(ctx, pair)
	if err != nil {
		s.logger.Error().Err(err).Str("pair", pair).Msg("failed to read existing snapshot")
		return domain.DroppedUpdate(dropped)
	}
	if existing == nil {
		return domain.DroppedUpdate(dropped)
	}

	payload, err := json.Marshal(existing)
	if err != nil {
		return domain.DroppedUpdate(dropped)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, keyRatePrefix+pair, payload, 0)
	pipe.Set(ctx, keyFreshPrefix+pair, payload, s.invalidRefreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error().Err(err).Str("pair", pair).Msg("failed to refresh last good snapshot")
		return domain.DroppedUpdate(dropped)
	}

	s.logger.Debug().
		Str("pair", pair).
		Dur("ttl", s.invalidRefreshTTL).
		Msg("last good snapshot TTL refreshed")
	return domain.KeptUpdate(kept, *existing)
}

func (s *Store) persistAccepted(ctx context.Context, pair string, seq uint64, view domain.RateView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal rate view: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, keySeqPrefix+pair, seq, 0)
	pipe.Set(ctx, keyRatePrefix+pair, payload, 0)
	pipe.Set(ctx, keyFreshPrefix+pair, payload, s.snapshotTTL)
	pipe.SAdd(ctx, keyPairSet, pair)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist accepted snapshot: %w", err)
	}
	return nil
}

func (s *Store) lastSeq(ctx context.Context, pair string) (uint64, bool, error) {
	seq, err := s.client.Get(ctx, keySeqPrefix+pair).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}

// Get returns the last known snapshot for a pair, or nil when none exists.
func (s *Store) Get(ctx context.Context, pair string) (*domain.RateView, error) {
	raw, err := s.client.Get(ctx, keyRatePrefix+pair).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var view domain.RateView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &view, nil
}

// GetAll returns the last known snapshot of every pair.
func (s *Store) GetAll(ctx context.Context) ([]domain.RateView, error) {
	pairs, err := s.client.SMembers(ctx, keyPairSet).Result()
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	if len(pairs) == 0 {
		return []domain.RateView{}, nil
	}

	keys := make([]string, len(pairs))
	for i, pair := range pairs {
		keys[i] = keyRatePrefix + pair
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget snapshots: %w", err)
	}

	views := make([]domain.RateView, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok || raw == "" {
			continue
		}
		var view domain.RateView
		if err := json.Unmarshal([]byte(raw), &view); err != nil {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}
