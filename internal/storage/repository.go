package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrDuplicateEvent indicates an outbox record with the same event key
	// already exists. Callers treat this as success: the event is durable.
	ErrDuplicateEvent = errors.New("storage: duplicate outbox event")
)

const (
	insertOutboxSQL = `INSERT INTO outbox_event (
        id,
        event_key,
        event_type,
        schema_version,
        payload,
        status,
        attempts,
        available_at,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (event_key) DO NOTHING;`

	claimBatchSQL = `UPDATE outbox_event
    SET status = 'PROCESSING', processing_started_at = $1
    WHERE id IN (
        SELECT id FROM outbox_event
        WHERE status = $2
          AND available_at <= $1
        ORDER BY id
        LIMIT $3
        FOR UPDATE SKIP LOCKED
    )
    RETURNING
        id, event_key, event_type, schema_version, payload,
        status, attempts, available_at, created_at,
        processing_started_at, last_error;`

	saveResultSQL = `UPDATE outbox_event
    SET status = $2,
        attempts = $3,
        available_at = $4,
        last_error = $5
    WHERE id = $1;`

	reclaimStuckSQL = `UPDATE outbox_event
    SET status = 'RETRY',
        processing_started_at = NULL,
        last_error = 'PROCESSING timeout'
    WHERE status = 'PROCESSING'
      AND processing_started_at < $1;`

	countByStatusSQL = `SELECT COUNT(*) FROM outbox_event WHERE status = $1;`

	findPairSQL = `SELECT pair, is_active, created_at, updated_at
    FROM allowed_pair
    WHERE pair = $1;`

	createPairSQL = `INSERT INTO allowed_pair (pair, is_active, created_at, updated_at)
    VALUES ($1, TRUE, NOW(), NOW())
    ON CONFLICT (pair) DO NOTHING;`

	seedSequenceSQL = `INSERT INTO pair_sequence (pair, last_seq)
    VALUES ($1, 0)
    ON CONFLICT (pair) DO NOTHING;`

	nextSequenceSQL = `UPDATE pair_sequence
    SET last_seq = last_seq + 1
    WHERE pair = $1
    RETURNING last_seq;`
)

// OutboxStore defines the durable operations used by the outbox engine.
type OutboxStore interface {
	InsertOutbox(ctx context.Context, tx pgx.Tx, rec OutboxRecord) error
	ClaimBatch(ctx context.Context, limit int, now time.Time) ([]OutboxRecord, error)
	SaveResult(ctx context.Context, rec OutboxRecord) error
	ReclaimStuck(ctx context.Context, threshold time.Time) (int64, error)
	CountByStatus(ctx context.Context, status OutboxStatus) (int64, error)
}

// PairStore defines allowed-pair lifecycle operations.
type PairStore interface {
	FindPair(ctx context.Context, tx pgx.Tx, pair string) (AllowedPair, bool, error)
	CreatePair(ctx context.Context, tx pgx.Tx, pair string) error
}

// SequenceStore defines per-pair counter operations. Both run inside the
// caller's transaction so the increment commits with the business write.
type SequenceStore interface {
	SeedSequence(ctx context.Context, tx pgx.Tx, pair string) error
	IncrementSequence(ctx context.Context, tx pgx.Tx, pair string) (uint64, error)
}

// Store aggregates Postgres access for outbox, sequence, and pair state.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Begin opens a transaction on the underlying pool.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertOutbox persists a PENDING outbox record inside tx. A conflicting
// event key yields ErrDuplicateEvent without inserting a second row.
func (s *Store) InsertOutbox(ctx context.Context, tx pgx.Tx, rec OutboxRecord) error {
	tag, err := tx.Exec(ctx, insertOutboxSQL,
		rec.ID,
		rec.EventKey,
		rec.EventType,
		rec.SchemaVersion,
		rec.Payload,
		rec.Status,
		rec.Attempts,
		rec.AvailableAt,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

// ClaimBatch atomically selects up to limit eligible records and moves them
// to PROCESSING, stamping the processing start time. RETRY records whose
// next-eligible time has passed are claimed with strict priority over
// PENDING ones. SKIP LOCKED keeps concurrent instances from claiming the
// same rows.
func (s *Store) ClaimBatch(ctx context.Context, limit int, now time.Time) ([]OutboxRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := claimWithStatus(ctx, tx, StatusRetry, limit, now)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		claimed, err = claimWithStatus(ctx, tx, StatusPending, limit, now)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return claimed, nil
}

func claimWithStatus(ctx context.Context, tx pgx.Tx, status OutboxStatus, limit int, now time.Time) ([]OutboxRecord, error) {
	rows, err := tx.Query(ctx, claimBatchSQL, now, status, limit)
	if err != nil {
		return nil, fmt.Errorf("claim %s batch: %w", status, err)
	}
	defer rows.Close()

	records := make([]OutboxRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanOutboxRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// SaveResult persists the outcome of a publish attempt.
func (s *Store) SaveResult(ctx context.Context, rec OutboxRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, saveResultSQL,
		rec.ID,
		rec.Status,
		rec.Attempts,
		rec.AvailableAt,
		rec.LastError,
	); execErr != nil {
		return fmt.Errorf("save outbox result: %w", execErr)
	}
	return nil
}

// ReclaimStuck moves PROCESSING records whose processing start time is older
// than threshold back to RETRY, making them eligible for re-claim.
func (s *Store) ReclaimStuck(ctx context.Context, threshold time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, reclaimStuckSQL, threshold)
	if execErr != nil {
		return 0, fmt.Errorf("reclaim stuck records: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus counts outbox records in the given state.
func (s *Store) CountByStatus(ctx context.Context, status OutboxStatus) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countByStatusSQL, status).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count outbox by status: %w", scanErr)
	}
	return count, nil
}

// FindPair looks up an allowed pair inside tx.
func (s *Store) FindPair(ctx context.Context, tx pgx.Tx, pair string) (AllowedPair, bool, error) {
	var p AllowedPair
	err := tx.QueryRow(ctx, findPairSQL, pair).Scan(&p.Pair, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AllowedPair{}, false, nil
	}
	if err != nil {
		return AllowedPair{}, false, fmt.Errorf("find pair: %w", err)
	}
	return p, true, nil
}

// CreatePair registers a new pair, active by default.
func (s *Store) CreatePair(ctx context.Context, tx pgx.Tx, pair string) error {
	if _, err := tx.Exec(ctx, createPairSQL, pair); err != nil {
		return fmt.Errorf("create pair: %w", err)
	}
	return nil
}

// SeedSequence creates the counter row at zero if absent.
func (s *Store) SeedSequence(ctx context.Context, tx pgx.Tx, pair string) error {
	if _, err := tx.Exec(ctx, seedSequenceSQL, pair); err != nil {
		return fmt.Errorf("seed sequence: %w", err)
	}
	return nil
}

// IncrementSequence bumps and returns the pair's counter. The UPDATE takes
// a row lock, so concurrent issuance for the same pair is serialised while
// different pairs never block each other.
func (s *Store) IncrementSequence(ctx context.Context, tx pgx.Tx, pair string) (uint64, error) {
	var next uint64
	if err := tx.QueryRow(ctx, nextSequenceSQL, pair).Scan(&next); err != nil {
		return 0, fmt.Errorf("increment sequence: %w", err)
	}
	return next, nil
}

func scanOutboxRecord(rows pgx.Rows) (OutboxRecord, error) {
	var rec OutboxRecord
	if err := rows.Scan(
		&rec.ID,
		&rec.EventKey,
		&rec.EventType,
		&rec.SchemaVersion,
		&rec.Payload,
		&rec.Status,
		&rec.Attempts,
		&rec.AvailableAt,
		&rec.CreatedAt,
		&rec.ProcessingStartedAt,
		&rec.LastError,
	); err != nil {
		return OutboxRecord{}, fmt.Errorf("scan outbox record: %w", err)
	}
	return rec, nil
}
