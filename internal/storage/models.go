package storage

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state machine of an outbox record:
// PENDING -> PROCESSING -> {SENT | RETRY | FAILED}, RETRY -> PROCESSING,
// plus the watchdog recovery edge PROCESSING -> RETRY. SENT and FAILED
// are terminal.
type OutboxStatus string

const (
	StatusPending    OutboxStatus = "PENDING"
	StatusProcessing OutboxStatus = "PROCESSING"
	StatusSent       OutboxStatus = "SENT"
	StatusRetry      OutboxStatus = "RETRY"
	StatusFailed     OutboxStatus = "FAILED"
)

// OutboxRecord is the durable unit of reliable delivery. Records are
// created once per accepted request (unique by EventKey), mutated only by
// the outbox engine, and never deleted here.
type OutboxRecord struct {
	ID                  uuid.UUID
	EventKey            string
	EventType           string
	SchemaVersion       int
	Payload             []byte
	Status              OutboxStatus
	Attempts            int
	AvailableAt         *time.Time
	CreatedAt           time.Time
	ProcessingStartedAt *time.Time
	LastError           *string
}

// NewPendingRecord builds a PENDING outbox record that is immediately
// eligible for claiming.
func NewPendingRecord(eventKey, eventType string, schemaVersion int, payload []byte) OutboxRecord {
	now := time.Now().UTC()
	return OutboxRecord{
		ID:            uuid.New(),
		EventKey:      eventKey,
		EventType:     eventType,
		SchemaVersion: schemaVersion,
		Payload:       payload,
		Status:        StatusPending,
		AvailableAt:   &now,
		CreatedAt:     now,
	}
}

// PairSequence is the per-pair monotonic counter backing sequence issuance.
type PairSequence struct {
	Pair    string
	LastSeq uint64
}

// AllowedPair gates ingestion per currency pair.
type AllowedPair struct {
	Pair      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
