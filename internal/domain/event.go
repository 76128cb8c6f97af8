package domain

import (
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is the only event schema version this service produces and accepts.
const SchemaVersion = 1

// EventTypeRate is the outbox event type tag for rate update events.
const EventTypeRate = "RATE_EVENT"

// RawRate carries a sequenced ingestion request before pip conversion.
type RawRate struct {
	Source    string
	Pair      string
	Seq       uint64
	Bid       string
	Ask       string
	Timestamp time.Time
}

// RateEvent is the immutable domain fact distributed through the outbox
// and the broker. Prices are integer pips (price x 10^5).
type RateEvent struct {
	EventKey      string    `json:"eventKey"`
	SchemaVersion int       `json:"schemaVersion"`
	ProducedAt    time.Time `json:"producedAt"`
	Source        string    `json:"source"`
	Pair          string    `json:"pair"`
	Seq           uint64    `json:"seq"`
	BidPips       int64     `json:"bidPips"`
	AskPips       int64     `json:"askPips"`
}

// RateView is the latest accepted, human-readable snapshot of a pair.
type RateView struct {
	Pair      string `json:"pair"`
	Seq       uint64 `json:"seq"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	Timestamp int64  `json:"timestamp"`
}

// EventKey builds the deterministic idempotency key source:pair:seq.
func EventKey(source, pair string, seq uint64) string {
	return fmt.Sprintf("%s:%s:%d", source, pair, seq)
}

// NewRateEvent constructs a RateEvent from a sequenced raw rate, enforcing
// the preconditions a valid event must satisfy. It returns an error instead
// of producing a partially-initialised value.
func NewRateEvent(raw RawRate) (RateEvent, error) {
	if strings.TrimSpace(raw.Source) == "" {
		return RateEvent{}, fmt.Errorf("rate event: source must not be blank")
	}
	if strings.TrimSpace(raw.Pair) == "" {
		return RateEvent{}, fmt.Errorf("rate event: pair must not be blank")
	}
	if raw.Seq == 0 {
		return RateEvent{}, fmt.Errorf("rate event: seq must be positive")
	}

	bid, err := ToPips(raw.Bid)
	if err != nil {
		return RateEvent{}, fmt.Errorf("rate event: bid: %w", err)
	}
	ask, err := ToPips(raw.Ask)
	if err != nil {
		return RateEvent{}, fmt.Errorf("rate event: ask: %w", err)
	}

	producedAt := raw.Timestamp
	if producedAt.IsZero() {
		producedAt = time.Now().UTC()
	}

	return RateEvent{
		EventKey:      EventKey(raw.Source, raw.Pair, raw.Seq),
		SchemaVersion: SchemaVersion,
		ProducedAt:    producedAt,
		Source:        raw.Source,
		Pair:          raw.Pair,
		Seq:           raw.Seq,
		BidPips:       bid,
		AskPips:       ask,
	}, nil
}

// UpdateResult classifies the outcome of applying an event to the rate store.
type UpdateResult string

const (
	Accepted                UpdateResult = "ACCEPTED_UPDATED"
	KeptLastGood            UpdateResult = "KEPT_LAST_GOOD_TTL_REFRESHED"
	DroppedOldSeq           UpdateResult = "DROPPED_OLD_SEQ"
	DroppedInvalidTransport UpdateResult = "DROPPED_INVALID_TRANSPORT"
	DroppedInvalidSchema    UpdateResult = "DROPPED_INVALID_SCHEMA"
	DroppedInvalidDomain    UpdateResult = "DROPPED_INVALID_DOMAIN"
)

// StoreUpdate pairs an update result with the snapshot it left in place.
// View is nil for results that touched no state.
type StoreUpdate struct {
	Result UpdateResult
	View   *RateView
}

// DroppedUpdate reports an event that was discarded without touching state.
func DroppedUpdate(result UpdateResult) StoreUpdate {
	return StoreUpdate{Result: result}
}

// KeptUpdate reports that the incoming event was rejected but the previous
// snapshot was re-persisted with a refreshed freshness TTL.
func KeptUpdate(result UpdateResult, view RateView) StoreUpdate {
	return StoreUpdate{Result: result, View: &view}
}

// AcceptedUpdate reports the new current snapshot.
func AcceptedUpdate(view RateView) StoreUpdate {
	return StoreUpdate{Result: Accepted, View: &view}
}
