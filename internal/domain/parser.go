package domain

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// requiredFields are the schema fields every broker message must carry.
var requiredFields = []string{
	"eventKey", "schemaVersion", "producedAt", "source", "pair", "seq", "bidPips", "askPips",
}

// Parser turns raw broker payloads into RateEvents. It is intentionally
// defensive: double-encoded JSON payloads are unwrapped once, required
// fields are checked before decoding, and malformed messages are dropped
// without ever surfacing an error to the caller.
type Parser struct {
	logger zerolog.Logger
}

// NewParser constructs a Parser.
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger.With().Str("component", "rate_parser").Logger()}
}

// Parse decodes a raw message payload. The second return value is false
// when the payload is not a valid transport-level rate event.
func (p *Parser) Parse(raw []byte) (RateEvent, bool) {
	if len(raw) == 0 {
		p.logger.Debug().Msg("received empty raw message, skipping parse")
		return RateEvent{}, false
	}

	body := unwrap(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		p.logger.Error().Err(err).Str("payload", string(raw)).Msg("failed to parse rate event payload")
		return RateEvent{}, false
	}
	for _, name := range requiredFields {
		value, ok := fields[name]
		if !ok || string(value) == "null" {
			p.logger.Warn().Str("field", name).Str("payload", string(raw)).Msg("invalid rate event schema, message dropped")
			return RateEvent{}, false
		}
	}

	var event RateEvent
	if err := json.Unmarshal(body, &event); err != nil {
		p.logger.Error().Err(err).Str("payload", string(raw)).Msg("failed to decode rate event")
		return RateEvent{}, false
	}

	p.logger.Debug().Str("pair", event.Pair).Uint64("seq", event.Seq).Msg("rate event parsed")
	return event, true
}

// unwrap removes one level of string encoding from payloads that arrive as
// a JSON string containing JSON.
func unwrap(raw []byte) []byte {
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return raw
	}
	return []byte(inner)
}
