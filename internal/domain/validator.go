package domain

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// pairPattern matches supported currency pair codes, e.g. EUR/USD or
// USD/TRYSPOT (an upper-case suffix of up to four letters is allowed).
var pairPattern = regexp.MustCompile(`^[A-Z]{3}/[A-Z]{3}([A-Z]{1,4})?$`)

// Validator checks domain-level integrity of incoming rate events.
// It never returns an error; invalid events are simply rejected.
type Validator struct {
	logger zerolog.Logger
}

// NewValidator constructs a Validator.
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{logger: logger.With().Str("component", "rate_validator").Logger()}
}

// IsValid reports whether the event is safe to apply to the snapshot store.
func (v *Validator) IsValid(e RateEvent) bool {
	if !ValidPair(e.Pair) {
		v.logger.Warn().Str("pair", e.Pair).Msg("invalid currency pair format")
		return false
	}
	if e.Seq == 0 {
		v.logger.Warn().Str("pair", e.Pair).Uint64("seq", e.Seq).Msg("invalid sequence number")
		return false
	}
	if strings.TrimSpace(e.EventKey) == "" {
		v.logger.Warn().Str("pair", e.Pair).Msg("missing or empty eventKey")
		return false
	}
	if e.SchemaVersion != SchemaVersion {
		v.logger.Warn().Str("pair", e.Pair).Int("version", e.SchemaVersion).Msg("unsupported schema version")
		return false
	}
	if e.AskPips < 0 {
		v.logger.Warn().Str("pair", e.Pair).Int64("ask_pips", e.AskPips).Msg("invalid ask price")
		return false
	}
	if e.BidPips < 0 {
		v.logger.Warn().Str("pair", e.Pair).Int64("bid_pips", e.BidPips).Msg("invalid bid price")
		return false
	}
	if e.BidPips >= e.AskPips {
		v.logger.Warn().
			Str("pair", e.Pair).
			Int64("bid_pips", e.BidPips).
			Int64("ask_pips", e.AskPips).
			Msg("bid price must be lower than ask price")
		return false
	}
	return true
}

// ValidPair reports whether pair matches the expected currency pair format.
func ValidPair(pair string) bool {
	return pair != "" && pairPattern.MatchString(pair)
}
