package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// pipScale is the number of fractional digits carried by pip values.
// Example: 108450 pips -> "1.08450".
const pipScale = 5

// ToPips converts a decimal price string into integer pips. Values with more
// than pipScale fractional digits cannot be represented and are rejected.
func ToPips(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", value, err)
	}
	shifted := d.Shift(pipScale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("value %q exceeds %d fractional digits", value, pipScale)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("value %q overflows pip range", value)
	}
	return shifted.IntPart(), nil
}

// FromPips converts integer pips back into a plain decimal string.
// Non-positive magnitudes indicate corrupt input and produce no value.
func FromPips(pips int64) string {
	d := decimal.NewFromInt(pips)
	if d.Sign() <= 0 {
		return ""
	}
	return d.Shift(-pipScale).StringFixed(pipScale)
}
