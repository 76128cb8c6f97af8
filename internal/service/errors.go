package service

import "fmt"

// InvalidRateError reports an ingestion request whose bid/ask values break
// the pricing rules.
type InvalidRateError struct {
	Reason string
	Bid    string
	Ask    string
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid rate: %s (bid=%s ask=%s)", e.Reason, e.Bid, e.Ask)
}

// PairNotActiveError reports an ingestion request for a pair that exists
// but is currently deactivated.
type PairNotActiveError struct {
	Pair string
}

func (e *PairNotActiveError) Error() string {
	return fmt.Sprintf("pair %s is not active", e.Pair)
}
