package fanout

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"ratehub/internal/domain"
)

// Broadcaster pushes accepted snapshots to every locally-subscribed
// connection.
type Broadcaster struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(registry *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger.With().Str("component", "rate_broadcaster").Logger(),
	}
}

// Broadcast serialises the view once and fans it out independently per
// target. A connection that is closed or fails mid-send is skipped and
// logged, never retried, and never blocks other targets. A nil view is a
// no-op.
func (b *Broadcaster) Broadcast(view *domain.RateView) {
	if view == nil || view.Pair == "" {
		b.logger.Debug().Msg("rate view is nil or missing pair, skipping broadcast")
		return
	}

	payload, err := json.Marshal(view)
	if err != nil {
		b.logger.Error().Err(err).Str("pair", view.Pair).Msg("failed to serialize rate view for broadcast")
		return
	}

	targets := b.registry.InterestedIn(view.Pair)
	if len(targets) == 0 {
		return
	}

	b.logger.Debug().
		Int("sessions", len(targets)).
		Str("pair", view.Pair).
		Uint64("seq", view.Seq).
		Msg("broadcasting rate update")

	for _, conn := range targets {
		if err := conn.Send(payload); err != nil {
			b.logger.Warn().
				Err(err).
				Str("conn_id", conn.ID()).
				Str("pair", view.Pair).
				Msg("failed to send rate update")
		}
	}
}
