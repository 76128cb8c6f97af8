package fanout

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ratehub/internal/domain"
)

// clusterChannel is the cluster-wide topic carrying accepted snapshots to
// every instance, including the publisher.
const clusterChannel = "rates.cluster.updates"

// ClusterPublisher publishes accepted snapshots onto the cluster topic so
// all instances push the same update to their own connected clients.
type ClusterPublisher struct {
	client redis.UniversalClient
	logger zerolog.Logger
}

// NewClusterPublisher constructs a ClusterPublisher.
func NewClusterPublisher(client redis.UniversalClient, logger zerolog.Logger) *ClusterPublisher {
	return &ClusterPublisher{
		client: client,
		logger: logger.With().Str("component", "cluster_publisher").Logger(),
	}
}

// Publish sends the view to the cluster topic. Failures are logged only:
// the snapshot is already durable and local clients were not harmed.
func (p *ClusterPublisher) Publish(ctx context.Context, view domain.RateView) {
	payload, err := json.Marshal(view)
	if err != nil {
		p.logger.Error().Err(err).Str("pair", view.Pair).Msg("failed to serialize rate view for cluster topic")
		return
	}

	if err := p.client.Publish(ctx, clusterChannel, payload).Err(); err != nil {
		p.logger.Error().Err(err).Str("pair", view.Pair).Msg("failed to publish rate update to cluster topic")
		return
	}
	p.logger.Debug().Str("pair", view.Pair).Uint64("seq", view.Seq).Msg("rate update published to cluster topic")
}

// ClusterListener receives snapshots from the cluster topic and hands them
// to the local broadcaster.
type ClusterListener struct {
	client      redis.UniversalClient
	broadcaster *Broadcaster
	logger      zerolog.Logger
}

// NewClusterListener constructs a ClusterListener.
func NewClusterListener(client redis.UniversalClient, broadcaster *Broadcaster, logger zerolog.Logger) *ClusterListener {
	return &ClusterListener{
		client:      client,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "cluster_listener").Logger(),
	}
}

// Run blocks, consuming the cluster topic until ctx is cancelled.
func (l *ClusterListener) Run(ctx context.Context) error {
	pubsub := l.client.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	l.logger.Info().Str("channel", clusterChannel).Msg("cluster listener subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var view domain.RateView
			if err := json.Unmarshal([]byte(msg.Payload), &view); err != nil {
				l.logger.Warn().Err(err).Msg("ignoring malformed cluster message")
				continue
			}

			l.logger.Debug().Str("pair", view.Pair).Uint64("seq", view.Seq).Msg("received rate update from cluster")
			l.broadcaster.Broadcast(&view)
		}
	}
}
