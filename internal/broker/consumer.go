package broker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"ratehub/internal/config"
	"ratehub/internal/domain"
)

// RateApplier applies a raw broker payload to the rate store.
type RateApplier interface {
	OnRawMessage(ctx context.Context, raw []byte) domain.StoreUpdate
}

// ViewPublisher forwards an accepted snapshot to the cluster topic.
type ViewPublisher interface {
	Publish(ctx context.Context, view domain.RateView)
}

// messageReader is the slice of kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads rate events from the broker and feeds them into the rate
// store. Every message is committed regardless of outcome: a poison
// message must never trigger a redelivery storm, at the accepted cost of
// silently dropping payloads that fail to parse.
type Consumer struct {
	reader  messageReader
	store   RateApplier
	cluster ViewPublisher
	logger  zerolog.Logger
}

// NewConsumer constructs a Consumer backed by a kafka.Reader consumer group.
func NewConsumer(cfg config.KafkaConfig, store RateApplier, cluster ViewPublisher, logger zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})
	return newConsumer(reader, store, cluster, logger)
}

func newConsumer(reader messageReader, store RateApplier, cluster ViewPublisher, logger zerolog.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		store:   store,
		cluster: cluster,
		logger:  logger.With().Str("component", "rate_consumer").Logger(),
	}
}

// Run blocks, consuming until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("broker fetch failed")
			continue
		}

		c.logger.Debug().
			Int64("offset", msg.Offset).
			Int("size", len(msg.Value)).
			Msg("rate message received")

		update := c.store.OnRawMessage(ctx, msg.Value)
		if update.Result == domain.Accepted && update.View != nil {
			c.logger.Debug().
				Str("pair", update.View.Pair).
				Uint64("seq", update.View.Seq).
				Msg("rate accepted and stored")
			c.cluster.Publish(ctx, *update.View)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("broker commit failed")
		}
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
