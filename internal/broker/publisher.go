package broker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"ratehub/internal/config"
	"ratehub/internal/domain"
	"ratehub/internal/storage"
)

// messageWriter is the slice of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RatePublisher delivers rate outbox records onto the broker topic.
type RatePublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewRatePublisher constructs a publisher backed by a kafka.Writer.
func NewRatePublisher(cfg config.KafkaConfig, logger zerolog.Logger) *RatePublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newRatePublisher(writer, logger)
}

func newRatePublisher(writer messageWriter, logger zerolog.Logger) *RatePublisher {
	return &RatePublisher{
		writer: writer,
		logger: logger.With().Str("component", "rate_kafka_publisher").Logger(),
	}
}

// EventType implements outbox.Publisher.
func (p *RatePublisher) EventType() string {
	return domain.EventTypeRate
}

// Publish writes the record payload keyed by event key, so all events for
// one producer/pair/seq land on the same partition.
func (p *RatePublisher) Publish(ctx context.Context, rec storage.OutboxRecord) error {
	p.logger.Debug().
		Str("event_key", rec.EventKey).
		Int("schema_version", rec.SchemaVersion).
		Msg("publishing rate event to broker")

	msg := kafka.Message{
		Key:   []byte(rec.EventKey),
		Value: rec.Payload,
		Headers: []kafka.Header{
			{Key: "eventKey", Value: []byte(rec.EventKey)},
			{Key: "schemaVersion", Value: []byte(strconv.Itoa(rec.SchemaVersion))},
			{Key: "eventType", Value: []byte(rec.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	p.logger.Info().Str("event_key", rec.EventKey).Msg("rate event published")
	return nil
}

// Close releases the underlying writer.
func (p *RatePublisher) Close() error {
	return p.writer.Close()
}
