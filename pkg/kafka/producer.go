package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AssetEvent represents a lifecycle event about an asset or one of its
// derived records. Keyed by asset ID so one asset's events stay ordered.
type AssetEvent struct {
	EventType string          `json:"event_type"` // asset.created, asset.published, asset.localized, links.indexed, request.skipped
	AssetID   string          `json:"asset_id"`
	Locale    string          `json:"locale,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PublishAssetEvent publishes an asset lifecycle event to Kafka
func (p *Producer) PublishAssetEvent(ctx context.Context, event *AssetEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishAssetEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.AssetID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte("1.0")},
		},
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "failure", time.Since(start).Seconds())
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish asset event")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"asset_id":   event.AssetID,
	}).Debug("Published asset event")

	return nil
}
