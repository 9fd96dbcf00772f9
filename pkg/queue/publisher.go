package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// Publisher enqueues stage jobs. Stage-to-stage handoff goes through
// here exclusively; stages never call each other in-process.
type Publisher struct {
	streams      *redis.Streams
	streamPrefix string
	logger       ectologger.Logger
}

// NewPublisher creates a new job publisher
func NewPublisher(streams *redis.Streams, streamPrefix string, logger ectologger.Logger) *Publisher {
	if streamPrefix == "" {
		streamPrefix = "dahlia"
	}
	return &Publisher{
		streams:      streams,
		streamPrefix: streamPrefix,
		logger:       logger,
	}
}

// StreamFor returns the stream name for a stage
func (p *Publisher) StreamFor(stage string) string {
	return fmt.Sprintf("%s:%s", p.streamPrefix, stage)
}

// Enqueue publishes one job for the named stage. The payload is the
// stage's DTO and is serialized as-is.
func (p *Publisher) Enqueue(ctx context.Context, stage string, payload any) error {
	ctx, span := tracing.StartSpan(ctx, "Publisher.Enqueue")
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", stage, err)
	}

	job := &redis.JobMessage{
		ID:        uuid.New().String(),
		Type:      stage,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if _, err := p.streams.Publish(ctx, p.StreamFor(stage), job); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", stage, err)
	}

	p.logger.WithContext(ctx).Debugf("Enqueued %s job %s", stage, job.ID)
	return nil
}
