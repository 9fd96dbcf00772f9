package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/dahlia/pkg/context"
	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

const (
	// DefaultBatchSize is the default number of messages to consume at once
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of delivery retries for a job
	DefaultMaxRetries = 5

	// DefaultClaimInterval is how often to claim stale pending messages
	DefaultClaimInterval = 30 * time.Second

	// DefaultClaimMinIdle is the minimum idle time before claiming a message
	DefaultClaimMinIdle = 60 * time.Second
)

// Handler processes one job delivery. A returned error leaves the
// message unacked so the claim loop redelivers it later; a nil return
// acks the message permanently.
type Handler func(ctx context.Context, job *redis.JobMessage) error

// ProcessorConfig holds configuration for a stage processor
type ProcessorConfig struct {
	// Stage is the pipeline stage name, used for logs and metrics
	Stage string

	// Stream name for the job queue
	Stream string

	// Consumer group name
	ConsumerGroup string

	// Consumer name (unique per instance)
	ConsumerName string

	// Number of messages to fetch per batch
	BatchSize int64

	// How long to block waiting for new messages
	BlockTimeout time.Duration

	// Maximum number of delivery retries before dead-lettering
	MaxRetries int

	// How often to check for and claim stale pending messages
	ClaimInterval time.Duration

	// Minimum idle time before claiming a pending message
	ClaimMinIdle time.Duration

	// HandlerBudget is the worst-case duration of one handler call,
	// typically the upstream call timeout. XPENDING idle time is not
	// refreshed while a handler runs, so ClaimMinIdle is floored at
	// twice this value; claiming sooner would hand an in-flight message
	// to a second worker.
	HandlerBudget time.Duration

	// Number of worker goroutines
	WorkerCount int
}

// DefaultProcessorConfig returns the default processor configuration
func DefaultProcessorConfig(stage, stream string) ProcessorConfig {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = uuid.New().String()[:8]
	}

	return ProcessorConfig{
		Stage:         stage,
		Stream:        stream,
		ConsumerGroup: "dahlia-workers",
		ConsumerName:  hostname,
		BatchSize:     DefaultBatchSize,
		BlockTimeout:  DefaultBlockTimeout,
		MaxRetries:    DefaultMaxRetries,
		ClaimInterval: DefaultClaimInterval,
		ClaimMinIdle:  DefaultClaimMinIdle,
		WorkerCount:   1,
	}
}

// JobResult holds the result of processing a job
type JobResult struct {
	JobID     string
	MessageID string
	Success   bool
	Error     error
	Duration  time.Duration
}

// Processor consumes one stage's jobs from a Redis Streams queue.
// Delivery is at-least-once: a message is acked only after its handler
// returns nil, so handlers must tolerate redelivery.
type Processor struct {
	streams *redis.Streams
	dlq     *redis.DeadLetterQueue
	handler Handler
	config  ProcessorConfig
	logger  ectologger.Logger

	// Channels for coordination
	stopCh   chan struct{}
	stoppedC chan struct{}
	jobsCh   chan jobItem

	// State
	running bool
	mu      sync.RWMutex
}

type jobItem struct {
	message redis.StreamMessage
	job     *redis.JobMessage
}

// NewProcessor creates a new stage processor
func NewProcessor(
	streams *redis.Streams,
	dlq *redis.DeadLetterQueue,
	handler Handler,
	config ProcessorConfig,
	logger ectologger.Logger,
) *Processor {
	// Apply defaults
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = DefaultBlockTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.ClaimInterval <= 0 {
		config.ClaimInterval = DefaultClaimInterval
	}
	if config.ClaimMinIdle <= 0 {
		config.ClaimMinIdle = DefaultClaimMinIdle
	}
	if floor := 2 * config.HandlerBudget; config.ClaimMinIdle < floor {
		config.ClaimMinIdle = floor
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}

	return &Processor{
		streams:  streams,
		dlq:      dlq,
		handler:  handler,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
		jobsCh:   make(chan jobItem, config.BatchSize*2),
	}
}

// Start starts the processor
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("processor already running")
	}
	p.running = true
	p.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "Processor.Start")
	defer span.End()

	p.logger.WithContext(ctx).Infof("Starting stage processor: stage=%s stream=%s group=%s consumer=%s workers=%d",
		p.config.Stage, p.config.Stream, p.config.ConsumerGroup, p.config.ConsumerName, p.config.WorkerCount)

	// Create consumer group if it doesn't exist
	if err := p.streams.CreateConsumerGroup(ctx, p.config.Stream, p.config.ConsumerGroup); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to create consumer group")
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < p.config.WorkerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, i)
	}

	// Start consumer loop
	wg.Add(1)
	go p.consumeLoop(ctx, &wg)

	// Start claimer for stale messages
	wg.Add(1)
	go p.claimLoop(ctx, &wg)

	// Wait for stop signal
	go func() {
		<-p.stopCh
		close(p.jobsCh)
		wg.Wait()
		close(p.stoppedC)
	}()

	p.logger.WithContext(ctx).Info("Stage processor started")
	return nil
}

// Stop stops the processor gracefully
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.WithContext(ctx).Infof("Stopping stage processor: stage=%s", p.config.Stage)

	close(p.stopCh)

	// Wait for graceful shutdown with timeout
	select {
	case <-p.stoppedC:
		p.logger.WithContext(ctx).Infof("Stage processor stopped: stage=%s", p.config.Stage)
	case <-ctx.Done():
		p.logger.WithContext(ctx).Warnf("Stage processor shutdown timed out: stage=%s", p.config.Stage)
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the processor is running
func (p *Processor) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// consumeLoop continuously consumes messages from the stream
func (p *Processor) consumeLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	p.logger.WithContext(ctx).Debug("Consumer loop started")

	for {
		select {
		case <-p.stopCh:
			p.logger.WithContext(ctx).Debug("Consumer loop stopping")
			return
		default:
		}

		// Consume messages
		messages, err := p.streams.Consume(
			ctx,
			p.config.Stream,
			p.config.ConsumerGroup,
			p.config.ConsumerName,
			p.config.BatchSize,
			p.config.BlockTimeout,
		)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WithContext(ctx).WithError(err).Warn("Failed to consume messages")
			time.Sleep(time.Second) // Back off on error
			continue
		}

		// Send messages to workers
		for _, msg := range messages {
			select {
			case p.jobsCh <- jobItem{message: msg, job: &msg.Payload}:
			case <-p.stopCh:
				return
			}
		}
	}
}

// claimLoop periodically claims stale pending messages
func (p *Processor) claimLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(p.config.ClaimInterval)
	defer ticker.Stop()

	p.logger.WithContext(ctx).Debug("Claim loop started")

	for {
		select {
		case <-p.stopCh:
			p.logger.WithContext(ctx).Debug("Claim loop stopping")
			return
		case <-ticker.C:
			p.claimPendingMessages(ctx)
		}
	}
}

// retryBackoff returns the idle time a message must reach before its
// next redelivery. Doubling per delivery gives failed jobs an
// exponential backoff curve, capped at one hour. The cap never drops
// below ClaimMinIdle, which is floored at twice the handler budget.
func (p *Processor) retryBackoff(retryCount int64) time.Duration {
	limit := time.Hour
	if p.config.ClaimMinIdle > limit {
		limit = p.config.ClaimMinIdle
	}
	backoff := p.config.ClaimMinIdle
	for i := int64(1); i < retryCount; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	return backoff
}

// claimPendingMessages claims stale pending messages from other consumers
func (p *Processor) claimPendingMessages(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Processor.claimPendingMessages")
	defer span.End()

	// Get pending messages
	pending, err := p.streams.Pending(ctx, p.config.Stream, p.config.ConsumerGroup, p.config.BatchSize)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to get pending messages")
		return
	}

	if len(pending) == 0 {
		return
	}

	// Filter messages whose backoff window has elapsed
	var staleIDs []string
	for _, msg := range pending {
		if msg.Idle < p.retryBackoff(msg.RetryCount) {
			continue
		}
		if msg.RetryCount <= int64(p.config.MaxRetries) {
			staleIDs = append(staleIDs, msg.ID)
		} else {
			p.logger.WithContext(ctx).Warnf("Message %s exceeded max retries (%d), moving to DLQ", msg.ID, msg.RetryCount)
			p.moveToDLQ(ctx, msg.ID, int(msg.RetryCount), redis.ReasonMaxRetries, "exceeded maximum retry count")
		}
	}

	if len(staleIDs) == 0 {
		return
	}

	p.logger.WithContext(ctx).Infof("Claiming %d stale pending messages", len(staleIDs))

	// Claim the messages
	claimed, err := p.streams.Claim(ctx, p.config.Stream, p.config.ConsumerGroup, p.config.ConsumerName, p.config.ClaimMinIdle, staleIDs...)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to claim pending messages")
		return
	}

	// Send claimed messages to workers
	for _, msg := range claimed {
		select {
		case p.jobsCh <- jobItem{message: msg, job: &msg.Payload}:
		case <-p.stopCh:
			return
		default:
			// Channel full, skip for now
		}
	}
}

// worker processes jobs from the channel
func (p *Processor) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	p.logger.WithContext(ctx).Debugf("Worker %d started", id)

	for item := range p.jobsCh {
		result := p.processJob(ctx, item)

		if result.Success {
			// Acknowledge successful job
			if err := p.streams.Ack(ctx, p.config.Stream, p.config.ConsumerGroup, item.message.ID); err != nil {
				p.logger.WithContext(ctx).WithError(err).Warnf("Failed to ack message %s", item.message.ID)
			}
		} else {
			// Leave unacked; the claim loop redelivers after backoff
			p.logger.WithContext(ctx).WithError(result.Error).Warnf("Job %s failed, will be retried", result.JobID)
		}
	}

	p.logger.WithContext(ctx).Debugf("Worker %d stopped", id)
}

// processJob processes a single job
func (p *Processor) processJob(ctx context.Context, item jobItem) *JobResult {
	ctx, span := tracing.StartSpan(ctx, "Processor.processJob")
	defer span.End()

	start := time.Now()
	result := &JobResult{
		JobID:     item.job.ID,
		MessageID: item.message.ID,
	}

	ctx = appctx.SetJobID(ctx, item.job.ID)
	ctx = appctx.SetStage(ctx, p.config.Stage)

	p.logger.WithContext(ctx).Infof("Processing job %s: stage=%s type=%s", item.job.ID, p.config.Stage, item.job.Type)

	err := p.handler(ctx, item.job)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err
		result.Success = false
		metrics.RecordJobProcessed(p.config.Stage, "failure", result.Duration)
		p.logger.WithContext(ctx).WithError(err).Warnf("Job %s failed after %s", item.job.ID, result.Duration)
	} else {
		result.Success = true
		metrics.RecordJobProcessed(p.config.Stage, "success", result.Duration)
		p.logger.WithContext(ctx).Infof("Job %s completed successfully in %s", item.job.ID, result.Duration)
	}

	return result
}

// moveToDLQ moves a failed job to the dead letter queue
func (p *Processor) moveToDLQ(ctx context.Context, messageID string, retryCount int, reason redis.DeadLetterReason, errorMsg string) {
	ctx, span := tracing.StartSpan(ctx, "Processor.moveToDLQ")
	defer span.End()

	// Get the original message to store in DLQ
	messages, err := p.streams.Range(ctx, p.config.Stream, messageID, messageID)
	if err != nil || len(messages) == 0 {
		p.logger.WithContext(ctx).WithError(err).Warnf("Failed to get message %s for DLQ", messageID)
		// Still ack the message to prevent infinite retries
		if ackErr := p.streams.Ack(ctx, p.config.Stream, p.config.ConsumerGroup, messageID); ackErr != nil {
			p.logger.WithContext(ctx).WithError(ackErr).Warnf("Failed to ack failed message %s", messageID)
		}
		return
	}

	job := messages[0].Payload

	// Add to DLQ if available
	if p.dlq != nil {
		entry := &redis.DLQEntry{
			Stage:        p.config.Stage,
			Stream:       p.config.Stream,
			OriginalJob:  &job,
			Reason:       reason,
			ErrorMessage: errorMsg,
			RetryCount:   retryCount,
		}

		if _, dlqErr := p.dlq.Add(ctx, entry); dlqErr != nil {
			p.logger.WithContext(ctx).WithError(dlqErr).Errorf("Failed to add job %s to DLQ", job.ID)
		} else {
			metrics.RecordDLQJob(p.config.Stage, string(reason))
		}
	}

	// Ack the original message
	if ackErr := p.streams.Ack(ctx, p.config.Stream, p.config.ConsumerGroup, messageID); ackErr != nil {
		p.logger.WithContext(ctx).WithError(ackErr).Warnf("Failed to ack message %s after DLQ", messageID)
	}
}
