package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryBackoff(t *testing.T) {
	p := &Processor{config: ProcessorConfig{ClaimMinIdle: time.Minute}}

	tests := []struct {
		name       string
		retryCount int64
		want       time.Duration
	}{
		{name: "first delivery", retryCount: 1, want: time.Minute},
		{name: "second delivery doubles", retryCount: 2, want: 2 * time.Minute},
		{name: "third delivery", retryCount: 3, want: 4 * time.Minute},
		{name: "fifth delivery", retryCount: 5, want: 16 * time.Minute},
		{name: "capped at one hour", retryCount: 20, want: time.Hour},
		{name: "zero retry count uses base", retryCount: 0, want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.retryBackoff(tt.retryCount))
		})
	}
}

func TestNewProcessorAppliesDefaults(t *testing.T) {
	p := NewProcessor(nil, nil, nil, ProcessorConfig{Stage: "localize", Stream: "dahlia:localize"}, nil)

	assert.Equal(t, int64(DefaultBatchSize), p.config.BatchSize)
	assert.Equal(t, DefaultBlockTimeout, p.config.BlockTimeout)
	assert.Equal(t, DefaultMaxRetries, p.config.MaxRetries)
	assert.Equal(t, DefaultClaimInterval, p.config.ClaimInterval)
	assert.Equal(t, DefaultClaimMinIdle, p.config.ClaimMinIdle)
	assert.Equal(t, 1, p.config.WorkerCount)
}

func TestNewProcessorFloorsClaimMinIdleAtHandlerBudget(t *testing.T) {
	tests := []struct {
		name         string
		claimMinIdle time.Duration
		budget       time.Duration
		want         time.Duration
	}{
		{
			name:         "slow handler raises the stale threshold",
			claimMinIdle: time.Minute,
			budget:       2 * time.Minute,
			want:         4 * time.Minute,
		},
		{
			name:         "configured threshold above the floor is kept",
			claimMinIdle: 10 * time.Minute,
			budget:       time.Minute,
			want:         10 * time.Minute,
		},
		{
			name:         "no budget keeps the configured threshold",
			claimMinIdle: time.Minute,
			budget:       0,
			want:         time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(nil, nil, nil, ProcessorConfig{
				Stage:         "asset-generate",
				Stream:        "dahlia:asset-generate",
				ClaimMinIdle:  tt.claimMinIdle,
				HandlerBudget: tt.budget,
			}, nil)

			assert.Equal(t, tt.want, p.config.ClaimMinIdle)
		})
	}
}

func TestRetryBackoffNeverDropsBelowClaimMinIdle(t *testing.T) {
	// A raised stale threshold must keep dominating the backoff cap, or
	// later deliveries would become claimable while still in flight.
	p := &Processor{config: ProcessorConfig{ClaimMinIdle: 90 * time.Minute}}

	assert.Equal(t, 90*time.Minute, p.retryBackoff(1))
	assert.Equal(t, 90*time.Minute, p.retryBackoff(5))
	assert.Equal(t, 90*time.Minute, p.retryBackoff(20))
}

func TestDefaultProcessorConfig(t *testing.T) {
	cfg := DefaultProcessorConfig("link-index", "dahlia:link-index")

	assert.Equal(t, "link-index", cfg.Stage)
	assert.Equal(t, "dahlia:link-index", cfg.Stream)
	assert.NotEmpty(t, cfg.ConsumerName)
	assert.Equal(t, "dahlia-workers", cfg.ConsumerGroup)
}
