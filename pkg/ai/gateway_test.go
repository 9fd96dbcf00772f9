package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/dahlia/pkg/httpclient"
	"github.com/Ramsey-B/dahlia/pkg/redis"
)

type fakeThrottler struct {
	allowed     bool
	retryIn     time.Duration
	allowCalls  int
	allowErr    error
	blocked     bool
	blockedFor  time.Duration
	recordedFor []time.Duration
}

func (f *fakeThrottler) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error) {
	f.allowCalls++
	if f.allowErr != nil {
		return nil, f.allowErr
	}
	return &redis.RateLimitResult{Allowed: f.allowed, RetryIn: f.retryIn}, nil
}

func (f *fakeThrottler) IsBlocked(ctx context.Context, key string) (bool, time.Duration, error) {
	return f.blocked, f.blockedFor, nil
}

func (f *fakeThrottler) BlockFor(ctx context.Context, key string, d time.Duration) error {
	f.recordedFor = append(f.recordedFor, d)
	return nil
}

func newTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestGateway(t *testing.T, handler http.HandlerFunc, throttler Throttler, rpm int64) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := newTestLogger()
	return NewGateway(
		httpclient.NewClient(httpclient.DefaultConfig(), logger),
		throttler,
		GatewayConfig{BaseURL: server.URL, RequestsPerMinute: rpm},
		logger,
	)
}

func TestGatewayDeniedBySlidingWindow(t *testing.T) {
	throttler := &fakeThrottler{allowed: false, retryIn: 12 * time.Second}
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("denied call must not reach the gateway")
	}, throttler, 10)

	_, err := gateway.GenerateIdeas(context.Background(), IdeaRequest{Category: "dinosaurs", Count: 3})

	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, httperror.GetStatusCode(err))
	assert.Equal(t, 1, throttler.allowCalls)
}

func TestGatewayAdmittedBySlidingWindow(t *testing.T) {
	throttler := &fakeThrottler{allowed: true}
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ideas": [{"topic": "stegosaurus plates"}]}`))
	}, throttler, 10)

	ideas, err := gateway.GenerateIdeas(context.Background(), IdeaRequest{Category: "dinosaurs", Count: 1})

	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Equal(t, "stegosaurus plates", ideas[0].Topic)
	assert.Equal(t, 1, throttler.allowCalls)
}

func TestGatewayFailsOpenWhenThrottlerErrors(t *testing.T) {
	throttler := &fakeThrottler{allowErr: context.DeadlineExceeded}
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ideas": []}`))
	}, throttler, 10)

	_, err := gateway.GenerateIdeas(context.Background(), IdeaRequest{Category: "dinosaurs", Count: 1})

	require.NoError(t, err)
}

func TestGatewayBlockedWithoutRequestBudget(t *testing.T) {
	throttler := &fakeThrottler{blocked: true, blockedFor: 30 * time.Second}
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("blocked call must not reach the gateway")
	}, throttler, 0)

	_, err := gateway.GenerateIdeas(context.Background(), IdeaRequest{Category: "dinosaurs", Count: 1})

	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, httperror.GetStatusCode(err))
	assert.Equal(t, 0, throttler.allowCalls)
}

func TestGatewayRecordsRetryAfterWindow(t *testing.T) {
	throttler := &fakeThrottler{allowed: true}
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}, throttler, 10)

	_, err := gateway.GenerateIdeas(context.Background(), IdeaRequest{Category: "dinosaurs", Count: 1})

	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, httperror.GetStatusCode(err))
	require.Len(t, throttler.recordedFor, 1)
	assert.Equal(t, 7*time.Second, throttler.recordedFor[0])
}
