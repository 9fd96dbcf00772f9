package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/httpclient"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

const rateLimitKey = "ai-gateway"

// GatewayConfig holds the model gateway connection settings
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// RequestsPerMinute caps outbound gateway calls across all workers.
	// Zero disables the proactive limit; 429 back-off windows still
	// apply.
	RequestsPerMinute int64
}

// Throttler is the shared admission check in front of every gateway
// call. Satisfied by redis.RateLimiter.
type Throttler interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error)
	IsBlocked(ctx context.Context, key string) (bool, time.Duration, error)
	BlockFor(ctx context.Context, key string, d time.Duration) error
}

// Gateway is the HTTP client for the model gateway. It implements every
// collaborator contract in this package against one upstream service.
type Gateway struct {
	client  *httpclient.Client
	limiter Throttler
	config  GatewayConfig
	logger  ectologger.Logger
}

var (
	_ IdeaGenerator  = (*Gateway)(nil)
	_ ImageGenerator = (*Gateway)(nil)
	_ Tagger         = (*Gateway)(nil)
	_ Translator     = (*Gateway)(nil)
	_ Describer      = (*Gateway)(nil)
)

// NewGateway creates a new model gateway client. The limiter is optional;
// when set, calls are admitted through a sliding-window limit and 429
// responses block further calls for the advertised window.
func NewGateway(client *httpclient.Client, limiter Throttler, config GatewayConfig, logger ectologger.Logger) *Gateway {
	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}
	return &Gateway{
		client:  client,
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

func (g *Gateway) headers() map[string]string {
	h := map[string]string{}
	if g.config.APIKey != "" {
		h["Authorization"] = "Bearer " + g.config.APIKey
	}
	return h
}

// post sends one gateway call and decodes the response into out.
func (g *Gateway) post(ctx context.Context, path string, body any, out any) error {
	if err := g.admit(ctx); err != nil {
		return err
	}

	resp, err := g.client.PostJSON(ctx, g.config.BaseURL+path, body, g.headers())
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		g.throttle(ctx, resp)
		return httperror.NewHTTPErrorf(http.StatusTooManyRequests, "model gateway rate limited: %s", path)
	}
	if resp.StatusCode >= 400 {
		return httperror.NewHTTPErrorf(resp.StatusCode, "model gateway call failed: %s: %s", path, string(resp.Body))
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode gateway response from %s: %w", path, err)
	}
	return nil
}

// admit runs the shared admission check. With a request budget
// configured the sliding window decides; otherwise only a recorded 429
// back-off window blocks. An unreachable limiter fails open so a Redis
// blip doesn't stall the pipeline.
func (g *Gateway) admit(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}

	if g.config.RequestsPerMinute > 0 {
		res, err := g.limiter.Allow(ctx, rateLimitKey, g.config.RequestsPerMinute, time.Minute)
		if err != nil {
			g.logger.WithContext(ctx).WithError(err).Warn("Gateway admission check failed, allowing call")
			return nil
		}
		if !res.Allowed {
			return httperror.NewHTTPErrorf(http.StatusTooManyRequests, "model gateway throttled, retry in %s", res.RetryIn)
		}
		return nil
	}

	if blocked, retryIn, err := g.limiter.IsBlocked(ctx, rateLimitKey); err == nil && blocked {
		return httperror.NewHTTPErrorf(http.StatusTooManyRequests, "model gateway throttled, retry in %s", retryIn)
	}
	return nil
}

// throttle records a Retry-After window so other workers back off too.
func (g *Gateway) throttle(ctx context.Context, resp *httpclient.Response) {
	if g.limiter == nil {
		return
	}
	retryAfter := 30 * time.Second
	if v := resp.Headers["Retry-After"]; v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}
	if err := g.limiter.BlockFor(ctx, rateLimitKey, retryAfter); err != nil {
		g.logger.WithContext(ctx).WithError(err).Warn("Failed to record gateway throttle window")
	}
}

// GenerateIdeas implements IdeaGenerator
func (g *Gateway) GenerateIdeas(ctx context.Context, req IdeaRequest) ([]Idea, error) {
	ctx, span := tracing.StartSpan(ctx, "Gateway.GenerateIdeas")
	defer span.End()

	var out struct {
		Ideas []Idea `json:"ideas"`
	}
	if err := g.post(ctx, "/v1/ideas", req, &out); err != nil {
		return nil, err
	}
	return out.Ideas, nil
}

// GenerateImage implements ImageGenerator. Returns the artifact bytes
// and their content type.
func (g *Gateway) GenerateImage(ctx context.Context, promptText string) ([]byte, string, error) {
	ctx, span := tracing.StartSpan(ctx, "Gateway.GenerateImage")
	defer span.End()

	body := map[string]string{"prompt_text": promptText}
	var out struct {
		ImageBase64 string `json:"image_base64"`
		ContentType string `json:"content_type"`
	}
	if err := g.post(ctx, "/v1/images", body, &out); err != nil {
		return nil, "", err
	}

	data, err := base64.StdEncoding.DecodeString(out.ImageBase64)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode generated image: %w", err)
	}
	if out.ContentType == "" {
		out.ContentType = "image/png"
	}
	return data, out.ContentType, nil
}

// Tag implements Tagger
func (g *Gateway) Tag(ctx context.Context, topic, locale string) (*TagResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Gateway.Tag")
	defer span.End()

	body := map[string]string{"topic": topic, "locale": locale}
	var out TagResult
	if err := g.post(ctx, "/v1/tags", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Translate implements Translator
func (g *Gateway) Translate(ctx context.Context, content CanonicalContent, locales []string) ([]Translation, error) {
	ctx, span := tracing.StartSpan(ctx, "Gateway.Translate")
	defer span.End()

	body := struct {
		Content CanonicalContent `json:"content"`
		Locales []string         `json:"locales"`
	}{Content: content, Locales: locales}

	var out struct {
		Translations []Translation `json:"translations"`
	}
	if err := g.post(ctx, "/v1/translations", body, &out); err != nil {
		return nil, err
	}
	return out.Translations, nil
}

// Describe implements Describer
func (g *Gateway) Describe(ctx context.Context, title, locale string, existing ExistingFields) (*DescribeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Gateway.Describe")
	defer span.End()

	body := struct {
		Title    string         `json:"title"`
		Locale   string         `json:"locale"`
		Existing ExistingFields `json:"existing"`
	}{Title: title, Locale: locale, Existing: existing}

	var out DescribeResult
	if err := g.post(ctx, "/v1/descriptions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
