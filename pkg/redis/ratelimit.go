package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitResult is the outcome of one admission check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
	RetryIn   time.Duration
}

// RateLimiter throttles outbound model gateway calls. It combines a
// sliding-window admission check with a shared block window recorded
// when the gateway answers 429, so every worker backs off together.
type RateLimiter struct {
	client    *Client
	keyPrefix string
}

// NewRateLimiter creates a new RateLimiter
func NewRateLimiter(client *Client, keyPrefix string) *RateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RateLimiter) blockKey(key string) string {
	return r.keyPrefix + key + ":block"
}

// BlockFor blocks a key for the given duration. Used when the gateway
// tells us to back off (429 Retry-After).
func (r *RateLimiter) BlockFor(ctx context.Context, key string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return r.client.rdb.Set(ctx, r.blockKey(key), "1", d).Err()
}

// IsBlocked returns whether the key is currently blocked and, if so,
// for how long.
func (r *RateLimiter) IsBlocked(ctx context.Context, key string) (bool, time.Duration, error) {
	exists, err := r.client.rdb.Exists(ctx, r.blockKey(key)).Result()
	if err != nil {
		return false, 0, err
	}
	if exists == 0 {
		return false, 0, nil
	}
	ttl, err := r.client.rdb.TTL(ctx, r.blockKey(key)).Result()
	if err != nil {
		return true, 0, err
	}
	if ttl < 0 {
		ttl = 0
	}
	return true, ttl, nil
}

// Allow admits one request under a sliding-window limit. Counting runs
// in a Lua script so concurrent workers can't over-admit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	rateKey := r.keyPrefix + key

	// A recorded 429 window fails closed regardless of the local count.
	if blocked, ttl, err := r.IsBlocked(ctx, key); err == nil && blocked {
		return &RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   now.Add(ttl),
			RetryIn:   ttl,
		}, nil
	}

	script := goredis.NewScript(`
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local limit = tonumber(ARGV[3])
		local window_ms = tonumber(ARGV[4])

		redis.call("zremrangebyscore", key, "-inf", window_start)
		local current = redis.call("zcard", key)

		if current < limit then
			redis.call("zadd", key, now, now .. "-" .. math.random())
			redis.call("pexpire", key, window_ms)
			return {1, limit - current - 1}
		else
			local oldest = redis.call("zrange", key, 0, 0, "WITHSCORES")
			if #oldest > 0 then
				return {0, 0, oldest[2]}
			end
			return {0, 0, 0}
		end
	`)

	result, err := script.Run(ctx, r.client.rdb, []string{rateKey},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		limit,
		window.Milliseconds(),
	).Slice()

	if err != nil {
		return nil, err
	}

	allowedFlag, err := toInt64(result[0])
	if err != nil {
		return nil, err
	}
	remaining, err := toInt64(result[1])
	if err != nil {
		return nil, err
	}
	allowed := allowedFlag == 1

	res := &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}

	if !allowed && len(result) > 2 {
		oldestMs, err := toInt64(result[2])
		if err != nil {
			return nil, err
		}
		if oldestMs > 0 {
			oldestTime := time.UnixMilli(oldestMs)
			res.RetryIn = oldestTime.Add(window).Sub(now)
		}
	}

	return res, nil
}

// toInt64 normalizes the numeric shapes Lua replies come back in.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(n, 64)
			if ferr != nil {
				return 0, err
			}
			return int64(f), nil
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}
