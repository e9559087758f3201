package ratelimit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"eventreg/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type LimitType string

const (
	LimitTypeDefault  LimitType = "default"
	LimitTypePublic   LimitType = "public"
	LimitTypeCheckout LimitType = "checkout"
	LimitTypeAdmin    LimitType = "admin"
	LimitTypeHealth   LimitType = "health"
)

type Config struct {
	Enabled          bool
	WindowDuration   time.Duration
	DefaultRequests  int
	PublicRequests   int
	CheckoutRequests int
	AdminRequests    int
	// Zero means unlimited
	HealthRequests int
	WhitelistedIPs []string
}

type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// slidingWindow trims the window, counts it, and admits the request if
// there is room. Scores are unix milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)
if count >= limit then
	redis.call('PEXPIRE', key, window_ms)
	return {0, 0}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window_ms)
return {1, limit - count - 1}
`)

// RateLimiter is a Redis sliding-window limiter keyed by client IP and route class
type RateLimiter struct {
	client redis.Scripter
	config Config
	now    func() time.Time
}

func NewRateLimiter(client redis.Scripter, config Config) *RateLimiter {
	return &RateLimiter{client: client, config: config, now: time.Now}
}

func (r *RateLimiter) IsAllowed(ctx context.Context, clientIP string, limitType LimitType) (*Result, error) {
	limit := r.limit(limitType)
	now := r.now()
	reset := now.Add(r.config.WindowDuration).Unix()

	if !r.config.Enabled || limit <= 0 || slices.Contains(r.config.WhitelistedIPs, clientIP) {
		return &Result{Allowed: true, Limit: limit, Remaining: limit, ResetTime: reset}, nil
	}

	key := fmt.Sprintf(constants.RATE_LIMIT_KEY_FORMAT, limitType, clientIP)
	window := r.config.WindowDuration.Milliseconds()

	vals, err := slidingWindow.Run(ctx, r.client, []string{key},
		now.Add(-r.config.WindowDuration).UnixMilli(),
		now.UnixMilli(),
		limit,
		window,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("unexpected redis response: %v", vals)
	}

	return &Result{
		Allowed:   vals[0] == 1,
		Limit:     limit,
		Remaining: int(vals[1]),
		ResetTime: reset,
	}, nil
}

func (r *RateLimiter) limit(t LimitType) int {
	switch t {
	case LimitTypePublic:
		return r.config.PublicRequests
	case LimitTypeCheckout:
		return r.config.CheckoutRequests
	case LimitTypeAdmin:
		return r.config.AdminRequests
	case LimitTypeHealth:
		return r.config.HealthRequests
	default:
		return r.config.DefaultRequests
	}
}
