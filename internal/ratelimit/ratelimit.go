// Package ratelimit counts requests per tenant and client in fixed windows
// stored in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultLimit  = 1000
	DefaultWindow = 15 * time.Minute
	keyPrefix     = "bokai:ratelimit"
)

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// Degraded is set when the counter store failed and the request was let
	// through without counting.
	Degraded bool
}

// Limiter is a fixed-window counter. Redis errors fail open.
type Limiter struct {
	client goredis.UniversalClient
	limit  int
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func New(client goredis.UniversalClient, limit int, window time.Duration, logger *zap.Logger) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{client: client, limit: limit, window: window, logger: logger, now: time.Now}
}

func (l *Limiter) Limit() int {
	return l.limit
}

// Allow counts one request for tenantID from clientIP.
func (l *Limiter) Allow(ctx context.Context, tenantID, clientIP string) Decision {
	now := l.now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)
	key := fmt.Sprintf("%s:%s:%s:%d", keyPrefix, tenantID, clientIP, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetAt: resetAt, Degraded: true}
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// NewClient connects to the Redis server at redisURL.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
