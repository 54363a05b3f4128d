// Package ratelimit provides a fixed-window, per-business message rate
// limiter backed by a shared counter store.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Defaults for the fixed window.
const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// CounterStore is the minimal counter surface the limiter needs.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCounter adapts a redis client to CounterStore.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a RedisCounter.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr increments the counter at key and returns the new value.
func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Expire sets the key's TTL.
func (c *RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// Opts holds configuration options for the limiter.
type Opts struct {
	Limit  int64
	Window time.Duration
}

// Option defines a configuration option for the limiter.
type Option func(*Opts)

// WithLimit overrides the per-window message budget.
func WithLimit(n int64) Option {
	return func(o *Opts) {
		o.Limit = n
	}
}

// WithWindow overrides the window duration.
func WithWindow(d time.Duration) Option {
	return func(o *Opts) {
		o.Window = d
	}
}

// Limiter counts inbound messages per business in fixed windows. The TTL is
// set when a window's first message arrives, so windows start on demand
// rather than on wall-clock boundaries.
type Limiter struct {
	counters CounterStore
	limit    int64
	window   time.Duration
}

// NewLimiter creates a Limiter.
func NewLimiter(counters CounterStore, opts ...Option) *Limiter {
	cfg := Opts{Limit: DefaultLimit, Window: DefaultWindow}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Limiter{counters: counters, limit: cfg.Limit, window: cfg.Window}
}

// Allow reports whether the business may process another inbound message.
// Counter store failures fail open: availability beats throttling here.
func (l *Limiter) Allow(ctx context.Context, businessID string) bool {
	key := "rate:" + businessID
	n, err := l.counters.Incr(ctx, key)
	if err != nil {
		slog.Error("Rate limit counter increment failed, allowing message", "error", err, "businessID", businessID)
		return true
	}
	if n == 1 {
		if err := l.counters.Expire(ctx, key, l.window); err != nil {
			slog.Error("Rate limit window expiry failed", "error", err, "businessID", businessID)
		}
	}
	if n > l.limit {
		slog.Debug("Rate limit exceeded", "businessID", businessID, "count", n, "limit", l.limit)
		return false
	}
	return true
}

// String describes the limiter configuration, useful in startup logs.
func (l *Limiter) String() string {
	return fmt.Sprintf("%d msgs / %s per business", l.limit, l.window)
}
