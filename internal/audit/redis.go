package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// RedisSinkConfig controls the decision stream publisher.
type RedisSinkConfig struct {
	Stream        string  `yaml:"stream"`          // Default: regimeguard:decisions
	MaxLen        int64   `yaml:"max_len"`         // Default: 100000, approximate stream cap
	PublishPerSec float64 `yaml:"publish_per_sec"` // Default: 500, rate limit
	Burst         int     `yaml:"burst"`           // Default: 100
}

// DefaultRedisSinkConfig returns the baseline publisher settings.
func DefaultRedisSinkConfig() RedisSinkConfig {
	return RedisSinkConfig{
		Stream:        "regimeguard:decisions",
		MaxLen:        100000,
		PublishPerSec: 500,
		Burst:         100,
	}
}

// RedisSink appends decision payloads to a capped Redis stream. Publishes
// run behind a circuit breaker so a dead Redis never stalls a backtest,
// and a rate limiter keeps bursty rebalance dates from flooding the wire.
type RedisSink struct {
	client  redis.Cmdable
	cfg     RedisSinkConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	closer  func() error
}

// NewRedisSink wraps an existing client. closer may be nil when the caller
// owns the client lifecycle.
func NewRedisSink(client redis.Cmdable, cfg RedisSinkConfig, closer func() error) *RedisSink {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit-redis",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &RedisSink{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.PublishPerSec), cfg.Burst),
		breaker: breaker,
		closer:  closer,
	}
}

// Publish XADDs the payload to the stream. Rate-limited payloads are
// silently dropped: audit is best-effort and a backtest must not block on
// telemetry.
func (s *RedisSink) Publish(ctx context.Context, payload map[string]interface{}) error {
	if !s.limiter.Allow() {
		return nil
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.XAdd(ctx, &redis.XAddArgs{
			Stream: s.cfg.Stream,
			MaxLen: s.cfg.MaxLen,
			Approx: true,
			Values: payload,
		}).Result()
	})
	if err != nil {
		return fmt.Errorf("redis sink publish: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
