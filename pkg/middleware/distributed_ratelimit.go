package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
)

// DefaultRedisPrefix namespaces rate limit keys in Redis
const DefaultRedisPrefix = "taskapi:ratelimit"

// RedisLimiter implements a fixed-window limit shared by every instance
// through Redis INCR + EXPIRE. Calls go through a circuit breaker so an
// unreachable Redis fails fast.
type RedisLimiter struct {
	redis   redis.UniversalClient
	config  RateLimitConfig
	prefix  string
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewRedisLimiter creates a new Redis-backed rate limiter
func NewRedisLimiter(client redis.UniversalClient, config RateLimitConfig, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisLimiter{
		redis:  client,
		config: config.withDefaults(),
		prefix: prefix,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "redis-ratelimit",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		now: time.Now,
	}
}

// Backend names the limiter in metrics
func (l *RedisLimiter) Backend() string {
	return "redis"
}

// BreakerState reports the circuit breaker state
func (l *RedisLimiter) BreakerState() gobreaker.State {
	return l.breaker.State()
}

type redisCount struct {
	count int64
	ttl   time.Duration
}

// Allow counts a request for key in the current window. On error the
// caller should let the request through.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	res, err := l.breaker.Execute(func() (interface{}, error) {
		pipe := l.redis.TxPipeline()
		incr := pipe.Incr(ctx, redisKey)
		pttl := pipe.PTTL(ctx, redisKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}

		ttl := pttl.Val()
		if ttl < 0 {
			// First hit of the window, or a key that lost its expiry
			if err := l.redis.PExpire(ctx, redisKey, l.config.Window).Err(); err != nil {
				return nil, err
			}
			ttl = l.config.Window
		}
		return redisCount{count: incr.Val(), ttl: ttl}, nil
	})
	if err != nil {
		return Decision{Allowed: true, Limit: l.config.Requests}, fmt.Errorf("redis rate limit: %w", err)
	}

	rc := res.(redisCount)
	remaining := l.config.Requests - int(rc.count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   rc.count <= int64(l.config.Requests),
		Limit:     l.config.Requests,
		Remaining: remaining,
		ResetAt:   l.now().Add(rc.ttl),
	}, nil
}

// Reset clears the window for a key
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, fmt.Sprintf("%s:%s", l.prefix, key)).Err()
}
