package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, cfg RateLimitConfig) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, cfg, ""), mr
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	l, mr := newRedisLimiter(t, RateLimitConfig{Requests: 2, Window: time.Minute})
	ctx := context.Background()

	d, err := l.Allow(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, time.Minute, mr.TTL(DefaultRedisPrefix+":ip:1.1.1.1"))

	d, err = l.Allow(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Limit)

	mr.FastForward(time.Minute + time.Second)

	d, err = l.Allow(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "expired window starts over")
}

func TestRedisLimiterKeepsExistingExpiry(t *testing.T) {
	l, mr := newRedisLimiter(t, RateLimitConfig{Requests: 5, Window: time.Minute})
	ctx := context.Background()

	_, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	_, err = l.Allow(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, mr.TTL(DefaultRedisPrefix+":k"))
}

func TestRedisLimiterReset(t *testing.T) {
	l, mr := newRedisLimiter(t, RateLimitConfig{Requests: 1, Window: time.Minute})
	ctx := context.Background()

	_, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, l.Reset(ctx, "k"))
	assert.False(t, mr.Exists(DefaultRedisPrefix+":k"))
}

func TestRedisLimiterFailsOpenAndTrips(t *testing.T) {
	l, mr := newRedisLimiter(t, RateLimitConfig{Requests: 1, Window: time.Minute})
	mr.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "k")
		assert.Error(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Equal(t, gobreaker.StateOpen, l.BreakerState())

	_, err := l.Allow(ctx, "k")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, "redis", l.Backend())
}
