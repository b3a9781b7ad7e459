package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	_, client := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "login:203.0.113.1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, "login:203.0.113.1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "sixth request exceeds the limit")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	_, client := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(ctx, "login:a", 3, time.Minute)
		require.NoError(t, err)
	}

	allowed, err := limiter.Allow(ctx, "login:b", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.Allow(ctx, "login:x", 2, time.Minute)
		require.NoError(t, err)
	}
	allowed, err := limiter.Allow(ctx, "login:x", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	// Entries outside the window stop counting.
	mr.FastForward(3 * time.Minute)

	allowed, err = limiter.Allow(ctx, "login:x", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiterReset(t *testing.T) {
	_, client := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.Allow(ctx, "login:y", 2, time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, limiter.Reset(ctx, "login:y"))

	allowed, err := limiter.Allow(ctx, "login:y", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
