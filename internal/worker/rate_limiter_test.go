package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, ratePerSecond int) (*RateLimiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, ratePerSecond), mr
}

func TestReserveWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 5)
	orgID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, wait, err := limiter.Reserve(ctx, orgID, 1)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Zero(t, wait)
	}
}

func TestReserveDeniedOverPerSecondLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)
	orgID := uuid.New()
	ctx := context.Background()

	allowed, _, err := limiter.Reserve(ctx, orgID, 2)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, wait, err := limiter.Reserve(ctx, orgID, 1)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Second, wait)
}

func TestReserveDailyLimitExceeded(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1000)
	limiter.dailyLimit = 3
	orgID := uuid.New()
	ctx := context.Background()

	allowed, _, err := limiter.Reserve(ctx, orgID, 3)
	require.NoError(t, err)
	require.True(t, allowed)

	_, _, err = limiter.Reserve(ctx, orgID, 1)
	assert.ErrorIs(t, err, ErrDailyLimit)
}

func TestReserveIsolatedPerOrganization(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	allowed, _, err := limiter.Reserve(ctx, uuid.New(), 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = limiter.Reserve(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestReserveWithoutRedisAllows(t *testing.T) {
	limiter := NewRateLimiter(nil, 1)
	allowed, wait, err := limiter.Reserve(context.Background(), uuid.New(), 100)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, wait)
}
