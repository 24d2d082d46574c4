package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	a := New(client, nil, "campaign-scheduler", time.Minute)
	b := New(client, nil, "campaign-scheduler", time.Minute)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire the same lock")

	require.NoError(t, a.Release(ctx))

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock should be free after release")
}

func TestRedisLockReleaseOnlyByOwner(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	a := New(client, nil, "segment-refresher", time.Minute)
	b := New(client, nil, "segment-refresher", time.Minute)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// b never held the lock; releasing must not free a's lock.
	require.NoError(t, b.Release(ctx))

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDistinctNamesDoNotCollide(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	a := New(client, nil, "journey-engine", time.Minute)
	b := New(client, nil, "import-processor", time.Minute)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
