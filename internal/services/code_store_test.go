package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the same contract against every CodeStore implementation.
// expire moves the store's notion of time forward.
func exerciseStore(t *testing.T, store CodeStore, expire func(time.Duration)) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "code", "123456", time.Minute))
	v, err := store.Get(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, "123456", v)

	require.NoError(t, store.Set(ctx, "code", "654321", time.Minute))
	v, err = store.Take(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, "654321", v, "last write wins")
	_, err = store.Take(ctx, "code")
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err := store.SetNX(ctx, "once", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.SetNX(ctx, "once", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = store.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, store.Set(ctx, "short", "x", 10*time.Second))
	expire(11 * time.Second)
	_, err = store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Delete(ctx, "counter"))
	_, err = store.Get(ctx, "counter")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore(t *testing.T) {
	clock := newTestClock()
	exerciseStore(t, NewMemoryStoreWithClock(100, clock.Now), clock.Advance)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	exerciseStore(t, NewRedisStore(client), mr.FastForward)
}
