package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *RedisAvailabilityCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisAvailabilityCache(client, time.Minute, nil)
}

func TestRedisAvailabilityCache_RoundTrip(t *testing.T) {
	mr, cache := setupCache(t)
	ctx := context.Background()
	from := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	_, ok, err := cache.Get(ctx, 1, from, to)
	require.NoError(t, err)
	assert.False(t, ok)

	views := []queries.SlotView{{ID: 5, OwnerID: 1, Start: from.Add(10 * time.Hour), DurationMin: 30, Status: "FREE"}}
	require.NoError(t, cache.Set(ctx, 1, from, to, views))

	got, ok, err := cache.Get(ctx, 1, from, to)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].ID)
	assert.True(t, views[0].Start.Equal(got[0].Start))

	// A different window is a separate entry.
	_, ok, err = cache.Get(ctx, 1, from, to.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, 1, from, to)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisAvailabilityCache_Invalidate(t *testing.T) {
	_, cache := setupCache(t)
	ctx := context.Background()
	from := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	require.NoError(t, cache.Set(ctx, 1, from, from.Add(time.Hour), nil))
	require.NoError(t, cache.Set(ctx, 1, from, from.Add(2*time.Hour), nil))
	require.NoError(t, cache.Set(ctx, 2, from, from.Add(time.Hour), nil))

	require.NoError(t, cache.Invalidate(ctx, 1))

	_, ok, err := cache.Get(ctx, 1, from, from.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = cache.Get(ctx, 2, from, from.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisAvailabilityCache_CorruptEntryIsMiss(t *testing.T) {
	mr, cache := setupCache(t)
	ctx := context.Background()
	from := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mr.HSet(ownerKey(1), windowField(from, to), "{not json")

	_, ok, err := cache.Get(ctx, 1, from, to)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(ownerKey(1)))
}
