//go:build integration

package decision

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisBucketStore(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewRedisBucketStore(rdb, "test:")
	store.now = func() time.Time { return now }
	b := Bucket{Capacity: 3, Refill: 2, Interval: 10 * time.Second}

	for i := 0; i < 3; i++ {
		take, err := store.Take(ctx, "ip", 1, b)
		require.NoError(t, err)
		require.True(t, take.Allowed)
		require.Equal(t, 2-i, take.Remaining)
	}

	take, err := store.Take(ctx, "ip", 1, b)
	require.NoError(t, err)
	require.False(t, take.Allowed)
	require.Equal(t, 10*time.Second, take.ResetIn)

	now = now.Add(11 * time.Second)
	take, err = store.Take(ctx, "ip", 2, b)
	require.NoError(t, err)
	require.True(t, take.Allowed)
	require.Equal(t, 0, take.Remaining)

	ttl, err := rdb.PTTL(ctx, "test:ip").Result()
	require.NoError(t, err)
	require.Positive(t, ttl)
}
