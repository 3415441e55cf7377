package decision

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBucketStore_RefillsOverTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryBucketStore()
	store.now = func() time.Time { return now }
	b := Bucket{Capacity: 10, Refill: 5, Interval: 10 * time.Second}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		take, err := store.Take(ctx, "ip", 1, b)
		require.NoError(t, err)
		require.True(t, take.Allowed)
	}

	take, err := store.Take(ctx, "ip", 1, b)
	require.NoError(t, err)
	assert.False(t, take.Allowed)
	assert.Equal(t, 0, take.Remaining)
	assert.Equal(t, 2*time.Second, take.ResetIn)

	// 5 tokens per 10s
	now = now.Add(10 * time.Second)
	for i := 0; i < 5; i++ {
		take, err = store.Take(ctx, "ip", 1, b)
		require.NoError(t, err)
		require.True(t, take.Allowed, "token %d", i+1)
	}
	take, _ = store.Take(ctx, "ip", 1, b)
	assert.False(t, take.Allowed)
}

func TestMemoryBucketStore_SweepsIdleKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryBucketStore()
	store.now = func() time.Time { return now }
	store.lastSweep = now
	b := Bucket{Capacity: 1, Refill: 1, Interval: time.Second}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = store.Take(ctx, fmt.Sprintf("ip-%d", i), 1, b)
	}
	require.Equal(t, 3, store.Len())

	now = now.Add(idleAfter + time.Minute)
	_, _ = store.Take(ctx, "fresh", 1, b)
	assert.Equal(t, 1, store.Len())
}
