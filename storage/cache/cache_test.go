package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	c := NewMemory(2, time.Hour).(*memoryCache)
	c.now = func() time.Time { return now }

	t.Run("miss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("hit", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
		val, ok, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), val)
	})

	t.Run("expired entry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
		now = now.Add(time.Minute)
		_, ok, err := c.Get(ctx, "b")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))
		require.NoError(t, c.Delete(ctx, "c"))
		_, ok, _ := c.Get(ctx, "c")
		assert.False(t, ok)
	})

	t.Run("size bound evicts the oldest", func(t *testing.T) {
		c := NewMemory(2, time.Hour)
		for _, k := range []string{"x", "y", "z"} {
			require.NoError(t, c.Set(ctx, k, []byte(k), 0))
		}
		_, ok, _ := c.Get(ctx, "x")
		assert.False(t, ok)
		_, ok, _ = c.Get(ctx, "z")
		assert.True(t, ok)
	})
}
