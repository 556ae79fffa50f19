package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryScheduleLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails until release", func(t *testing.T) {
		lock := NewInMemoryScheduleLock()

		ok, err := lock.Acquire(ctx, "recurring", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = lock.Acquire(ctx, "recurring", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = lock.Acquire(ctx, "installments", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "names are independent")

		require.NoError(t, lock.Release(ctx, "recurring"))
		ok, err = lock.Acquire(ctx, "recurring", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired holder is replaced", func(t *testing.T) {
		lock := NewInMemoryScheduleLock()
		now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
		lock.clock = func() time.Time { return now }

		ok, _ := lock.Acquire(ctx, "recurring", time.Minute)
		require.True(t, ok)

		now = now.Add(2 * time.Minute)
		ok, err := lock.Acquire(ctx, "recurring", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("only one concurrent caller wins", func(t *testing.T) {
		lock := NewInMemoryScheduleLock()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := lock.Acquire(ctx, "recurring", time.Minute); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
