//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisScheduleLock(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	a := NewRedisScheduleLockWithClient(client, "test:")
	b := NewRedisScheduleLockWithClient(client, "test:")

	ok, err := a.Acquire(ctx, "recurring", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "recurring", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx, "recurring"), "releasing a lock never held is a no-op")
	exists, err := client.Exists(ctx, "test:recurring").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, a.Release(ctx, "recurring"))
	ok, err = b.Acquire(ctx, "recurring", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisScheduleLock_ExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	a := NewRedisScheduleLockWithClient(client, "test:")
	b := NewRedisScheduleLockWithClient(client, "test:")

	ok, err := a.Acquire(ctx, "installments", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		ok, err := b.Acquire(ctx, "installments", time.Minute)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond)

	require.NoError(t, a.Release(ctx, "installments"))
	val, err := client.Get(ctx, "test:installments").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, val, "b still holds the lock")
}
