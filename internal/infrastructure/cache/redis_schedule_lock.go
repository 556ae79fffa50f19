package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const defaultLockPrefix = "gym:billing:lock:"

// releaseScript deletes the key only while it still carries our token, so a
// holder whose TTL expired cannot drop a lock someone else has since taken
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisScheduleLock implements shared.ScheduleLock with SET NX PX.
// Suitable when several billing processes share one database.
type RedisScheduleLock struct {
	client    redis.UniversalClient
	keyPrefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisScheduleLock connects to redis and verifies it with a ping
func NewRedisScheduleLock(cfg config.RedisConfig) (*RedisScheduleLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisScheduleLockWithClient(client, ""), nil
}

// NewRedisScheduleLockWithClient wraps an existing client
func NewRedisScheduleLockWithClient(client redis.UniversalClient, keyPrefix string) *RedisScheduleLock {
	if keyPrefix == "" {
		keyPrefix = defaultLockPrefix
	}
	return &RedisScheduleLock{
		client:    client,
		keyPrefix: keyPrefix,
		tokens:    make(map[string]string),
	}
}

// Acquire takes the named lock for ttl
func (l *RedisScheduleLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[name] = token
	l.mu.Unlock()
	return true, nil
}

// Release drops the named lock when it is still ours
func (l *RedisScheduleLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + name}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

// Ping reports whether redis answers
func (l *RedisScheduleLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the redis client
func (l *RedisScheduleLock) Close() error {
	return l.client.Close()
}

var _ shared.ScheduleLock = (*RedisScheduleLock)(nil)
