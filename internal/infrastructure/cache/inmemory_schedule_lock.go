package cache

import (
	"context"
	"sync"
	"time"

	"github.com/gym/backend/internal/domain/shared"
)

// InMemoryScheduleLock implements shared.ScheduleLock within one process.
// It does not coordinate separate instances.
type InMemoryScheduleLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewInMemoryScheduleLock creates an empty lock table
func NewInMemoryScheduleLock() *InMemoryScheduleLock {
	return &InMemoryScheduleLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire takes the named lock unless an unexpired holder owns it
func (l *InMemoryScheduleLock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiresAt, ok := l.held[name]; ok && now.Before(expiresAt) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

// Release drops the named lock
func (l *InMemoryScheduleLock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// Close is a no-op
func (l *InMemoryScheduleLock) Close() error {
	return nil
}

var _ shared.ScheduleLock = (*InMemoryScheduleLock)(nil)
