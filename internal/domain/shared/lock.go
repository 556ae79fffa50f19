package shared

import (
	"context"
	"time"
)

// ScheduleLock serializes batch runs across processes.
type ScheduleLock interface {
	// Acquire takes the named lock for ttl.
	// Returns false without error when another holder already owns it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release drops the named lock if this process still holds it
	Release(ctx context.Context, name string) error

	// Close releases resources held by the lock backend
	Close() error
}

