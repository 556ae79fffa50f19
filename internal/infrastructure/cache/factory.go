package cache

import (
	"fmt"

	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ScheduleLockFactory picks a lock backend from configuration
type ScheduleLockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ScheduleLockFactoryOption is a functional option for configuring the factory
type ScheduleLockFactoryOption func(*ScheduleLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ScheduleLockFactoryOption {
	return func(f *ScheduleLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable redis degrades to a
// process-local lock. Default is true.
func WithInMemoryFallback(allow bool) ScheduleLockFactoryOption {
	return func(f *ScheduleLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewScheduleLockFactory creates a new factory
func NewScheduleLockFactory(cfg config.RedisConfig, opts ...ScheduleLockFactoryOption) *ScheduleLockFactory {
	f := &ScheduleLockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a redis lock when redis is enabled and reachable, else an
// in-memory lock if fallback is allowed
func (f *ScheduleLockFactory) Create() (shared.ScheduleLock, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory schedule lock")
		return NewInMemoryScheduleLock(), nil
	}

	lock, err := NewRedisScheduleLock(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis schedule lock", zap.String("addr", f.redisConfig.Addr()))
		return lock, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for schedule lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory schedule lock. "+
		"Concurrent billing processes will not be serialized.",
		zap.Error(err),
	)
	return NewInMemoryScheduleLock(), nil
}
