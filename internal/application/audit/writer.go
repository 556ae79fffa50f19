package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WriteFunc persists one value
type WriteFunc[T any] func(ctx context.Context, v *T) error

// BestEffortWriter wraps a persistence call whose failure must never reach the
// caller. Errors and panics are logged and dropped. The write is detached from
// the caller's cancellation so a finished request still gets its audit row.
type BestEffortWriter[T any] struct {
	write   WriteFunc[T]
	op      string
	timeout time.Duration
	logger  *zap.Logger
}

// NewBestEffortWriter wraps write. A zero timeout defaults to 5 seconds.
func NewBestEffortWriter[T any](op string, write WriteFunc[T], timeout time.Duration, logger *zap.Logger) *BestEffortWriter[T] {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BestEffortWriter[T]{write: write, op: op, timeout: timeout, logger: logger}
}

// Write persists v and reports whether it succeeded
func (w *BestEffortWriter[T]) Write(ctx context.Context, v *T) (ok bool) {
	if v == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Best-effort write panicked",
				zap.String("op", w.op),
				zap.Any("panic", r))
			ok = false
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	if err := w.write(ctx, v); err != nil {
		w.logger.Error("Best-effort write failed",
			zap.String("op", w.op),
			zap.Error(err))
		return false
	}
	return true
}

// StrictWriter wraps a persistence call whose failure must reach the caller
type StrictWriter[T any] struct {
	write  WriteFunc[T]
	op     string
	logger *zap.Logger
}

// NewStrictWriter wraps write
func NewStrictWriter[T any](op string, write WriteFunc[T], logger *zap.Logger) *StrictWriter[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StrictWriter[T]{write: write, op: op, logger: logger}
}

// Write persists v and returns any failure wrapped with the operation name
func (w *StrictWriter[T]) Write(ctx context.Context, v *T) error {
	if v == nil {
		return fmt.Errorf("%s: nil value", w.op)
	}
	if err := w.write(ctx, v); err != nil {
		w.logger.Error("Strict write failed",
			zap.String("op", w.op),
			zap.Error(err))
		return fmt.Errorf("%s: %w", w.op, err)
	}
	return nil
}
