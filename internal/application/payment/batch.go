package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/gym/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	JobRecurring    = "recurring"
	JobInstallments = "installments"

	outcomeProcessed = "processed"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

var tracer = otel.Tracer("github.com/gym/backend/internal/application/payment")

// BatchResult summarizes one batch run. Joined marks a caller that attached
// to a run already in flight; the counts then belong to that run and its clock.
type BatchResult struct {
	Job       string        `json:"job"`
	Due       int           `json:"due"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Locked    bool          `json:"locked"`
	Joined    bool          `json:"joined"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

func (r *BatchResult) count(outcome string) {
	switch outcome {
	case outcomeProcessed:
		r.Processed++
	case outcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// BatchConfig tunes how batch runs are guarded
type BatchConfig struct {
	// BatchTimeout bounds a whole run. Zero disables it.
	BatchTimeout time.Duration
	// RecordTimeout bounds the work on a single due record
	RecordTimeout time.Duration
	// Lock serializes runs across processes. Nil disables it.
	Lock shared.ScheduleLock
	// LockTTL bounds how long a crashed holder blocks other runs
	LockTTL time.Duration
}

// DefaultBatchConfig returns the default batch guards
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchTimeout:  10 * time.Minute,
		RecordTimeout: 30 * time.Second,
		LockTTL:       15 * time.Minute,
	}
}

// batchRunner makes a job run at most once at a time in this process
// (singleflight) and, with a lock configured, across processes.
type batchRunner struct {
	sf      singleflight.Group
	config  BatchConfig
	metrics BatchRecorder
	logger  *zap.Logger
}

func newBatchRunner(config BatchConfig, metrics BatchRecorder, logger *zap.Logger) *batchRunner {
	defaults := DefaultBatchConfig()
	if config.RecordTimeout <= 0 {
		config.RecordTimeout = defaults.RecordTimeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &batchRunner{config: config, metrics: metrics, logger: logger}
}

// run executes fn for job. Concurrent callers share the in-flight run's result.
func (r *batchRunner) run(ctx context.Context, job string, fn func(ctx context.Context, result *BatchResult) error) (*BatchResult, error) {
	// Do reports shared to the leader too; only callers whose fn never ran joined
	led := false
	v, err, _ := r.sf.Do(job, func() (interface{}, error) {
		led = true
		return r.runGuarded(ctx, job, fn)
	})
	result, _ := v.(*BatchResult)
	if !led {
		r.logger.Debug("Joined in-flight batch run", zap.String("job", job))
		if result != nil {
			joinedResult := *result
			joinedResult.Joined = true
			result = &joinedResult
		}
	}
	return result, err
}

func (r *batchRunner) runGuarded(ctx context.Context, job string, fn func(ctx context.Context, result *BatchResult) error) (*BatchResult, error) {
	startTime := time.Now()
	result := &BatchResult{Job: job, StartedAt: startTime}

	if r.config.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.BatchTimeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "billing.batch."+job)
	defer span.End()

	if r.config.Lock != nil {
		lockName := "billing:" + job
		acquired, err := r.config.Lock.Acquire(ctx, lockName, r.config.LockTTL)
		switch {
		case err != nil:
			r.logger.Warn("Batch lock unavailable, relying on per-record claims",
				zap.String("job", job),
				zap.Error(err))
		case !acquired:
			result.Locked = true
			r.logger.Info("Batch run skipped, another process holds the lock", zap.String("job", job))
			return result, nil
		default:
			defer func() {
				if err := r.config.Lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
					r.logger.Warn("Failed to release batch lock", zap.String("job", job), zap.Error(err))
				}
			}()
		}
	}

	err := fn(ctx, result)
	result.Duration = time.Since(startTime)
	r.metrics.RecordBatch(ctx, job, result.Due, result.Duration)

	span.SetAttributes(
		attribute.Int("billing.due", result.Due),
		attribute.Int("billing.processed", result.Processed),
		attribute.Int("billing.failed", result.Failed),
		attribute.Int("billing.skipped", result.Skipped),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("Batch run failed",
			zap.String("job", job),
			zap.Duration("duration", result.Duration),
			zap.Int("processed", result.Processed),
			zap.Error(err))
		return result, err
	}

	r.logger.Info("Batch run completed",
		zap.String("job", job),
		zap.Duration("duration", result.Duration),
		zap.Int("due", result.Due),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// recordContext bounds the work on one due record
func (r *batchRunner) recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.config.RecordTimeout)
}

// settleContext bounds the state write that follows a charge attempt. It
// outlives the record deadline so a slow charge is still recorded.
func (r *batchRunner) settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.config.RecordTimeout)
}

// checkAborted reports a batch cut short by its deadline or by cancellation
func checkAborted(ctx context.Context, visited, due int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w after %d of %d records: %v", ErrBatchAborted, visited, due, err)
	}
	return nil
}
