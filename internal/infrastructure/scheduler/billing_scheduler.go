package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/gym/backend/internal/infrastructure/telemetry"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobStatus represents the outcome of the last run of a billing job
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// RecurringProcessor charges every due recurring schedule
type RecurringProcessor interface {
	ProcessRecurringPayments(ctx context.Context, now time.Time) (*apppayment.BatchResult, error)
}

// InstallmentProcessor charges every due installment
type InstallmentProcessor interface {
	ProcessInstallmentPayments(ctx context.Context, now time.Time) (*apppayment.BatchResult, error)
}

// JobRun records one run of a billing job
type JobRun struct {
	Job        string                  `json:"job"`
	Status     JobStatus               `json:"status"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt *time.Time              `json:"finishedAt,omitempty"`
	Result     *apppayment.BatchResult `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// Status is a snapshot of the scheduler for health reporting
type Status struct {
	Running  bool       `json:"running"`
	CronSpec string     `json:"cronSpec"`
	NextRun  *time.Time `json:"nextRun,omitempty"`
	LastRuns []JobRun   `json:"lastRuns"`
}

// BillingSchedulerConfig holds billing scheduler configuration
type BillingSchedulerConfig struct {
	// CronSpec is a standard 5-field expression or a descriptor such as @hourly
	CronSpec string
	Location *time.Location
	Clock    func() time.Time
}

// DefaultBillingSchedulerConfig returns an hourly UTC schedule
func DefaultBillingSchedulerConfig() BillingSchedulerConfig {
	return BillingSchedulerConfig{
		CronSpec: "0 * * * *",
		Location: time.UTC,
		Clock:    time.Now,
	}
}

type billingJob struct {
	name string
	run  func(ctx context.Context, now time.Time) (*apppayment.BatchResult, error)
}

// BillingScheduler fires the recurring and installment batches on a cron
// schedule. Each tick runs recurring charges first, then installments.
type BillingScheduler struct {
	config   BillingSchedulerConfig
	schedule cron.Schedule
	jobs     []billingJob
	logger   *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.RWMutex
	isRunning bool
	lastRuns  map[string]JobRun
}

// NewBillingScheduler creates a billing scheduler. The cron spec is parsed eagerly.
func NewBillingScheduler(config BillingSchedulerConfig, recurring RecurringProcessor, installments InstallmentProcessor, logger *zap.Logger) (*BillingScheduler, error) {
	defaults := DefaultBillingSchedulerConfig()
	if config.CronSpec == "" {
		config.CronSpec = defaults.CronSpec
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recurring == nil || installments == nil {
		return nil, fmt.Errorf("%w: both batch processors are required", ErrInvalidConfig)
	}

	schedule, err := cron.ParseStandard(config.CronSpec)
	if err != nil {
		return nil, fmt.Errorf("%w: cron spec %q: %v", ErrInvalidConfig, config.CronSpec, err)
	}

	return &BillingScheduler{
		config:   config,
		schedule: schedule,
		jobs: []billingJob{
			{name: apppayment.JobRecurring, run: recurring.ProcessRecurringPayments},
			{name: apppayment.JobInstallments, run: installments.ProcessInstallmentPayments},
		},
		logger:   logger.Named("billing-scheduler"),
		lastRuns: make(map[string]JobRun),
	}, nil
}

// Start registers the billing tick and starts the cron loop
func (s *BillingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	cronLogger := &cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.config.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.entryID = s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.RunOnce(s.ctx)
	}))
	s.cron.Start()
	s.isRunning = true

	s.logger.Info("Billing scheduler started",
		zap.String("cron_spec", s.config.CronSpec),
		zap.String("location", s.config.Location.String()),
		zap.Time("next_run", s.cron.Entry(s.entryID).Next),
	)
	return nil
}

// Stop stops the cron loop and waits for in-flight runs. When ctx expires
// first, in-flight batches are cancelled and ctx.Err() is returned.
func (s *BillingScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cronDone := s.cron.Stop()
	cancel := s.cancel
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		s.logger.Info("Billing scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		cancel()
		s.logger.Warn("Billing scheduler stop timed out, in-flight batches cancelled")
		return ctx.Err()
	}
}

// Trigger starts an out-of-schedule run in the background
func (s *BillingScheduler) Trigger() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(s.ctx)
	}()
	return nil
}

// RunOnce runs every billing job in order and returns their runs. A failed
// job does not stop the next one.
func (s *BillingScheduler) RunOnce(ctx context.Context) []JobRun {
	runs := make([]JobRun, 0, len(s.jobs))
	for _, job := range s.jobs {
		runs = append(runs, s.runJob(ctx, job))
	}
	return runs
}

// RunJob runs the named job once, outside the cron schedule
func (s *BillingScheduler) RunJob(ctx context.Context, name string) (JobRun, error) {
	for _, job := range s.jobs {
		if job.name == name {
			return s.runJob(ctx, job), nil
		}
	}
	return JobRun{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
}

func (s *BillingScheduler) runJob(ctx context.Context, job billingJob) JobRun {
	now := s.config.Clock()
	run := JobRun{Job: job.name, Status: JobStatusRunning, StartedAt: now}
	s.record(run)

	s.logger.Debug("Billing job starting", zap.String("job", job.name), zap.Time("now", now))
	var (
		result *apppayment.BatchResult
		err    error
	)
	telemetry.WithProfilingLabels(ctx, map[string]string{telemetry.ProfilingLabelJob: job.name}, func(ctx context.Context) {
		result, err = job.run(ctx, now)
	})

	finished := s.config.Clock()
	run.FinishedAt = &finished
	run.Result = result
	if err != nil {
		run.Status = JobStatusFailed
		run.Error = err.Error()
		s.logger.Error("Billing job failed", zap.String("job", job.name), zap.Error(err))
	} else {
		run.Status = JobStatusSuccess
	}
	s.record(run)
	return run
}

func (s *BillingScheduler) record(run JobRun) {
	s.mu.Lock()
	s.lastRuns[run.Job] = run
	s.mu.Unlock()
}

// Status returns the scheduler state and the last run of each job
func (s *BillingScheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Running:  s.isRunning,
		CronSpec: s.config.CronSpec,
		LastRuns: make([]JobRun, 0, len(s.jobs)),
	}
	if s.isRunning {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	for _, job := range s.jobs {
		if run, ok := s.lastRuns[job.name]; ok {
			status.LastRuns = append(status.LastRuns, run)
		}
	}
	return status
}

// IsRunning reports whether the cron loop is active
func (s *BillingScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// cronLogger adapts zap to cron.Logger. Cron's info chatter goes to debug.
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
