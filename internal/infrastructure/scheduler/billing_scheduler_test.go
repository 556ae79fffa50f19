package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockProcessors struct {
	mock.Mock
}

func (m *mockProcessors) ProcessRecurringPayments(ctx context.Context, now time.Time) (*apppayment.BatchResult, error) {
	args := m.Called(ctx, now)
	result, _ := args.Get(0).(*apppayment.BatchResult)
	return result, args.Error(1)
}

func (m *mockProcessors) ProcessInstallmentPayments(ctx context.Context, now time.Time) (*apppayment.BatchResult, error) {
	args := m.Called(ctx, now)
	result, _ := args.Get(0).(*apppayment.BatchResult)
	return result, args.Error(1)
}

var tick = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, p *mockProcessors, spec string) *BillingScheduler {
	t.Helper()
	s, err := NewBillingScheduler(BillingSchedulerConfig{
		CronSpec: spec,
		Clock:    func() time.Time { return tick },
	}, p, p, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewBillingScheduler_Validation(t *testing.T) {
	p := new(mockProcessors)

	_, err := NewBillingScheduler(BillingSchedulerConfig{CronSpec: "every hour"}, p, p, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewBillingScheduler(BillingSchedulerConfig{}, nil, p, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := NewBillingScheduler(BillingSchedulerConfig{}, p, p, nil)
	require.NoError(t, err)
	assert.Equal(t, "0 * * * *", s.Status().CronSpec)

	_, err = NewBillingScheduler(BillingSchedulerConfig{CronSpec: "@every 30m"}, p, p, nil)
	assert.NoError(t, err)
}

func TestBillingScheduler_RunOnce(t *testing.T) {
	p := new(mockProcessors)
	var order []string
	p.On("ProcessRecurringPayments", mock.Anything, tick).
		Run(func(mock.Arguments) { order = append(order, apppayment.JobRecurring) }).
		Return(nil, errors.New("database unavailable")).Once()
	p.On("ProcessInstallmentPayments", mock.Anything, tick).
		Run(func(mock.Arguments) { order = append(order, apppayment.JobInstallments) }).
		Return(&apppayment.BatchResult{Job: apppayment.JobInstallments, Due: 2, Processed: 2}, nil).Once()

	s := newTestScheduler(t, p, "")
	runs := s.RunOnce(context.Background())

	p.AssertExpectations(t)
	assert.Equal(t, []string{apppayment.JobRecurring, apppayment.JobInstallments}, order)
	require.Len(t, runs, 2)
	assert.Equal(t, JobStatusFailed, runs[0].Status)
	assert.Equal(t, "database unavailable", runs[0].Error)
	assert.Equal(t, JobStatusSuccess, runs[1].Status)
	assert.Equal(t, 2, runs[1].Result.Processed)

	status := s.Status()
	assert.False(t, status.Running)
	assert.Nil(t, status.NextRun)
	assert.Equal(t, runs, status.LastRuns)
}

func TestBillingScheduler_RunJob(t *testing.T) {
	p := new(mockProcessors)
	p.On("ProcessInstallmentPayments", mock.Anything, tick).
		Return(&apppayment.BatchResult{Job: apppayment.JobInstallments, Due: 1, Processed: 1}, nil).Once()

	s := newTestScheduler(t, p, "")
	run, err := s.RunJob(context.Background(), apppayment.JobInstallments)
	require.NoError(t, err)

	p.AssertExpectations(t)
	p.AssertNotCalled(t, "ProcessRecurringPayments", mock.Anything, mock.Anything)
	assert.Equal(t, JobStatusSuccess, run.Status)
	assert.Equal(t, 1, run.Result.Processed)

	status := s.Status()
	require.Len(t, status.LastRuns, 1)
	assert.Equal(t, apppayment.JobInstallments, status.LastRuns[0].Job)

	_, err = s.RunJob(context.Background(), "dunning")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestBillingScheduler_TriggerRequiresRunning(t *testing.T) {
	s := newTestScheduler(t, new(mockProcessors), "")
	assert.ErrorIs(t, s.Trigger(), ErrSchedulerNotRunning)
	assert.NoError(t, s.Stop(context.Background()))
}

func TestBillingScheduler_StartTriggerStop(t *testing.T) {
	p := new(mockProcessors)
	done := make(chan struct{})
	p.On("ProcessRecurringPayments", mock.Anything, tick).
		Return(&apppayment.BatchResult{Job: apppayment.JobRecurring}, nil).Once()
	p.On("ProcessInstallmentPayments", mock.Anything, tick).
		Run(func(mock.Arguments) { close(done) }).
		Return(&apppayment.BatchResult{Job: apppayment.JobInstallments}, nil).Once()

	// Far enough away that the cron never fires during the test
	s := newTestScheduler(t, p, "0 0 1 1 *")
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")
	assert.True(t, s.IsRunning())

	status := s.Status()
	assert.True(t, status.Running)
	require.NotNil(t, status.NextRun)
	assert.Equal(t, time.January, status.NextRun.Month())

	require.NoError(t, s.Trigger())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("triggered run did not complete")
	}

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
	p.AssertExpectations(t)
	assert.Len(t, s.Status().LastRuns, 2)
}

func TestBillingScheduler_StopCancelsOnTimeout(t *testing.T) {
	p := new(mockProcessors)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	p.On("ProcessRecurringPayments", mock.Anything, tick).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			close(started)
			<-ctx.Done()
			close(cancelled)
		}).
		Return(nil, apppayment.ErrBatchAborted).Once()
	p.On("ProcessInstallmentPayments", mock.Anything, tick).
		Return(&apppayment.BatchResult{}, nil).Maybe()

	s := newTestScheduler(t, p, "0 0 1 1 *")
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Trigger())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight batch was not cancelled")
	}
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &cronLogger{logger: zap.New(core)}

	l.Info("wake", "now", tick)
	l.Error(errors.New("boom"), "panic", "stack", "...")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "cron: wake", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
