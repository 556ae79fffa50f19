package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	appaudit "github.com/gym/backend/internal/application/audit"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/infrastructure/persistence/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// =============================================================================
// Mocks
// =============================================================================

// MockNotifier is a mock implementation of payment.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendFailedPaymentNotification(ctx context.Context, n payment.NotificationContext, errMsg string) error {
	args := m.Called(ctx, n, errMsg)
	return args.Error(0)
}

func (m *MockNotifier) SendPaymentReminder(ctx context.Context, n payment.NotificationContext) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotifier) SendPaymentReceipt(ctx context.Context, n payment.NotificationContext) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotifier) SendPaymentConfirmation(ctx context.Context, n payment.NotificationContext) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockInvoiceRenderer is a mock implementation of InvoiceRenderer
type MockInvoiceRenderer struct {
	mock.Mock
}

func (m *MockInvoiceRenderer) RenderInvoice(ctx context.Context, inv *Invoice) ([]byte, error) {
	args := m.Called(ctx, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// stubLock is a shared.ScheduleLock with a fixed answer
type stubLock struct {
	mu       sync.Mutex
	acquire  bool
	err      error
	released []string
}

func (l *stubLock) Acquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return l.acquire, l.err
}

func (l *stubLock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, name)
	return nil
}

func (l *stubLock) Close() error { return nil }

var _ shared.ScheduleLock = (*stubLock)(nil)

// =============================================================================
// Fixture
// =============================================================================

var fixedNow = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	member     payment.Member
	members    *memory.MemberStore
	payments   *memory.PaymentStore
	schedules  *memory.RecurringStore
	plans      *memory.InstallmentStore
	auditStore *memory.AuditStore
	audit      *appaudit.Service
	notifier   *MockNotifier
	logs       *observer.ObservedLogs

	failures  *FailureHandler
	scheduler *RecurringScheduler
	tracker   *InstallmentTracker
	service   *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	member := payment.Member{
		BaseEntity: shared.NewBaseEntity(),
		FirstName:  "Dana",
		LastName:   "Reyes",
		Email:      "dana@example.com",
	}
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	clock := func() time.Time { return fixedNow }

	f := &fixture{
		member:     member,
		members:    memory.NewMemberStore(member),
		auditStore: memory.NewAuditStore(),
		notifier:   new(MockNotifier),
		logs:       logs,
	}
	f.payments = memory.NewPaymentStore(f.members)
	f.schedules = memory.NewRecurringStore(f.members)
	f.plans = memory.NewInstallmentStore(f.members)
	f.audit = appaudit.NewService(appaudit.ServiceConfig{
		Entries:    f.auditStore,
		Compliance: memory.NewComplianceStore(),
		Logger:     logger,
		Clock:      clock,
	})
	f.failures = NewFailureHandler(FailureHandlerConfig{
		Schedules: f.schedules,
		Plans:     f.plans,
		Notifier:  f.notifier,
		Audit:     f.audit,
		Logger:    logger,
	})
	f.scheduler = NewRecurringScheduler(RecurringSchedulerConfig{
		Schedules: f.schedules,
		Payments:  f.payments,
		Members:   f.members,
		Failures:  f.failures,
		Audit:     f.audit,
		Logger:    logger,
		Clock:     clock,
	})
	f.tracker = NewInstallmentTracker(InstallmentTrackerConfig{
		Plans:    f.plans,
		Payments: f.payments,
		Members:  f.members,
		Failures: f.failures,
		Audit:    f.audit,
		Logger:   logger,
		Clock:    clock,
	})
	f.service = NewPaymentService(PaymentServiceConfig{
		Payments: f.payments,
		Members:  f.members,
		Audit:    f.audit,
		Notifier: f.notifier,
		Logger:   logger,
		Clock:    clock,
	})
	return f
}

// seedSchedule stores a monthly schedule of amount that is due at next
func (f *fixture) seedSchedule(t *testing.T, amount string, next time.Time, mutate ...func(rp *payment.RecurringPayment)) *payment.RecurringPayment {
	t.Helper()
	rp, err := payment.NewRecurringPayment(payment.NewRecurringPaymentParams{
		MemberID:  f.member.ID,
		Amount:    decimal.RequireFromString(amount),
		Frequency: payment.FrequencyMonthly,
		StartDate: next.AddDate(0, -1, 0),
	})
	require.NoError(t, err)
	rp.NextPaymentDate = next
	for _, m := range mutate {
		m(rp)
	}
	require.NoError(t, f.schedules.Create(context.Background(), rp))
	return rp
}

// seedPlan stores a plan of n installments whose current installment is due at next
func (f *fixture) seedPlan(t *testing.T, total string, n int, next time.Time, mutate ...func(ip *payment.InstallmentPlan)) *payment.InstallmentPlan {
	t.Helper()
	ip, err := payment.NewInstallmentPlan(payment.NewInstallmentPlanParams{
		MemberID:             f.member.ID,
		TotalAmount:          decimal.RequireFromString(total),
		NumberOfInstallments: n,
		StartDate:            next.AddDate(0, -1, 0),
		Description:          "Annual membership",
	})
	require.NoError(t, err)
	ip.NextDueDate = &next
	for _, m := range mutate {
		m(ip)
	}
	require.NoError(t, f.plans.Create(context.Background(), ip))
	return ip
}

func (f *fixture) seedPayment(t *testing.T, status payment.Status, amount string) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(payment.NewPaymentParams{
		MemberID:    f.member.ID,
		Amount:      decimal.RequireFromString(amount),
		Method:      payment.MethodCard,
		Status:      status,
		PaymentDate: fixedNow,
	})
	require.NoError(t, err)
	require.NoError(t, f.payments.Create(context.Background(), p))
	return p
}

func domainCode(err error) string {
	if de, ok := err.(*shared.DomainError); ok {
		return de.Code
	}
	return ""
}
