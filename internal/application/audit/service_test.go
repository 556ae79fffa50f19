package audit_test

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/gym/backend/internal/application/audit"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/infrastructure/persistence/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ===== Mock ArchiveStore =====

type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

// ===== Helpers =====

var fixedNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *appaudit.Service
	entries    *memory.AuditStore
	compliance *memory.ComplianceStore
	archive    *MockArchiveStore
}

func newFixture(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	f := &fixture{
		entries:    memory.NewAuditStore(),
		compliance: memory.NewComplianceStore(),
		archive:    new(MockArchiveStore),
	}
	f.svc = appaudit.NewService(appaudit.ServiceConfig{
		Entries:    f.entries,
		Compliance: f.compliance,
		Archive:    f.archive,
		Logger:     logger,
		Clock:      func() time.Time { return fixedNow },
	})
	return f
}

func newPayment(t *testing.T) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(payment.NewPaymentParams{
		MemberID: uuid.New(),
		Amount:   decimal.NewFromFloat(59.99),
		Method:   payment.MethodCard,
	})
	require.NoError(t, err)
	return p
}

func entryAt(t *testing.T, ts time.Time, details, userAgent string) *audit.Entry {
	t.Helper()
	e, err := audit.NewEntry(audit.ActionPaymentAccessed, details,
		audit.PaymentAccessedMetadata{AccessType: "VIEW"},
		audit.Actor{IPAddress: "127.0.0.1", UserAgent: userAgent})
	require.NoError(t, err)
	e.Timestamp = ts
	return e
}

// ===== Tests =====

func TestService_AuditTrailIsAppendOnlyAndNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := newPayment(t)

	const n = 5
	for i := 0; i < n; i++ {
		e := entryAt(t, fixedNow.Add(time.Duration(i)*time.Minute), "view", "")
		e.WithPayment(p.ID)
		f.svc.LogPaymentActivity(ctx, e)
	}

	trail, err := f.svc.GetPaymentAuditTrail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, trail, n)
	for i := 1; i < n; i++ {
		assert.True(t, trail[i-1].Timestamp.After(trail[i].Timestamp), "entry %d out of order", i)
	}
}

func TestService_LogPaymentActivityNeverFails(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	f := newFixture(t, zap.New(core))
	f.entries.AppendErr = errors.New("connection refused")

	assert.NotPanics(t, func() {
		f.svc.LogPaymentCreation(context.Background(), newPayment(t), audit.SystemActor)
	})
	assert.Equal(t, 0, f.entries.Len())
	require.Equal(t, 1, recorded.FilterMessage("Best-effort write failed").Len())
}

func TestService_LogPaymentActivitySurvivesCancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.svc.LogPaymentCreation(ctx, newPayment(t), audit.SystemActor)
	assert.Equal(t, 1, f.entries.Len())
}

func TestService_SpecializedLoggers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := newPayment(t)
	userID := uuid.New()
	actor := audit.Actor{UserID: &userID, IPAddress: "10.1.1.1", UserAgent: "admin-ui"}

	f.svc.LogPaymentCreation(ctx, p, actor)
	f.svc.LogPaymentUpdate(ctx, p, []payment.FieldChange{{Field: "status", Old: "PENDING", New: "COMPLETED"}}, actor)
	f.svc.LogPaymentStatusChange(ctx, p, payment.StatusPending, payment.StatusCompleted, "", actor)
	f.svc.LogSuccessfulPayment(ctx, p, actor)
	f.svc.LogRefund(ctx, p, p.Amount, "member moved away", actor)
	f.svc.LogPaymentAccess(ctx, p.ID, &p.MemberID, "", actor)
	f.svc.LogPaymentDeletion(ctx, p, "duplicate", actor)
	f.svc.LogFailedPaymentAttempt(ctx, appaudit.FailedAttempt{
		MemberID: p.MemberID, PaymentID: &p.ID, Amount: p.Amount, ErrorMessage: "declined", Source: "manual",
	}, actor)

	trail, err := f.svc.GetPaymentAuditTrail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, trail, 8)

	byAction := make(map[audit.Action]audit.Entry)
	for _, e := range trail {
		byAction[e.Action] = e
		assert.Equal(t, &userID, e.UserID)
		assert.Equal(t, p.MemberID, *e.MemberID)
	}

	assert.Equal(t, "Payment of 59.99 USD created via CARD with status PENDING", byAction[audit.ActionPaymentCreated].Details)
	assert.Equal(t, "Payment updated: status", byAction[audit.ActionPaymentUpdated].Details)
	assert.Equal(t, "Payment status changed from PENDING to COMPLETED", byAction[audit.ActionPaymentStatusChanged].Details)
	assert.Equal(t, "Refund of 59.99 USD issued: member moved away", byAction[audit.ActionPaymentRefunded].Details)
	assert.Equal(t, audit.PaymentAccessedMetadata{AccessType: "VIEW"}, byAction[audit.ActionPaymentAccessed].Metadata)
	assert.Equal(t, audit.PaymentUpdatedMetadata{Changes: []audit.FieldChange{{Field: "status", Old: "PENDING", New: "COMPLETED"}}},
		byAction[audit.ActionPaymentUpdated].Metadata)
}

func TestService_ScheduleCreationLoggers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	memberID := uuid.New()

	rp, err := payment.NewRecurringPayment(payment.NewRecurringPaymentParams{
		MemberID: memberID, Amount: decimal.NewFromInt(30), Frequency: payment.FrequencyMonthly, StartDate: fixedNow,
	})
	require.NoError(t, err)
	ip, err := payment.NewInstallmentPlan(payment.NewInstallmentPlanParams{
		MemberID: memberID, TotalAmount: decimal.NewFromInt(600), NumberOfInstallments: 6, StartDate: fixedNow,
	})
	require.NoError(t, err)

	f.svc.LogRecurringPaymentCreation(ctx, rp, audit.SystemActor)
	f.svc.LogInstallmentPlanCreation(ctx, ip, audit.SystemActor)

	trail, err := f.svc.GetMemberPaymentAuditTrail(ctx, memberID, 0)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, audit.ActionInstallmentPlanCreated, trail[0].Action)
	assert.Equal(t, "Installment plan of 600.00 created with 6 installments of 100.00", trail[0].Details)
	assert.Equal(t, audit.ActionRecurringPaymentCreated, trail[1].Action)
	assert.Nil(t, trail[1].PaymentID)
}

func TestService_TrailLimits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	memberID := uuid.New()
	userID := uuid.New()

	for i := 0; i < 120; i++ {
		e := entryAt(t, fixedNow.Add(time.Duration(i)*time.Second), "view", "")
		e.WithMember(memberID)
		e.UserID = &userID
		f.svc.LogPaymentActivity(ctx, e)
	}

	memberTrail, err := f.svc.GetMemberPaymentAuditTrail(ctx, memberID, 0)
	require.NoError(t, err)
	assert.Len(t, memberTrail, appaudit.DefaultTrailLimit)

	userTrail, err := f.svc.GetUserPaymentAuditTrail(ctx, userID, 10)
	require.NoError(t, err)
	assert.Len(t, userTrail, 10)
	assert.Equal(t, fixedNow.Add(119*time.Second), userTrail[0].Timestamp)
}

func TestService_CreateComplianceCheckIsStrict(t *testing.T) {
	ctx := context.Background()

	t.Run("stored with generated id", func(t *testing.T) {
		f := newFixture(t, nil)
		check, err := f.svc.CreateComplianceCheck(ctx, appaudit.ComplianceCheckInput{
			PaymentID: uuid.New(), CheckType: "PCI_DSS", Status: audit.CheckStatusPassed,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, check.ID)
		assert.Equal(t, fixedNow, check.Timestamp)
	})

	t.Run("persistence failure propagates", func(t *testing.T) {
		f := newFixture(t, nil)
		storeErr := errors.New("disk full")
		f.compliance.CreateErr = storeErr

		check, err := f.svc.CreateComplianceCheck(ctx, appaudit.ComplianceCheckInput{
			PaymentID: uuid.New(), CheckType: "PCI_DSS", Status: audit.CheckStatusFailed,
		})
		assert.Nil(t, check)
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("invalid input rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.CreateComplianceCheck(ctx, appaudit.ComplianceCheckInput{PaymentID: uuid.New(), CheckType: "AML", Status: "MAYBE"})
		assert.Error(t, err)
	})
}

func TestService_GetComplianceReport(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	paymentID := uuid.New()

	for _, status := range []audit.CheckStatus{audit.CheckStatusPassed, audit.CheckStatusFailed, audit.CheckStatusFailed} {
		_, err := f.svc.CreateComplianceCheck(ctx, appaudit.ComplianceCheckInput{PaymentID: paymentID, CheckType: "AML", Status: status})
		require.NoError(t, err)
	}

	report, err := f.svc.GetComplianceReport(ctx, fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalChecks)
	assert.Equal(t, audit.TypeSummary{Total: 3, Passed: 1, Failed: 2}, report.ByType["AML"])
	assert.Len(t, report.FailedChecks, 2)

	_, err = f.svc.GetComplianceReport(ctx, fixedNow, fixedNow.Add(-time.Hour))
	assert.ErrorIs(t, err, appaudit.ErrInvalidRange)
}

func TestService_ExportAuditDataCSVRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	paymentID := uuid.New()

	details := `Member said "cancel it", then "keep it"`
	userAgent := `Mozilla/5.0 "Gym" App`
	first := entryAt(t, fixedNow.Add(-2*time.Hour), details, userAgent)
	first.WithPayment(paymentID)
	second := entryAt(t, fixedNow.Add(-time.Hour), "plain", "")
	f.svc.LogPaymentActivity(ctx, second)
	f.svc.LogPaymentActivity(ctx, first)

	result, err := f.svc.ExportAuditData(ctx, fixedNow.Add(-3*time.Hour), fixedNow, "csv")
	require.NoError(t, err)
	assert.Equal(t, appaudit.ExportFormatCSV, result.Format)
	assert.Equal(t, 2, result.Count)

	lines := strings.Split(result.CSV, "\n")
	assert.Equal(t, appaudit.CSVHeader, lines[0])
	assert.Contains(t, lines[1], `"Member said ""cancel it"", then ""keep it"""`)

	records, err := csv.NewReader(strings.NewReader(result.CSV)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, details, records[1][5], "oldest entry first")
	assert.Equal(t, userAgent, records[1][7])
	assert.Equal(t, paymentID.String(), records[1][4])
	assert.Equal(t, "", records[1][2], "absent user id renders empty")
	assert.Equal(t, "127.0.0.1", records[1][6])
	assert.Equal(t, "plain", records[2][5])
	assert.Equal(t, first.Timestamp.Format("2006-01-02T15:04:05.000Z"), records[1][0])
}

func TestService_ExportAuditDataRaw(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.svc.LogPaymentActivity(ctx, entryAt(t, fixedNow.Add(-time.Minute), "a", ""))
	f.svc.LogPaymentActivity(ctx, entryAt(t, fixedNow.Add(-2*time.Minute), "b", ""))
	f.svc.LogPaymentActivity(ctx, entryAt(t, fixedNow.Add(-48*time.Hour), "outside", ""))

	result, err := f.svc.ExportAuditData(ctx, fixedNow.Add(-time.Hour), fixedNow, "json")
	require.NoError(t, err)
	assert.Empty(t, result.CSV)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "b", result.Entries[0].Details)
	assert.Equal(t, "a", result.Entries[1].Details)
}

func TestService_CleanOldAuditLogsBoundary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.svc.LogPaymentActivity(ctx, entryAt(t, fixedNow.AddDate(0, 0, -29), "day 29", ""))
	f.svc.LogPaymentActivity(ctx, entryAt(t, fixedNow.AddDate(0, 0, -31), "day 31", ""))

	deleted, err := f.svc.CleanOldAuditLogs(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := f.svc.ExportAuditData(ctx, fixedNow.AddDate(-1, 0, 0), fixedNow, "")
	require.NoError(t, err)
	require.Len(t, remaining.Entries, 1)
	assert.Equal(t, "day 29", remaining.Entries[0].Details)
}

func TestService_CleanOldAuditLogsDefaultRetention(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.svc.LogPaymentActivity(ctx, entryAt(t, fixedNow.AddDate(0, 0, -2554), "kept", ""))
	f.svc.LogPaymentActivity(ctx, entryAt(t, fixedNow.AddDate(0, 0, -2556), "purged", ""))

	deleted, err := f.svc.CleanOldAuditLogs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestService_ArchiveAuditData(t *testing.T) {
	ctx := context.Background()
	start := fixedNow.Add(-24 * time.Hour)

	t.Run("uploads csv export", func(t *testing.T) {
		f := newFixture(t, nil)
		f.svc.LogPaymentActivity(ctx, entryAt(t, fixedNow.Add(-time.Hour), "archived", ""))
		f.archive.On("Upload", mock.Anything, "audit/20260614T120000Z_20260615T120000Z.csv",
			mock.MatchedBy(func(data []byte) bool { return strings.HasPrefix(string(data), appaudit.CSVHeader) }),
			"text/csv").Return(nil)

		result, err := f.svc.ArchiveAuditData(ctx, start, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Count)
		assert.Equal(t, "audit/20260614T120000Z_20260615T120000Z.csv", result.Key)
		f.archive.AssertExpectations(t)
	})

	t.Run("upload failure is returned", func(t *testing.T) {
		f := newFixture(t, nil)
		f.archive.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket missing"))

		_, err := f.svc.ArchiveAuditData(ctx, start, fixedNow)
		assert.Error(t, err)
	})

	t.Run("not configured", func(t *testing.T) {
		svc := appaudit.NewService(appaudit.ServiceConfig{
			Entries:    memory.NewAuditStore(),
			Compliance: memory.NewComplianceStore(),
		})
		_, err := svc.ArchiveAuditData(ctx, start, fixedNow)
		assert.ErrorIs(t, err, appaudit.ErrArchiveNotConfigured)
	})
}
