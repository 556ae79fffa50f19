package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProcessInstallmentPayments_CompletesAfterLastInstallment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := fixedNow.Add(-time.Hour)
	ip := f.seedPlan(t, "300.00", 3, first)

	now := first
	for i := 1; i <= 3; i++ {
		result, err := f.tracker.ProcessInstallmentPayments(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 1, result.Processed, "installment %d", i)

		stored, err := f.plans.FindByID(ctx, ip.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, stored.CurrentInstallment)

		if i < 3 {
			assert.Equal(t, payment.InstallmentStatusActive, stored.Status)
			require.NotNil(t, stored.NextDueDate, "next due date is kept until the last installment")
			assert.True(t, stored.NextDueDate.Equal(now.AddDate(0, 1, 0)))
			now = *stored.NextDueDate
		} else {
			assert.Equal(t, payment.InstallmentStatusCompleted, stored.Status)
			assert.Nil(t, stored.NextDueDate)
		}
	}

	charged := f.payments.All()
	require.Len(t, charged, 3)
	for i, p := range charged {
		assert.Equal(t, fmt.Sprintf("INST-%s-%d", ip.ID, i+1), p.Reference)
		assert.Equal(t, fmt.Sprintf("Installment %d of 3: Annual membership", i+1), p.Description)
		assert.Equal(t, payment.MethodInstallment, p.Method)
		assert.True(t, p.Amount.Equal(decimal.NewFromInt(100)))
	}

	result, err := f.tracker.ProcessInstallmentPayments(ctx, now.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)
}

func TestProcessInstallmentPayments_FailureMarksOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := fixedNow.Add(-48 * time.Hour)
	ip := f.seedPlan(t, "600.00", 6, due)
	f.payments.CreateHook = func(*payment.Payment) error { return errors.New("card expired") }

	f.notifier.On("SendPaymentReminder",
		mock.Anything,
		mock.MatchedBy(func(n payment.NotificationContext) bool {
			return n.DaysOverdue == 2 && n.Amount.Equal(decimal.NewFromInt(100)) && n.Member.Email == "dana@example.com"
		}),
	).Return(nil).Once()

	result, err := f.tracker.ProcessInstallmentPayments(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	f.notifier.AssertExpectations(t)

	stored, err := f.plans.FindByID(ctx, ip.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.InstallmentStatusOverdue, stored.Status)
	assert.Equal(t, "card expired", stored.LastError)
	assert.Equal(t, 1, stored.CurrentInstallment)

	again, err := f.tracker.ProcessInstallmentPayments(ctx, fixedNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Due, "overdue plans wait for an operator")

	resumed, err := f.tracker.ResumeInstallmentPlan(ctx, ip.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", resumed.Status)
	assert.Empty(t, resumed.LastError)
	require.NotNil(t, resumed.NextDueDate)
	assert.True(t, resumed.NextDueDate.Equal(fixedNow.AddDate(0, 1, 0)))

	trail, err := f.audit.GetMemberPaymentAuditTrail(ctx, f.member.ID, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, audit.ActionPaymentAttemptFailed, trail[0].Action)
	md, ok := trail[0].Metadata.(audit.PaymentAttemptFailedMetadata)
	require.True(t, ok)
	assert.Equal(t, "INSTALLMENT", md.Source)
	assert.True(t, md.Terminal)
}

func TestInstallmentTracker_TerminalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	completed := f.seedPlan(t, "100.00", 1, fixedNow.Add(-time.Hour))
	_, err := f.tracker.ProcessInstallmentPayments(ctx, fixedNow)
	require.NoError(t, err)

	_, err = f.tracker.CancelInstallmentPlan(ctx, completed.ID)
	assert.Equal(t, "INVALID_STATE", domainCode(err))
	_, err = f.tracker.ResumeInstallmentPlan(ctx, completed.ID)
	assert.Equal(t, "INVALID_STATE", domainCode(err))

	active := f.seedPlan(t, "200.00", 2, fixedNow.Add(time.Hour))
	cancelled, err := f.tracker.CancelInstallmentPlan(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	_, err = f.tracker.ResumeInstallmentPlan(ctx, active.ID)
	assert.Equal(t, "INVALID_STATE", domainCode(err))

	_, err = f.tracker.CancelInstallmentPlan(ctx, uuid.New())
	assert.Equal(t, "NOT_FOUND", domainCode(err))
}

func TestInstallmentTracker_CreateInstallmentPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dueDay := 5

	_, err := f.tracker.CreateInstallmentPlan(ctx, CreateInstallmentPlanRequest{
		MemberID:             uuid.New(),
		TotalAmount:          decimal.NewFromInt(600),
		NumberOfInstallments: 6,
		StartDate:            fixedNow,
	}, audit.SystemActor)
	assert.Equal(t, "NOT_FOUND", domainCode(err))

	created, err := f.tracker.CreateInstallmentPlan(ctx, CreateInstallmentPlanRequest{
		MemberID:             f.member.ID,
		TotalAmount:          decimal.NewFromInt(600),
		NumberOfInstallments: 6,
		StartDate:            fixedNow,
		DueDayOfMonth:        &dueDay,
	}, audit.SystemActor)
	require.NoError(t, err)
	assert.True(t, created.InstallmentAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, created.CurrentInstallment)
	assert.Equal(t, 6, created.RemainingInstallments)
	require.NotNil(t, created.NextDueDate)
	assert.Equal(t, time.April, created.NextDueDate.Month())
	assert.Equal(t, 5, created.NextDueDate.Day())

	page, err := f.tracker.ListInstallmentPlans(ctx, InstallmentPlanListFilter{MemberID: &f.member.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	trail, err := f.audit.GetMemberPaymentAuditTrail(ctx, f.member.ID, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, audit.ActionInstallmentPlanCreated, trail[0].Action)
	assert.Equal(t, "Installment plan of 600.00 created with 6 installments of 100.00", trail[0].Details)
}
