package payment_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlan(t *testing.T, n int, dueDay *int) *payment.InstallmentPlan {
	t.Helper()
	ip, err := payment.NewInstallmentPlan(payment.NewInstallmentPlanParams{
		MemberID:             uuid.New(),
		TotalAmount:          decimal.NewFromInt(300),
		NumberOfInstallments: n,
		StartDate:            date(2026, 1, 10),
		DueDayOfMonth:        dueDay,
		Description:          "Annual membership",
	})
	require.NoError(t, err)
	return ip
}

func TestNewInstallmentPlan(t *testing.T) {
	t.Run("derives amount and first due date", func(t *testing.T) {
		ip := newPlan(t, 3, intPtr(20))

		assert.Equal(t, payment.InstallmentStatusActive, ip.Status)
		assert.Equal(t, 1, ip.CurrentInstallment)
		assert.True(t, decimal.NewFromInt(100).Equal(ip.InstallmentAmount))
		require.NotNil(t, ip.NextDueDate)
		assert.Equal(t, date(2026, 1, 20), *ip.NextDueDate)
	})

	t.Run("rounds uneven split", func(t *testing.T) {
		ip, err := payment.NewInstallmentPlan(payment.NewInstallmentPlanParams{
			MemberID:             uuid.New(),
			TotalAmount:          decimal.NewFromInt(100),
			NumberOfInstallments: 3,
			StartDate:            date(2026, 1, 10),
		})
		require.NoError(t, err)
		assert.Equal(t, "33.33", ip.InstallmentAmount.StringFixed(2))
		assert.Equal(t, date(2026, 2, 10), *ip.NextDueDate)
	})

	tests := []struct {
		name   string
		params payment.NewInstallmentPlanParams
	}{
		{"zero installments", payment.NewInstallmentPlanParams{MemberID: uuid.New(), TotalAmount: decimal.NewFromInt(10), StartDate: date(2026, 1, 1)}},
		{"due day out of range", payment.NewInstallmentPlanParams{MemberID: uuid.New(), TotalAmount: decimal.NewFromInt(10), NumberOfInstallments: 2, StartDate: date(2026, 1, 1), DueDayOfMonth: intPtr(32)}},
		{"missing member", payment.NewInstallmentPlanParams{TotalAmount: decimal.NewFromInt(10), NumberOfInstallments: 2, StartDate: date(2026, 1, 1)}},
		{"zero total", payment.NewInstallmentPlanParams{MemberID: uuid.New(), NumberOfInstallments: 2, StartDate: date(2026, 1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payment.NewInstallmentPlan(tt.params)
			assert.Error(t, err)
		})
	}
}

func TestInstallmentPlan_ReferenceAndDescription(t *testing.T) {
	ip := newPlan(t, 4, nil)
	ip.CurrentInstallment = 2

	assert.Equal(t, fmt.Sprintf("INST-%s-2", ip.ID), ip.PaymentReference())
	assert.Equal(t, "Installment 2 of 4: Annual membership", ip.PaymentDescription())
}

func TestInstallmentPlan_CompletesExactlyAfterLastInstallment(t *testing.T) {
	ip := newPlan(t, 3, intPtr(20))

	for i := 1; i <= 3; i++ {
		require.Equal(t, payment.InstallmentStatusActive, ip.Status, "installment %d", i)
		require.NotNil(t, ip.NextDueDate, "installment %d", i)
		assert.Equal(t, i == 3, ip.IsLastInstallment())

		ip.RecordSuccess(*ip.NextDueDate)
	}

	assert.Equal(t, payment.InstallmentStatusCompleted, ip.Status)
	assert.Nil(t, ip.NextDueDate)
	assert.Equal(t, 4, ip.CurrentInstallment)
	assert.Equal(t, 0, ip.RemainingInstallments())
}

func TestInstallmentPlan_RecordSuccessAdvancesFromDueDate(t *testing.T) {
	ip := newPlan(t, 3, intPtr(20))
	late := date(2026, 1, 28)

	ip.RecordSuccess(late)

	require.NotNil(t, ip.NextDueDate)
	assert.Equal(t, date(2026, 2, 20), *ip.NextDueDate)
	assert.Equal(t, late, *ip.LastProcessedDate)
}

func TestInstallmentPlan_RecordFailure(t *testing.T) {
	ip := newPlan(t, 3, intPtr(20))
	now := ip.NextDueDate.AddDate(0, 0, 2).Add(time.Minute)

	days := ip.RecordFailure("card expired", now)

	assert.Equal(t, 3, days)
	assert.Equal(t, payment.InstallmentStatusOverdue, ip.Status)
	assert.Equal(t, "card expired", ip.LastError)
	assert.Equal(t, 1, ip.CurrentInstallment)
	assert.False(t, ip.IsDue(now))
}

func TestInstallmentPlan_Resume(t *testing.T) {
	t.Run("overdue plan is reactivated", func(t *testing.T) {
		ip := newPlan(t, 3, intPtr(20))
		ip.RecordFailure("card expired", date(2026, 1, 25))

		require.NoError(t, ip.Resume(date(2026, 2, 3)))
		assert.Equal(t, payment.InstallmentStatusActive, ip.Status)
		assert.Empty(t, ip.LastError)
		assert.Equal(t, date(2026, 2, 20), *ip.NextDueDate)
	})

	t.Run("terminal plans cannot resume", func(t *testing.T) {
		ip := newPlan(t, 1, nil)
		ip.RecordSuccess(date(2026, 2, 10))
		assert.Error(t, ip.Resume(date(2026, 3, 1)))

		cancelled := newPlan(t, 2, nil)
		require.NoError(t, cancelled.Cancel())
		assert.Error(t, cancelled.Resume(date(2026, 3, 1)))
	})
}

func TestInstallmentPlan_Cancel(t *testing.T) {
	ip := newPlan(t, 1, nil)
	ip.RecordSuccess(date(2026, 2, 10))
	assert.Error(t, ip.Cancel())
}
