package payment_test

import (
	"testing"
	"time"

	"github.com/gym/backend/internal/domain/payment"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func TestCalculateNextPaymentDate(t *testing.T) {
	tests := []struct {
		name      string
		from      time.Time
		frequency payment.Frequency
		expected  time.Time
	}{
		{"daily", date(2026, 3, 10), payment.FrequencyDaily, date(2026, 3, 11)},
		{"daily crosses month", date(2026, 4, 30), payment.FrequencyDaily, date(2026, 5, 1)},
		{"weekly", date(2026, 3, 10), payment.FrequencyWeekly, date(2026, 3, 17)},
		{"monthly", date(2026, 1, 15), payment.FrequencyMonthly, date(2026, 2, 15)},
		{"monthly overflow from Jan 31", date(2026, 1, 31), payment.FrequencyMonthly, date(2026, 3, 3)},
		{"monthly overflow in leap year", date(2028, 1, 31), payment.FrequencyMonthly, date(2028, 3, 2)},
		{"yearly", date(2026, 6, 1), payment.FrequencyYearly, date(2027, 6, 1)},
		{"yearly from leap day", date(2028, 2, 29), payment.FrequencyYearly, date(2029, 3, 1)},
		{"unknown frequency defaults to monthly", date(2026, 1, 15), payment.Frequency("FORTNIGHTLY"), date(2026, 2, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, payment.CalculateNextPaymentDate(tt.from, tt.frequency))
		})
	}
}

func TestCalculateNextPaymentDate_TwoStepsEqualTwoUnits(t *testing.T) {
	origin := date(2026, 1, 15)

	tests := []struct {
		frequency payment.Frequency
		expected  time.Time
	}{
		{payment.FrequencyDaily, origin.AddDate(0, 0, 2)},
		{payment.FrequencyWeekly, origin.AddDate(0, 0, 14)},
		{payment.FrequencyMonthly, date(2026, 3, 15)},
		{payment.FrequencyYearly, origin.AddDate(2, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.frequency.String(), func(t *testing.T) {
			once := payment.CalculateNextPaymentDate(origin, tt.frequency)
			twice := payment.CalculateNextPaymentDate(once, tt.frequency)
			assert.Equal(t, tt.expected, twice)
		})
	}

	t.Run("month end overflow compounds", func(t *testing.T) {
		once := payment.CalculateNextPaymentDate(date(2026, 1, 31), payment.FrequencyMonthly)
		twice := payment.CalculateNextPaymentDate(once, payment.FrequencyMonthly)
		assert.Equal(t, date(2026, 4, 3), twice)
	})
}

func TestCalculateInstallmentDueDate(t *testing.T) {
	tests := []struct {
		name     string
		current  time.Time
		dueDay   *int
		expected time.Time
	}{
		{"no due day advances one month", date(2026, 1, 10), nil, date(2026, 2, 10)},
		{"due day later this month", date(2026, 1, 10), intPtr(20), date(2026, 1, 20)},
		{"due day earlier rolls to next month", date(2026, 1, 20), intPtr(5), date(2026, 2, 5)},
		{"same day is not strictly after", date(2026, 1, 15), intPtr(15), date(2026, 2, 15)},
		{"day 31 in a 30 day month overflows", date(2026, 4, 10), intPtr(31), date(2026, 5, 1)},
		{"day 31 rolled from Jan 31", date(2026, 1, 31), intPtr(31), date(2026, 3, 31)},
		{"december rolls into next year", date(2026, 12, 20), intPtr(1), date(2027, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, payment.CalculateInstallmentDueDate(tt.current, tt.dueDay))
		})
	}
}

func TestDaysOverdue(t *testing.T) {
	due := date(2026, 3, 1)

	assert.Equal(t, 0, payment.DaysOverdue(due, due))
	assert.Equal(t, 1, payment.DaysOverdue(due, due.Add(time.Hour)))
	assert.Equal(t, 3, payment.DaysOverdue(due, due.Add(48*time.Hour+time.Minute)))
	assert.Equal(t, 2, payment.DaysOverdue(due, due.Add(48*time.Hour)))
}
