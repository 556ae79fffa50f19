package payment

import (
	"math"
	"time"
)

// CalculateNextPaymentDate advances from by one frequency unit.
// Month and year steps use normalized calendar arithmetic, so Jan 31 plus one
// month lands on Mar 3 (Mar 2 in leap years). Unknown frequencies advance one month.
func CalculateNextPaymentDate(from time.Time, freq Frequency) time.Time {
	switch freq {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// CalculateInstallmentDueDate returns the next due date after current.
// With a due day the day-of-month is pinned; if that is not strictly after
// current the month rolls forward and the day is reapplied. Without one the
// date advances a single calendar month.
func CalculateInstallmentDueDate(current time.Time, dueDayOfMonth *int) time.Time {
	if dueDayOfMonth == nil || *dueDayOfMonth <= 0 {
		return current.AddDate(0, 1, 0)
	}
	day := *dueDayOfMonth

	next := withDay(current, current.Year(), current.Month(), day)
	if !next.After(current) {
		rolled := next.AddDate(0, 1, 0)
		next = withDay(current, rolled.Year(), rolled.Month(), day)
	}
	return next
}

// withDay keeps the clock and location of ref. time.Date normalizes day overflow.
func withDay(ref time.Time, year int, month time.Month, day int) time.Time {
	h, m, s := ref.Clock()
	return time.Date(year, month, day, h, m, s, ref.Nanosecond(), ref.Location())
}

// DaysOverdue is the number of started days between due and now, rounded up
func DaysOverdue(due, now time.Time) int {
	return int(math.Ceil(now.Sub(due).Hours() / 24))
}
