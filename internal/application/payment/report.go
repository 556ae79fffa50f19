package payment

import (
	"context"
	"time"

	"github.com/gym/backend/internal/domain/payment"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MonthlyRevenue is completed revenue for one calendar month
type MonthlyRevenue struct {
	Month   int             `json:"month"`
	Name    string          `json:"name"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

// MethodRevenue is completed revenue for one payment method
type MethodRevenue struct {
	Method  string          `json:"method"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int64           `json:"count"`
}

// ReportResponse aggregates the ledger for dashboards
type ReportResponse struct {
	Year           int              `json:"year"`
	TotalRevenue   decimal.Decimal  `json:"totalRevenue"`
	CountsByStatus map[string]int64 `json:"countsByStatus"`
	MonthlyRevenue []MonthlyRevenue `json:"monthlyRevenue"`
	ByMethod       []MethodRevenue  `json:"byMethod"`
	GeneratedAt    time.Time        `json:"generatedAt"`
}

// GetReport aggregates completed revenue overall, per month of year and per
// method, plus payment counts per status. A zero year means the current year.
func (s *PaymentService) GetReport(ctx context.Context, year int) (*ReportResponse, error) {
	now := s.clock()
	if year <= 0 {
		year = now.Year()
	}

	byStatus, err := s.payments.AggregateByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byMethod, err := s.payments.AggregateByMethod(ctx, payment.StatusCompleted)
	if err != nil {
		return nil, err
	}

	loc := now.Location()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	completed, err := s.payments.FindByStatusBetween(ctx, payment.StatusCompleted, start, start.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}

	report := &ReportResponse{
		Year:           year,
		TotalRevenue:   decimal.Zero,
		CountsByStatus: make(map[string]int64, len(payment.AllStatuses)),
		GeneratedAt:    now,
	}

	for _, status := range payment.AllStatuses {
		report.CountsByStatus[status.String()] = 0
	}
	for _, agg := range byStatus {
		report.CountsByStatus[agg.Status.String()] = agg.Count
		if agg.Status == payment.StatusCompleted {
			report.TotalRevenue = agg.Total
		}
	}

	months := lo.GroupBy(completed, func(p payment.Payment) time.Month {
		return p.PaymentDate.In(loc).Month()
	})
	report.MonthlyRevenue = lo.Map(lo.RangeFrom(1, 12), func(m int, _ int) MonthlyRevenue {
		inMonth := months[time.Month(m)]
		return MonthlyRevenue{
			Month: m,
			Name:  time.Month(m).String(),
			Revenue: lo.Reduce(inMonth, func(sum decimal.Decimal, p payment.Payment, _ int) decimal.Decimal {
				return sum.Add(p.Amount)
			}, decimal.Zero),
			Count: len(inMonth),
		}
	})

	report.ByMethod = lo.Map(byMethod, func(agg payment.MethodAggregate, _ int) MethodRevenue {
		return MethodRevenue{Method: agg.Method.String(), Revenue: agg.Total, Count: agg.Count}
	})

	return report, nil
}
