package telemetry

import (
	"context"
	"fmt"
	"time"

	apppayment "github.com/gym/backend/internal/application/payment"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the billing metrics
const MeterName = "github.com/gym/backend/billing"

var (
	AttrJob     = attribute.Key("job")
	AttrOutcome = attribute.Key("outcome")
)

// BillingMetrics records recurring and installment batch activity:
//   - gym.billing.charges: one count per visited record, by job and outcome
//   - gym.billing.batch.runs: completed batch runs, by job
//   - gym.billing.batch.due: records found due in the last run, by job
//   - gym.billing.batch.duration: wall time of a run in seconds, by job
type BillingMetrics struct {
	charges       metric.Int64Counter
	runs          metric.Int64Counter
	due           metric.Int64Gauge
	batchDuration metric.Float64Histogram
}

var _ apppayment.BatchRecorder = (*BillingMetrics)(nil)

// NewBillingMetrics registers the billing instruments on meter
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	charges, err := meter.Int64Counter("gym.billing.charges",
		metric.WithDescription("Recurring and installment charge attempts by outcome"),
		metric.WithUnit("{charge}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create charges counter: %w", err)
	}

	runs, err := meter.Int64Counter("gym.billing.batch.runs",
		metric.WithDescription("Completed billing batch runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch runs counter: %w", err)
	}

	due, err := meter.Int64Gauge("gym.billing.batch.due",
		metric.WithDescription("Records due in the last billing batch run"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch due gauge: %w", err)
	}

	batchDuration, err := meter.Float64Histogram("gym.billing.batch.duration",
		metric.WithDescription("Billing batch run duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(BatchDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch duration histogram: %w", err)
	}

	return &BillingMetrics{
		charges:       charges,
		runs:          runs,
		due:           due,
		batchDuration: batchDuration,
	}, nil
}

// RecordCharge counts one visited record
func (m *BillingMetrics) RecordCharge(ctx context.Context, job, outcome string) {
	m.charges.Add(ctx, 1, metric.WithAttributes(AttrJob.String(job), AttrOutcome.String(outcome)))
}

// RecordBatch records a finished run. Per-record outcomes go through RecordCharge.
func (m *BillingMetrics) RecordBatch(ctx context.Context, job string, due int, duration time.Duration) {
	attrs := metric.WithAttributes(AttrJob.String(job))
	m.runs.Add(ctx, 1, attrs)
	m.due.Record(ctx, int64(due), attrs)
	m.batchDuration.Record(ctx, duration.Seconds(), attrs)
}
