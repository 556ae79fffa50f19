package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InstallmentTracker charges due installments and manages installment plans
type InstallmentTracker struct {
	plans    payment.InstallmentPlanRepository
	payments payment.PaymentRepository
	members  payment.MemberRepository
	failures *FailureHandler
	audit    AuditLogger
	runner   *batchRunner
	logger   *zap.Logger
	clock    func() time.Time
}

// InstallmentTrackerConfig holds the dependencies of an InstallmentTracker
type InstallmentTrackerConfig struct {
	Plans    payment.InstallmentPlanRepository
	Payments payment.PaymentRepository
	Members  payment.MemberRepository
	Failures *FailureHandler
	Audit    AuditLogger
	Batch    BatchConfig
	Metrics  BatchRecorder
	Logger   *zap.Logger
	Clock    func() time.Time
}

// NewInstallmentTracker creates a new InstallmentTracker
func NewInstallmentTracker(config InstallmentTrackerConfig) *InstallmentTracker {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &InstallmentTracker{
		plans:    config.Plans,
		payments: config.Payments,
		members:  config.Members,
		failures: config.Failures,
		audit:    config.Audit,
		runner:   newBatchRunner(config.Batch, config.Metrics, logger),
		logger:   logger,
		clock:    clock,
	}
}

// ProcessInstallmentPayments charges the current installment of every plan
// due at now
func (t *InstallmentTracker) ProcessInstallmentPayments(ctx context.Context, now time.Time) (*BatchResult, error) {
	return t.runner.run(ctx, JobInstallments, func(ctx context.Context, result *BatchResult) error {
		due, err := t.plans.FindDue(ctx, now)
		if err != nil {
			return fmt.Errorf("find due installment plans: %w", err)
		}
		result.Due = len(due)

		for i := range due {
			if err := checkAborted(ctx, i, len(due)); err != nil {
				return err
			}
			outcome := t.processOne(ctx, &due[i], now)
			result.count(outcome)
			t.runner.metrics.RecordCharge(ctx, JobInstallments, outcome)
		}
		return nil
	})
}

func (t *InstallmentTracker) processOne(ctx context.Context, ip *payment.InstallmentPlan, now time.Time) string {
	ctx, cancel := t.runner.recordContext(ctx)
	defer cancel()

	log := t.logger.With(
		zap.String("installment_plan_id", ip.ID.String()),
		zap.Int("installment", ip.CurrentInstallment))

	claimed, err := t.plans.ClaimDue(ctx, ip)
	if err != nil {
		log.Warn("Failed to claim installment plan", zap.Error(err))
		return outcomeSkipped
	}
	if !claimed {
		log.Debug("Installment plan already claimed by another run")
		return outcomeSkipped
	}

	p, err := t.charge(ctx, ip)

	settleCtx, settleCancel := t.runner.settleContext(ctx)
	defer settleCancel()

	if err != nil {
		if herr := t.failures.HandleInstallmentFailure(settleCtx, ip, err.Error(), now); herr != nil {
			log.Error("Failed to record installment failure", zap.Error(herr))
		}
		return outcomeFailed
	}

	ip.RecordSuccess(now)
	if err := t.plans.SaveWithLock(settleCtx, ip); err != nil {
		log.Error("Charged installment but failed to advance plan",
			zap.String("payment_id", p.ID.String()),
			zap.Error(err))
		return outcomeFailed
	}
	if t.audit != nil {
		t.audit.LogPaymentCreation(settleCtx, p, audit.SystemActor)
	}

	if ip.Status == payment.InstallmentStatusCompleted {
		log.Info("Installment plan completed", zap.String("payment_id", p.ID.String()))
	} else {
		log.Info("Installment charged",
			zap.String("payment_id", p.ID.String()),
			zap.Timep("next_due_date", ip.NextDueDate))
	}
	return outcomeProcessed
}

func (t *InstallmentTracker) charge(ctx context.Context, ip *payment.InstallmentPlan) (*payment.Payment, error) {
	p, err := payment.NewPayment(payment.NewPaymentParams{
		MemberID:    ip.MemberID,
		Amount:      ip.InstallmentAmount,
		Method:      payment.MethodInstallment,
		Status:      payment.StatusPending,
		Description: ip.PaymentDescription(),
		Reference:   ip.PaymentReference(),
	})
	if err != nil {
		return nil, err
	}
	if err := t.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateInstallmentPlan sets up a plan for an existing member
func (t *InstallmentTracker) CreateInstallmentPlan(ctx context.Context, req CreateInstallmentPlanRequest, actor audit.Actor) (*InstallmentPlanResponse, error) {
	exists, err := t.members.ExistsByID(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.NewNotFoundError("member")
	}

	params := payment.NewInstallmentPlanParams{
		MemberID:             req.MemberID,
		TotalAmount:          req.TotalAmount,
		NumberOfInstallments: req.NumberOfInstallments,
		StartDate:            req.StartDate,
		DueDayOfMonth:        req.DueDayOfMonth,
		Description:          req.Description,
	}
	if req.InstallmentAmount != nil {
		params.InstallmentAmount = *req.InstallmentAmount
	}
	ip, err := payment.NewInstallmentPlan(params)
	if err != nil {
		return nil, err
	}
	if err := t.plans.Create(ctx, ip); err != nil {
		return nil, err
	}
	if t.audit != nil {
		t.audit.LogInstallmentPlanCreation(ctx, ip, actor)
	}

	response := ToInstallmentPlanResponse(ip)
	return &response, nil
}

// ResumeInstallmentPlan reactivates an overdue plan. The current installment
// is rescheduled from now.
func (t *InstallmentTracker) ResumeInstallmentPlan(ctx context.Context, id uuid.UUID) (*InstallmentPlanResponse, error) {
	now := t.clock()
	return t.transition(ctx, id, func(ip *payment.InstallmentPlan) error {
		return ip.Resume(now)
	})
}

// CancelInstallmentPlan ends a plan that has not completed
func (t *InstallmentTracker) CancelInstallmentPlan(ctx context.Context, id uuid.UUID) (*InstallmentPlanResponse, error) {
	return t.transition(ctx, id, func(ip *payment.InstallmentPlan) error {
		return ip.Cancel()
	})
}

func (t *InstallmentTracker) transition(ctx context.Context, id uuid.UUID, apply func(ip *payment.InstallmentPlan) error) (*InstallmentPlanResponse, error) {
	ip, err := t.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := ip.Status
	if err := apply(ip); err != nil {
		return nil, err
	}
	if err := t.plans.SaveWithLock(ctx, ip); err != nil {
		return nil, err
	}

	t.logger.Info("Installment plan status changed",
		zap.String("installment_plan_id", ip.ID.String()),
		zap.String("from", oldStatus.String()),
		zap.String("to", ip.Status.String()))

	response := ToInstallmentPlanResponse(ip)
	return &response, nil
}

// GetInstallmentPlan retrieves a plan by ID
func (t *InstallmentTracker) GetInstallmentPlan(ctx context.Context, id uuid.UUID) (*InstallmentPlanResponse, error) {
	ip, err := t.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToInstallmentPlanResponse(ip)
	return &response, nil
}

// ListInstallmentPlans retrieves plans with filtering and pagination
func (t *InstallmentTracker) ListInstallmentPlans(ctx context.Context, filter InstallmentPlanListFilter) (*shared.Paginated[InstallmentPlanResponse], error) {
	df := payment.InstallmentPlanFilter{
		Filter:   shared.Filter{Page: filter.Page, PageSize: filter.PageSize}.Normalize(),
		MemberID: filter.MemberID,
	}
	if filter.Status != "" {
		status := payment.InstallmentStatus(filter.Status)
		df.Status = &status
	}

	plans, total, err := t.plans.FindAll(ctx, df)
	if err != nil {
		return nil, err
	}
	items := make([]InstallmentPlanResponse, len(plans))
	for i := range plans {
		items[i] = ToInstallmentPlanResponse(&plans[i])
	}
	page := shared.NewPaginated(items, total, df.Page, df.PageSize)
	return &page, nil
}
