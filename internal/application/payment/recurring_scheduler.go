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

// RecurringScheduler charges due recurring payments and manages schedules
type RecurringScheduler struct {
	schedules payment.RecurringPaymentRepository
	payments  payment.PaymentRepository
	members   payment.MemberRepository
	failures  *FailureHandler
	audit     AuditLogger
	runner    *batchRunner
	logger    *zap.Logger
	clock     func() time.Time
}

// RecurringSchedulerConfig holds the dependencies of a RecurringScheduler
type RecurringSchedulerConfig struct {
	Schedules payment.RecurringPaymentRepository
	Payments  payment.PaymentRepository
	Members   payment.MemberRepository
	Failures  *FailureHandler
	Audit     AuditLogger
	Batch     BatchConfig
	Metrics   BatchRecorder
	Logger    *zap.Logger
	Clock     func() time.Time
}

// NewRecurringScheduler creates a new RecurringScheduler
func NewRecurringScheduler(config RecurringSchedulerConfig) *RecurringScheduler {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &RecurringScheduler{
		schedules: config.Schedules,
		payments:  config.Payments,
		members:   config.Members,
		failures:  config.Failures,
		audit:     config.Audit,
		runner:    newBatchRunner(config.Batch, config.Metrics, logger),
		logger:    logger,
		clock:     clock,
	}
}

// ProcessRecurringPayments charges every schedule due at now. A failing record
// never stops the batch; only the due query itself fails the run.
func (s *RecurringScheduler) ProcessRecurringPayments(ctx context.Context, now time.Time) (*BatchResult, error) {
	return s.runner.run(ctx, JobRecurring, func(ctx context.Context, result *BatchResult) error {
		due, err := s.schedules.FindDue(ctx, now)
		if err != nil {
			return fmt.Errorf("find due recurring payments: %w", err)
		}
		result.Due = len(due)

		for i := range due {
			if err := checkAborted(ctx, i, len(due)); err != nil {
				return err
			}
			outcome := s.processOne(ctx, &due[i], now)
			result.count(outcome)
			s.runner.metrics.RecordCharge(ctx, JobRecurring, outcome)
		}
		return nil
	})
}

func (s *RecurringScheduler) processOne(ctx context.Context, rp *payment.RecurringPayment, now time.Time) string {
	ctx, cancel := s.runner.recordContext(ctx)
	defer cancel()

	log := s.logger.With(zap.String("recurring_payment_id", rp.ID.String()))

	claimed, err := s.schedules.ClaimDue(ctx, rp)
	if err != nil {
		log.Warn("Failed to claim recurring payment", zap.Error(err))
		return outcomeSkipped
	}
	if !claimed {
		log.Debug("Recurring payment already claimed by another run")
		return outcomeSkipped
	}

	p, err := s.charge(ctx, rp)

	settleCtx, settleCancel := s.runner.settleContext(ctx)
	defer settleCancel()

	if err != nil {
		if herr := s.failures.HandleRecurringFailure(settleCtx, rp, err.Error(), now); herr != nil {
			log.Error("Failed to record recurring payment failure", zap.Error(herr))
		}
		return outcomeFailed
	}

	rp.RecordSuccess(now)
	if err := s.schedules.SaveWithLock(settleCtx, rp); err != nil {
		log.Error("Charged recurring payment but failed to advance schedule",
			zap.String("payment_id", p.ID.String()),
			zap.Error(err))
		return outcomeFailed
	}
	if s.audit != nil {
		s.audit.LogPaymentCreation(settleCtx, p, audit.SystemActor)
	}

	log.Info("Recurring payment charged",
		zap.String("payment_id", p.ID.String()),
		zap.Time("next_payment_date", rp.NextPaymentDate))
	return outcomeProcessed
}

func (s *RecurringScheduler) charge(ctx context.Context, rp *payment.RecurringPayment) (*payment.Payment, error) {
	description := rp.Description
	if description == "" {
		description = fmt.Sprintf("Recurring %s payment", rp.Frequency)
	}
	p, err := payment.NewPayment(payment.NewPaymentParams{
		MemberID:    rp.MemberID,
		Amount:      rp.Amount,
		Method:      payment.MethodRecurring,
		Status:      payment.StatusPending,
		Description: description,
		Reference:   rp.PaymentReference(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateRecurringPayment sets up a schedule for an existing member
func (s *RecurringScheduler) CreateRecurringPayment(ctx context.Context, req CreateRecurringPaymentRequest, actor audit.Actor) (*RecurringPaymentResponse, error) {
	if err := s.requireMember(ctx, req.MemberID); err != nil {
		return nil, err
	}
	rp, err := payment.NewRecurringPayment(payment.NewRecurringPaymentParams{
		MemberID:       req.MemberID,
		Amount:         req.Amount,
		Frequency:      payment.Frequency(req.Frequency),
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		MaxAttempts:    req.MaxAttempts,
		RetryDelayDays: req.RetryDelayDays,
		AutoRetry:      req.AutoRetry,
		Description:    req.Description,
	})
	if err != nil {
		return nil, err
	}
	if err := s.schedules.Create(ctx, rp); err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogRecurringPaymentCreation(ctx, rp, actor)
	}

	response := ToRecurringPaymentResponse(rp)
	return &response, nil
}

func (s *RecurringScheduler) requireMember(ctx context.Context, memberID uuid.UUID) error {
	exists, err := s.members.ExistsByID(ctx, memberID)
	if err != nil {
		return err
	}
	if !exists {
		return shared.NewNotFoundError("member")
	}
	return nil
}

// PauseRecurringPayment stops batch runs from charging the schedule
func (s *RecurringScheduler) PauseRecurringPayment(ctx context.Context, id uuid.UUID) (*RecurringPaymentResponse, error) {
	return s.transition(ctx, id, func(rp *payment.RecurringPayment) {
		rp.Pause()
	})
}

// ResumeRecurringPayment reactivates the schedule with its next charge one
// frequency unit from now
func (s *RecurringScheduler) ResumeRecurringPayment(ctx context.Context, id uuid.UUID) (*RecurringPaymentResponse, error) {
	now := s.clock()
	return s.transition(ctx, id, func(rp *payment.RecurringPayment) {
		rp.Resume(now)
	})
}

// CancelRecurringPayment ends the schedule
func (s *RecurringScheduler) CancelRecurringPayment(ctx context.Context, id uuid.UUID) (*RecurringPaymentResponse, error) {
	return s.transition(ctx, id, func(rp *payment.RecurringPayment) {
		rp.Cancel()
	})
}

func (s *RecurringScheduler) transition(ctx context.Context, id uuid.UUID, apply func(rp *payment.RecurringPayment)) (*RecurringPaymentResponse, error) {
	rp, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := rp.Status
	apply(rp)
	if err := s.schedules.SaveWithLock(ctx, rp); err != nil {
		return nil, err
	}

	s.logger.Info("Recurring payment status changed",
		zap.String("recurring_payment_id", rp.ID.String()),
		zap.String("from", oldStatus.String()),
		zap.String("to", rp.Status.String()))

	response := ToRecurringPaymentResponse(rp)
	return &response, nil
}

// GetRecurringPayment retrieves a schedule by ID
func (s *RecurringScheduler) GetRecurringPayment(ctx context.Context, id uuid.UUID) (*RecurringPaymentResponse, error) {
	rp, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToRecurringPaymentResponse(rp)
	return &response, nil
}

// ListRecurringPayments retrieves schedules with filtering and pagination
func (s *RecurringScheduler) ListRecurringPayments(ctx context.Context, filter RecurringPaymentListFilter) (*shared.Paginated[RecurringPaymentResponse], error) {
	df := payment.RecurringPaymentFilter{
		Filter:   shared.Filter{Page: filter.Page, PageSize: filter.PageSize}.Normalize(),
		MemberID: filter.MemberID,
	}
	if filter.Status != "" {
		status := payment.RecurringStatus(filter.Status)
		df.Status = &status
	}

	schedules, total, err := s.schedules.FindAll(ctx, df)
	if err != nil {
		return nil, err
	}
	items := make([]RecurringPaymentResponse, len(schedules))
	for i := range schedules {
		items[i] = ToRecurringPaymentResponse(&schedules[i])
	}
	page := shared.NewPaginated(items, total, df.Page, df.PageSize)
	return &page, nil
}
