package payment

import (
	"context"
	"fmt"
	"time"

	appaudit "github.com/gym/backend/internal/application/audit"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/payment"
	"go.uber.org/zap"
)

// DefaultNotificationTimeout bounds a single notifier call
const DefaultNotificationTimeout = 10 * time.Second

// FailureHandler applies the failure policy to schedules and plans whose
// charge did not go through, then tells the member about it.
type FailureHandler struct {
	schedules     payment.RecurringPaymentRepository
	plans         payment.InstallmentPlanRepository
	notifier      payment.Notifier
	audit         AuditLogger
	notifyTimeout time.Duration
	logger        *zap.Logger
}

// FailureHandlerConfig holds the dependencies of a FailureHandler
type FailureHandlerConfig struct {
	Schedules     payment.RecurringPaymentRepository
	Plans         payment.InstallmentPlanRepository
	Notifier      payment.Notifier
	Audit         AuditLogger
	NotifyTimeout time.Duration
	Logger        *zap.Logger
}

// NewFailureHandler creates a new FailureHandler
func NewFailureHandler(config FailureHandlerConfig) *FailureHandler {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotificationTimeout
	}
	return &FailureHandler{
		schedules:     config.Schedules,
		plans:         config.Plans,
		notifier:      config.Notifier,
		audit:         config.Audit,
		notifyTimeout: timeout,
		logger:        logger,
	}
}

// HandleRecurringFailure counts the failed attempt and persists the outcome.
// The member is notified only when the retry budget is exhausted.
func (h *FailureHandler) HandleRecurringFailure(ctx context.Context, rp *payment.RecurringPayment, errMsg string, now time.Time) error {
	terminal := rp.RecordFailure(errMsg, now)
	if err := h.schedules.SaveWithLock(ctx, rp); err != nil {
		return fmt.Errorf("persist recurring payment failure: %w", err)
	}

	if h.audit != nil {
		h.audit.LogFailedPaymentAttempt(ctx, appaudit.FailedAttempt{
			MemberID:      rp.MemberID,
			Amount:        rp.Amount,
			ErrorMessage:  errMsg,
			Source:        string(payment.MethodRecurring),
			ScheduleID:    rp.ID,
			AttemptNumber: rp.AttemptCount,
			Terminal:      terminal,
		}, audit.SystemActor)
	}

	if terminal {
		h.logger.Warn("Recurring payment failed permanently",
			zap.String("recurring_payment_id", rp.ID.String()),
			zap.Int("attempts", rp.AttemptCount),
			zap.String("error", errMsg))
		h.notify(ctx, "failed_payment", func(ctx context.Context) error {
			return h.notifier.SendFailedPaymentNotification(ctx, payment.NewScheduleNotification(rp), errMsg)
		})
		return nil
	}

	h.logger.Info("Recurring payment attempt failed, retry scheduled",
		zap.String("recurring_payment_id", rp.ID.String()),
		zap.Int("attempt", rp.AttemptCount),
		zap.Int("max_attempts", rp.MaxAttempts),
		zap.Time("next_attempt", rp.NextPaymentDate))
	return nil
}

// HandleInstallmentFailure marks the plan OVERDUE and sends the member a
// reminder carrying the days past due
func (h *FailureHandler) HandleInstallmentFailure(ctx context.Context, ip *payment.InstallmentPlan, errMsg string, now time.Time) error {
	daysOverdue := ip.RecordFailure(errMsg, now)
	if err := h.plans.SaveWithLock(ctx, ip); err != nil {
		return fmt.Errorf("persist installment failure: %w", err)
	}

	if h.audit != nil {
		h.audit.LogFailedPaymentAttempt(ctx, appaudit.FailedAttempt{
			MemberID:      ip.MemberID,
			Amount:        ip.InstallmentAmount,
			ErrorMessage:  errMsg,
			Source:        string(payment.MethodInstallment),
			ScheduleID:    ip.ID,
			AttemptNumber: ip.CurrentInstallment,
			Terminal:      true,
		}, audit.SystemActor)
	}

	h.logger.Warn("Installment charge failed, plan is overdue",
		zap.String("installment_plan_id", ip.ID.String()),
		zap.Int("installment", ip.CurrentInstallment),
		zap.Int("days_overdue", daysOverdue),
		zap.String("error", errMsg))

	h.notify(ctx, "payment_reminder", func(ctx context.Context) error {
		return h.notifier.SendPaymentReminder(ctx, payment.NewInstallmentNotification(ip, daysOverdue))
	})
	return nil
}

// notify runs send under its own timeout. Notifier failures never reach the caller.
func (h *FailureHandler) notify(ctx context.Context, kind string, send func(ctx context.Context) error) {
	if h.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.notifyTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Notifier panicked", zap.String("notification", kind), zap.Any("panic", r))
		}
	}()
	if err := send(ctx); err != nil {
		h.logger.Warn("Failed to send notification",
			zap.String("notification", kind),
			zap.Error(err))
	}
}
