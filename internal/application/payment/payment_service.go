package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// PaymentService handles ledger operations and mirrors every mutation
// into the audit trail
type PaymentService struct {
	payments      payment.PaymentRepository
	members       payment.MemberRepository
	audit         AuditLogger
	notifier      payment.Notifier
	invoices      InvoiceRenderer
	notifyTimeout time.Duration
	logger        *zap.Logger
	clock         func() time.Time
}

// PaymentServiceConfig holds the dependencies of a PaymentService
type PaymentServiceConfig struct {
	Payments      payment.PaymentRepository
	Members       payment.MemberRepository
	Audit         AuditLogger
	Notifier      payment.Notifier
	Invoices      InvoiceRenderer
	NotifyTimeout time.Duration
	Logger        *zap.Logger
	Clock         func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(config PaymentServiceConfig) *PaymentService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := config.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotificationTimeout
	}
	return &PaymentService{
		payments:      config.Payments,
		members:       config.Members,
		audit:         config.Audit,
		notifier:      config.Notifier,
		invoices:      config.Invoices,
		notifyTimeout: timeout,
		logger:        logger,
		clock:         clock,
	}
}

// CreatePayment validates and records a payment for an existing member
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest, actor audit.Actor) (*PaymentResponse, error) {
	p, err := payment.NewPayment(req.params())
	if err != nil {
		return nil, err
	}

	member, err := s.members.FindByID(ctx, p.MemberID)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && member == nil) {
		return nil, shared.NewNotFoundError("member")
	}
	if err != nil {
		return nil, err
	}
	p.Member = member

	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}

	s.auditLog().LogPaymentCreation(ctx, p, actor)
	if p.Status == payment.StatusCompleted {
		s.auditLog().LogSuccessfulPayment(ctx, p, actor)
		s.notify(ctx, "payment_receipt", func(ctx context.Context) error {
			return s.notifier.SendPaymentReceipt(ctx, payment.NewPaymentNotification(p))
		})
	} else {
		s.notify(ctx, "payment_confirmation", func(ctx context.Context) error {
			return s.notifier.SendPaymentConfirmation(ctx, payment.NewPaymentNotification(p))
		})
	}

	response := ToPaymentResponse(p)
	return &response, nil
}

// UpdatePayment applies a partial update. Invalid fields reject the whole update.
func (s *PaymentService) UpdatePayment(ctx context.Context, id uuid.UUID, req UpdatePaymentRequest, actor audit.Actor) (*PaymentResponse, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldStatus := p.Status
	changes, err := p.Apply(req.update())
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		response := ToPaymentResponse(p)
		return &response, nil
	}

	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}

	s.auditLog().LogPaymentUpdate(ctx, p, changes, actor)
	if p.Status != oldStatus {
		s.recordStatusChange(ctx, p, oldStatus, req.Reason, actor)
	}

	response := ToPaymentResponse(p)
	return &response, nil
}

func (s *PaymentService) recordStatusChange(ctx context.Context, p *payment.Payment, oldStatus payment.Status, reason string, actor audit.Actor) {
	s.auditLog().LogPaymentStatusChange(ctx, p, oldStatus, p.Status, reason, actor)

	switch p.Status {
	case payment.StatusCompleted:
		s.auditLog().LogSuccessfulPayment(ctx, p, actor)
		s.notify(ctx, "payment_receipt", func(ctx context.Context) error {
			return s.notifier.SendPaymentReceipt(ctx, payment.NewPaymentNotification(p))
		})
	case payment.StatusRefunded:
		s.auditLog().LogRefund(ctx, p, p.Amount, reason, actor)
	}
}

// DeletePayment removes a payment from the ledger. Completed payments are kept.
func (s *PaymentService) DeletePayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) error {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := p.CanDelete(); err != nil {
		return err
	}
	if err := s.payments.Delete(ctx, id); err != nil {
		return err
	}
	s.auditLog().LogPaymentDeletion(ctx, p, reason, actor)
	return nil
}

// GetPayment retrieves a payment and records the read in the audit trail
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID, actor audit.Actor) (*PaymentResponse, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	memberID := p.MemberID
	s.auditLog().LogPaymentAccess(ctx, p.ID, &memberID, "view", actor)

	response := ToPaymentResponse(p)
	return &response, nil
}

// ListPayments retrieves payments with filtering and pagination
func (s *PaymentService) ListPayments(ctx context.Context, filter PaymentListFilter) (*shared.Paginated[PaymentResponse], error) {
	df := filter.domain()
	payments, total, err := s.payments.FindAll(ctx, df)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToPaymentResponses(payments), total, df.Page, df.PageSize)
	return &page, nil
}

// GetMemberPayments retrieves every payment of a member, newest first
func (s *PaymentService) GetMemberPayments(ctx context.Context, memberID uuid.UUID) ([]PaymentResponse, error) {
	exists, err := s.members.ExistsByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.NewNotFoundError("member")
	}
	payments, err := s.payments.FindByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return ToPaymentResponses(payments), nil
}

// RefundPayment returns a completed payment to the member
func (s *PaymentService) RefundPayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) (*PaymentResponse, error) {
	return s.changeStatus(ctx, id, reason, actor, (*payment.Payment).Refund)
}

// CancelPayment voids a pending or failed payment
func (s *PaymentService) CancelPayment(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor) (*PaymentResponse, error) {
	return s.changeStatus(ctx, id, reason, actor, (*payment.Payment).Cancel)
}

func (s *PaymentService) changeStatus(ctx context.Context, id uuid.UUID, reason string, actor audit.Actor, apply func(*payment.Payment) error) (*PaymentResponse, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := p.Status
	if err := apply(p); err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}

	s.auditLog().LogPaymentUpdate(ctx, p, []payment.FieldChange{{
		Field: "status",
		Old:   oldStatus.String(),
		New:   p.Status.String(),
	}}, actor)
	s.recordStatusChange(ctx, p, oldStatus, reason, actor)

	response := ToPaymentResponse(p)
	return &response, nil
}

func (s *PaymentService) auditLog() AuditLogger {
	if s.audit == nil {
		return nopAudit{}
	}
	return s.audit
}

// notify sends a member message under its own timeout and only logs failures
func (s *PaymentService) notify(ctx context.Context, kind string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := send(ctx); err != nil {
		s.logger.Warn("Failed to send notification",
			zap.String("notification", kind),
			zap.Error(err))
	}
}
