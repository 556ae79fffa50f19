package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/gym/backend/internal/application/audit"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

var (
	// ErrBatchAborted is returned when a batch run stops before every due record was visited
	ErrBatchAborted = errors.New("billing: batch run aborted")
	// ErrInvoiceRendererUnavailable is returned when PDF rendering is not configured
	ErrInvoiceRendererUnavailable = errors.New("billing: invoice renderer is not configured")
)

// AuditLogger is the audit trail the payment flows write into.
// Implementations must not fail the calling operation.
type AuditLogger interface {
	LogPaymentCreation(ctx context.Context, p *payment.Payment, actor audit.Actor)
	LogPaymentUpdate(ctx context.Context, p *payment.Payment, changes []payment.FieldChange, actor audit.Actor)
	LogPaymentDeletion(ctx context.Context, p *payment.Payment, reason string, actor audit.Actor)
	LogPaymentStatusChange(ctx context.Context, p *payment.Payment, oldStatus, newStatus payment.Status, reason string, actor audit.Actor)
	LogPaymentAccess(ctx context.Context, paymentID uuid.UUID, memberID *uuid.UUID, accessType string, actor audit.Actor)
	LogFailedPaymentAttempt(ctx context.Context, f appaudit.FailedAttempt, actor audit.Actor)
	LogSuccessfulPayment(ctx context.Context, p *payment.Payment, actor audit.Actor)
	LogRefund(ctx context.Context, p *payment.Payment, amount decimal.Decimal, reason string, actor audit.Actor)
	LogRecurringPaymentCreation(ctx context.Context, rp *payment.RecurringPayment, actor audit.Actor)
	LogInstallmentPlanCreation(ctx context.Context, ip *payment.InstallmentPlan, actor audit.Actor)
}

var _ AuditLogger = (*appaudit.Service)(nil)

type nopAudit struct{}

func (nopAudit) LogPaymentCreation(context.Context, *payment.Payment, audit.Actor) {}

func (nopAudit) LogPaymentUpdate(context.Context, *payment.Payment, []payment.FieldChange, audit.Actor) {}

func (nopAudit) LogPaymentDeletion(context.Context, *payment.Payment, string, audit.Actor) {}

func (nopAudit) LogPaymentStatusChange(context.Context, *payment.Payment, payment.Status, payment.Status, string, audit.Actor) {}

func (nopAudit) LogPaymentAccess(context.Context, uuid.UUID, *uuid.UUID, string, audit.Actor) {}

func (nopAudit) LogFailedPaymentAttempt(context.Context, appaudit.FailedAttempt, audit.Actor) {}

func (nopAudit) LogSuccessfulPayment(context.Context, *payment.Payment, audit.Actor) {}

func (nopAudit) LogRefund(context.Context, *payment.Payment, decimal.Decimal, string, audit.Actor) {}

func (nopAudit) LogRecurringPaymentCreation(context.Context, *payment.RecurringPayment, audit.Actor) {}

func (nopAudit) LogInstallmentPlanCreation(context.Context, *payment.InstallmentPlan, audit.Actor) {}

// BatchRecorder receives billing measurements
type BatchRecorder interface {
	RecordCharge(ctx context.Context, job, outcome string)
	RecordBatch(ctx context.Context, job string, due int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordCharge(context.Context, string, string)         {}
func (nopRecorder) RecordBatch(context.Context, string, int, time.Duration) {}

// InvoiceRenderer turns an invoice into a PDF document
type InvoiceRenderer interface {
	RenderInvoice(ctx context.Context, inv *Invoice) ([]byte, error)
}
