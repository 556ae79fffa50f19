package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInvalidRange is returned when a query window ends before it starts
	ErrInvalidRange = errors.New("audit: end date is before start date")
	// ErrArchiveNotConfigured is returned when archiving without an object store
	ErrArchiveNotConfigured = errors.New("audit: archive storage is not configured")
)

// DefaultTrailLimit caps member and user trails when no limit is given
const DefaultTrailLimit = 100

// ArchiveStore uploads exported audit documents
type ArchiveStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Service records payment activity and answers audit and compliance queries
type Service struct {
	entries       audit.Repository
	compliance    audit.ComplianceRepository
	activity      *BestEffortWriter[audit.Entry]
	checks        *StrictWriter[audit.ComplianceCheck]
	archive       ArchiveStore
	archivePrefix string
	logger        *zap.Logger
	now           func() time.Time
}

// ServiceConfig holds the dependencies of the audit service
type ServiceConfig struct {
	Entries       audit.Repository
	Compliance    audit.ComplianceRepository
	Archive       ArchiveStore
	ArchivePrefix string
	WriteTimeout  time.Duration
	Logger        *zap.Logger
	Clock         func() time.Time
}

// NewService creates a new audit Service
func NewService(config ServiceConfig) *Service {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	prefix := config.ArchivePrefix
	if prefix == "" {
		prefix = "audit"
	}

	return &Service{
		entries:       config.Entries,
		compliance:    config.Compliance,
		activity:      NewBestEffortWriter[audit.Entry]("audit.append", config.Entries.Append, config.WriteTimeout, logger),
		checks:        NewStrictWriter[audit.ComplianceCheck]("audit.compliance_check", config.Compliance.Create, logger),
		archive:       config.Archive,
		archivePrefix: prefix,
		logger:        logger,
		now:           clock,
	}
}

// LogPaymentActivity appends one entry. It never fails the caller.
func (s *Service) LogPaymentActivity(ctx context.Context, e *audit.Entry) {
	if e == nil {
		return
	}
	s.activity.Write(ctx, e)
}

func (s *Service) record(ctx context.Context, action audit.Action, details string, md audit.Metadata, actor audit.Actor, paymentID, memberID *uuid.UUID) {
	e, err := audit.NewEntry(action, details, md, actor)
	if err != nil {
		s.logger.Error("Failed to build audit entry",
			zap.String("action", string(action)),
			zap.Error(err))
		return
	}
	e.PaymentID = paymentID
	e.MemberID = memberID
	s.LogPaymentActivity(ctx, e)
}

// LogPaymentCreation records a newly created payment
func (s *Service) LogPaymentCreation(ctx context.Context, p *payment.Payment, actor audit.Actor) {
	details := fmt.Sprintf("Payment of %s %s created via %s with status %s",
		p.Amount.StringFixed(2), p.Currency, p.Method, p.Status)
	s.record(ctx, audit.ActionPaymentCreated, details, audit.PaymentCreatedMetadata{
		Amount:    p.Amount.String(),
		Currency:  p.Currency.String(),
		Method:    p.Method.String(),
		Status:    p.Status.String(),
		Reference: p.Reference,
	}, actor, &p.ID, &p.MemberID)
}

// LogPaymentUpdate records the fields an update changed
func (s *Service) LogPaymentUpdate(ctx context.Context, p *payment.Payment, changes []payment.FieldChange, actor audit.Actor) {
	fields := make([]string, 0, len(changes))
	mdChanges := make([]audit.FieldChange, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.Field)
		mdChanges = append(mdChanges, audit.FieldChange{Field: c.Field, Old: c.Old, New: c.New})
	}
	details := "Payment updated"
	if len(fields) > 0 {
		details += ": " + strings.Join(fields, ", ")
	}
	s.record(ctx, audit.ActionPaymentUpdated, details,
		audit.PaymentUpdatedMetadata{Changes: mdChanges}, actor, &p.ID, &p.MemberID)
}

// LogPaymentDeletion snapshots a payment that is being removed
func (s *Service) LogPaymentDeletion(ctx context.Context, p *payment.Payment, reason string, actor audit.Actor) {
	details := fmt.Sprintf("Payment of %s %s deleted", p.Amount.StringFixed(2), p.Currency)
	if reason != "" {
		details += ": " + reason
	}
	s.record(ctx, audit.ActionPaymentDeleted, details, audit.PaymentDeletedMetadata{
		Amount: p.Amount.String(),
		Status: p.Status.String(),
		Method: p.Method.String(),
		Reason: reason,
	}, actor, &p.ID, &p.MemberID)
}

// LogPaymentStatusChange records a status transition
func (s *Service) LogPaymentStatusChange(ctx context.Context, p *payment.Payment, oldStatus, newStatus payment.Status, reason string, actor audit.Actor) {
	details := fmt.Sprintf("Payment status changed from %s to %s", oldStatus, newStatus)
	if reason != "" {
		details += ": " + reason
	}
	s.record(ctx, audit.ActionPaymentStatusChanged, details, audit.PaymentStatusChangedMetadata{
		OldStatus: oldStatus.String(),
		NewStatus: newStatus.String(),
		Reason:    reason,
	}, actor, &p.ID, &p.MemberID)
}

// LogPaymentAccess records a read of payment data.
// memberID may be nil when only the payment is known.
func (s *Service) LogPaymentAccess(ctx context.Context, paymentID uuid.UUID, memberID *uuid.UUID, accessType string, actor audit.Actor) {
	if accessType == "" {
		accessType = "VIEW"
	}
	s.record(ctx, audit.ActionPaymentAccessed, "Payment accessed ("+accessType+")",
		audit.PaymentAccessedMetadata{AccessType: accessType}, actor, &paymentID, memberID)
}

// FailedAttempt describes a failed charge for the audit log
type FailedAttempt struct {
	MemberID      uuid.UUID
	PaymentID     *uuid.UUID
	Amount        decimal.Decimal
	ErrorMessage  string
	Source        string
	ScheduleID    uuid.UUID
	AttemptNumber int
	Terminal      bool
}

// LogFailedPaymentAttempt records a charge that did not go through
func (s *Service) LogFailedPaymentAttempt(ctx context.Context, f FailedAttempt, actor audit.Actor) {
	details := fmt.Sprintf("Payment attempt of %s failed: %s", f.Amount.StringFixed(2), f.ErrorMessage)
	if f.AttemptNumber > 0 {
		details = fmt.Sprintf("Payment attempt %d of %s failed: %s", f.AttemptNumber, f.Amount.StringFixed(2), f.ErrorMessage)
	}
	md := audit.PaymentAttemptFailedMetadata{
		Amount:        f.Amount.String(),
		ErrorMessage:  f.ErrorMessage,
		Source:        f.Source,
		AttemptNumber: f.AttemptNumber,
		Terminal:      f.Terminal,
	}
	if f.ScheduleID != uuid.Nil {
		md.ScheduleID = f.ScheduleID.String()
	}
	memberID := f.MemberID
	s.record(ctx, audit.ActionPaymentAttemptFailed, details, md, actor, f.PaymentID, &memberID)
}

// LogSuccessfulPayment records a settled payment
func (s *Service) LogSuccessfulPayment(ctx context.Context, p *payment.Payment, actor audit.Actor) {
	details := fmt.Sprintf("Payment of %s %s completed via %s", p.Amount.StringFixed(2), p.Currency, p.Method)
	s.record(ctx, audit.ActionPaymentSuccessful, details, audit.PaymentSuccessfulMetadata{
		Amount:               p.Amount.String(),
		Method:               p.Method.String(),
		GatewayTransactionID: p.GatewayTransactionID,
	}, actor, &p.ID, &p.MemberID)
}

// LogRefund records a refund of amount against p
func (s *Service) LogRefund(ctx context.Context, p *payment.Payment, amount decimal.Decimal, reason string, actor audit.Actor) {
	details := fmt.Sprintf("Refund of %s %s issued", amount.StringFixed(2), p.Currency)
	if reason != "" {
		details += ": " + reason
	}
	s.record(ctx, audit.ActionPaymentRefunded, details, audit.PaymentRefundedMetadata{
		RefundAmount:   amount.String(),
		OriginalAmount: p.Amount.String(),
		Reason:         reason,
	}, actor, &p.ID, &p.MemberID)
}

// LogRecurringPaymentCreation records a new billing schedule
func (s *Service) LogRecurringPaymentCreation(ctx context.Context, rp *payment.RecurringPayment, actor audit.Actor) {
	details := fmt.Sprintf("Recurring payment of %s created with %s frequency starting %s",
		rp.Amount.StringFixed(2), rp.Frequency, rp.StartDate.Format("2006-01-02"))
	s.record(ctx, audit.ActionRecurringPaymentCreated, details, audit.RecurringPaymentCreatedMetadata{
		RecurringPaymentID: rp.ID.String(),
		Amount:             rp.Amount.String(),
		Frequency:          rp.Frequency.String(),
		StartDate:          rp.StartDate,
		EndDate:            rp.EndDate,
	}, actor, nil, &rp.MemberID)
}

// LogInstallmentPlanCreation records a new installment plan
func (s *Service) LogInstallmentPlanCreation(ctx context.Context, ip *payment.InstallmentPlan, actor audit.Actor) {
	details := fmt.Sprintf("Installment plan of %s created with %d installments of %s",
		ip.TotalAmount.StringFixed(2), ip.NumberOfInstallments, ip.InstallmentAmount.StringFixed(2))
	s.record(ctx, audit.ActionInstallmentPlanCreated, details, audit.InstallmentPlanCreatedMetadata{
		InstallmentPlanID:    ip.ID.String(),
		TotalAmount:          ip.TotalAmount.String(),
		NumberOfInstallments: ip.NumberOfInstallments,
		InstallmentAmount:    ip.InstallmentAmount.String(),
	}, actor, nil, &ip.MemberID)
}

// GetPaymentAuditTrail returns every entry for a payment, newest first
func (s *Service) GetPaymentAuditTrail(ctx context.Context, paymentID uuid.UUID) ([]audit.Entry, error) {
	entries, err := s.entries.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment audit trail: %w", err)
	}
	return entries, nil
}

// GetMemberPaymentAuditTrail returns up to limit entries for a member, newest first
func (s *Service) GetMemberPaymentAuditTrail(ctx context.Context, memberID uuid.UUID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = DefaultTrailLimit
	}
	entries, err := s.entries.FindByMemberID(ctx, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("load member audit trail: %w", err)
	}
	return entries, nil
}

// GetUserPaymentAuditTrail returns up to limit entries performed by a user, newest first
func (s *Service) GetUserPaymentAuditTrail(ctx context.Context, userID uuid.UUID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = DefaultTrailLimit
	}
	entries, err := s.entries.FindByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load user audit trail: %w", err)
	}
	return entries, nil
}

// ComplianceCheckInput carries a compliance assertion to record
type ComplianceCheckInput struct {
	PaymentID uuid.UUID
	CheckType string
	Status    audit.CheckStatus
	Details   string
}

// CreateComplianceCheck records a compliance check. Unlike activity logging,
// persistence failures are returned to the caller.
func (s *Service) CreateComplianceCheck(ctx context.Context, in ComplianceCheckInput) (*audit.ComplianceCheck, error) {
	check, err := audit.NewComplianceCheck(in.PaymentID, in.CheckType, in.Status, in.Details)
	if err != nil {
		return nil, err
	}
	check.Timestamp = s.now()
	if err := s.checks.Write(ctx, check); err != nil {
		return nil, err
	}
	return check, nil
}

// GetComplianceReport aggregates the checks recorded between start and end
func (s *Service) GetComplianceReport(ctx context.Context, start, end time.Time) (*audit.ComplianceReport, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	checks, err := s.compliance.FindBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load compliance checks: %w", err)
	}
	report := audit.BuildComplianceReport(checks, start, end)
	return &report, nil
}

// ExportAuditData returns the entries between start and end, oldest first.
// Format CSV (any case) renders the CSV document; anything else returns raw entries.
func (s *Service) ExportAuditData(ctx context.Context, start, end time.Time, format string) (*ExportResult, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	entries, err := s.entries.FindBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load audit entries: %w", err)
	}

	if strings.EqualFold(format, ExportFormatCSV) {
		return &ExportResult{Format: ExportFormatCSV, CSV: RenderCSV(entries), Count: len(entries)}, nil
	}
	return &ExportResult{Format: "JSON", Entries: entries, Count: len(entries)}, nil
}

// CleanOldAuditLogs purges entries older than daysToKeep days and returns the
// number removed. daysToKeep <= 0 uses the seven year default.
func (s *Service) CleanOldAuditLogs(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = audit.DefaultRetentionDays
	}
	cutoff := s.now().AddDate(0, 0, -daysToKeep)

	deleted, err := s.entries.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}

	s.logger.Info("Old audit logs purged",
		zap.Int("days_to_keep", daysToKeep),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))
	return deleted, nil
}

// ArchiveResult describes an uploaded audit export
type ArchiveResult struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	Bytes int    `json:"bytes"`
}

// ArchiveAuditData exports the entries between start and end as CSV and
// uploads the document to the archive store
func (s *Service) ArchiveAuditData(ctx context.Context, start, end time.Time) (*ArchiveResult, error) {
	if s.archive == nil {
		return nil, ErrArchiveNotConfigured
	}
	export, err := s.ExportAuditData(ctx, start, end, ExportFormatCSV)
	if err != nil {
		return nil, err
	}

	key := archiveKey(s.archivePrefix, start, end)
	data := []byte(export.CSV)
	if err := s.archive.Upload(ctx, key, data, "text/csv"); err != nil {
		return nil, fmt.Errorf("upload audit archive: %w", err)
	}

	s.logger.Info("Audit data archived",
		zap.String("key", key),
		zap.Int("entries", export.Count))
	return &ArchiveResult{Key: key, Count: export.Count, Bytes: len(data)}, nil
}
