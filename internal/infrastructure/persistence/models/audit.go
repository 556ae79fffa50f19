package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AuditLogModel is one row of the append-only payment audit log.
// Correlation keys are nullable so absent values are stored as NULL.
type AuditLogModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Action    string         `gorm:"type:varchar(50);not null;index"`
	UserID    *uuid.UUID     `gorm:"type:uuid;index:idx_audit_user_time,priority:1"`
	MemberID  *uuid.UUID     `gorm:"type:uuid;index:idx_audit_member_time,priority:1"`
	PaymentID *uuid.UUID     `gorm:"type:uuid;index:idx_audit_payment_time,priority:1"`
	Details   string         `gorm:"type:text"`
	IPAddress *string        `gorm:"type:varchar(45)"`
	UserAgent *string        `gorm:"type:text"`
	Metadata  datatypes.JSON `gorm:"column:metadata"`
	Timestamp time.Time      `gorm:"not null;index;index:idx_audit_user_time,priority:2;index:idx_audit_member_time,priority:2;index:idx_audit_payment_time,priority:2"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "payment_audit_logs"
}

// ToDomain converts the row to a domain Entry.
// Metadata that no longer decodes is dropped with a warning; the row itself is kept.
func (m *AuditLogModel) ToDomain() *audit.Entry {
	e := &audit.Entry{
		ID:        m.ID,
		Action:    audit.Action(m.Action),
		UserID:    m.UserID,
		MemberID:  m.MemberID,
		PaymentID: m.PaymentID,
		Details:   m.Details,
		IPAddress: deref(m.IPAddress),
		UserAgent: deref(m.UserAgent),
		Timestamp: m.Timestamp,
	}
	md, err := audit.DecodeMetadata(e.Action, m.Metadata)
	if err != nil {
		zap.L().Named("audit.models").Warn("failed to decode audit metadata",
			zap.String("audit_id", m.ID.String()),
			zap.String("action", m.Action),
			zap.Error(err))
		return e
	}
	e.Metadata = md
	return e
}

// AuditLogModelFromDomain creates a row from a domain Entry
func AuditLogModelFromDomain(e *audit.Entry) (*AuditLogModel, error) {
	raw, err := audit.EncodeMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	return &AuditLogModel{
		ID:        e.ID,
		Action:    e.Action.String(),
		UserID:    e.UserID,
		MemberID:  e.MemberID,
		PaymentID: e.PaymentID,
		Details:   e.Details,
		IPAddress: nonEmpty(e.IPAddress),
		UserAgent: nonEmpty(e.UserAgent),
		Metadata:  datatypes.JSON(raw),
		Timestamp: e.Timestamp,
	}, nil
}

// ComplianceCheckModel is the persistence model for compliance checks
type ComplianceCheckModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null;index"`
	CheckType string    `gorm:"type:varchar(100);not null;index"`
	Status    string    `gorm:"type:varchar(20);not null"`
	Details   string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ComplianceCheckModel) TableName() string {
	return "payment_compliance_checks"
}

// ToDomain converts the persistence model to a domain ComplianceCheck
func (m *ComplianceCheckModel) ToDomain() *audit.ComplianceCheck {
	return &audit.ComplianceCheck{
		ID:        m.ID,
		PaymentID: m.PaymentID,
		CheckType: m.CheckType,
		Status:    audit.CheckStatus(m.Status),
		Details:   m.Details,
		Timestamp: m.Timestamp,
	}
}

// ComplianceCheckModelFromDomain creates a persistence model from a domain ComplianceCheck
func ComplianceCheckModelFromDomain(c *audit.ComplianceCheck) *ComplianceCheckModel {
	return &ComplianceCheckModel{
		ID:        c.ID,
		PaymentID: c.PaymentID,
		CheckType: c.CheckType,
		Status:    string(c.Status),
		Details:   c.Details,
		Timestamp: c.Timestamp,
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
