package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/samber/lo"
)

// CheckStatus is the outcome of a compliance check
type CheckStatus string

const (
	CheckStatusPassed  CheckStatus = "PASSED"
	CheckStatusFailed  CheckStatus = "FAILED"
	CheckStatusPending CheckStatus = "PENDING"
)

// IsValid checks if the status is a valid CheckStatus
func (s CheckStatus) IsValid() bool {
	switch s {
	case CheckStatusPassed, CheckStatusFailed, CheckStatusPending:
		return true
	}
	return false
}

// ComplianceCheck is a pass/fail/pending assertion about one payment
type ComplianceCheck struct {
	ID        uuid.UUID   `json:"id"`
	PaymentID uuid.UUID   `json:"paymentId"`
	CheckType string      `json:"checkType"`
	Status    CheckStatus `json:"status"`
	Details   string      `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewComplianceCheck validates and stamps a new check with a generated id
func NewComplianceCheck(paymentID uuid.UUID, checkType string, status CheckStatus, details string) (*ComplianceCheck, error) {
	if paymentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "paymentId is required")
	}
	if strings.TrimSpace(checkType) == "" {
		return nil, shared.NewDomainError("INVALID_CHECK_TYPE", "checkType is required")
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHECK_STATUS", "status must be one of PASSED, FAILED, PENDING")
	}
	return &ComplianceCheck{
		ID:        uuid.New(),
		PaymentID: paymentID,
		CheckType: checkType,
		Status:    status,
		Details:   details,
		Timestamp: time.Now(),
	}, nil
}

// TypeSummary counts checks of one type by outcome
type TypeSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// ComplianceReport aggregates the checks recorded in a period
type ComplianceReport struct {
	StartDate    time.Time              `json:"startDate"`
	EndDate      time.Time              `json:"endDate"`
	TotalChecks  int                    `json:"totalChecks"`
	ByType       map[string]TypeSummary `json:"byType"`
	ByStatus     map[CheckStatus]int    `json:"byStatus"`
	FailedChecks []ComplianceCheck      `json:"failedChecks"`
}

// BuildComplianceReport aggregates checks into per-type and per-status counts
func BuildComplianceReport(checks []ComplianceCheck, start, end time.Time) ComplianceReport {
	byType := lo.MapValues(
		lo.GroupBy(checks, func(c ComplianceCheck) string { return c.CheckType }),
		func(group []ComplianceCheck, _ string) TypeSummary {
			return TypeSummary{
				Total:   len(group),
				Passed:  lo.CountBy(group, func(c ComplianceCheck) bool { return c.Status == CheckStatusPassed }),
				Failed:  lo.CountBy(group, func(c ComplianceCheck) bool { return c.Status == CheckStatusFailed }),
				Pending: lo.CountBy(group, func(c ComplianceCheck) bool { return c.Status == CheckStatusPending }),
			}
		},
	)

	return ComplianceReport{
		StartDate:    start,
		EndDate:      end,
		TotalChecks:  len(checks),
		ByType:       byType,
		ByStatus:     lo.CountValuesBy(checks, func(c ComplianceCheck) CheckStatus { return c.Status }),
		FailedChecks: lo.Filter(checks, func(c ComplianceCheck, _ int) bool { return c.Status == CheckStatusFailed }),
	}
}
