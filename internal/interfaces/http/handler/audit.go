package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appaudit "github.com/gym/backend/internal/application/audit"
	"github.com/gym/backend/internal/domain/audit"
)

// AuditService answers audit trail and compliance queries
type AuditService interface {
	GetPaymentAuditTrail(ctx context.Context, paymentID uuid.UUID) ([]audit.Entry, error)
	GetMemberPaymentAuditTrail(ctx context.Context, memberID uuid.UUID, limit int) ([]audit.Entry, error)
	GetUserPaymentAuditTrail(ctx context.Context, userID uuid.UUID, limit int) ([]audit.Entry, error)
	CreateComplianceCheck(ctx context.Context, in appaudit.ComplianceCheckInput) (*audit.ComplianceCheck, error)
	GetComplianceReport(ctx context.Context, start, end time.Time) (*audit.ComplianceReport, error)
	ExportAuditData(ctx context.Context, start, end time.Time, format string) (*appaudit.ExportResult, error)
	CleanOldAuditLogs(ctx context.Context, daysToKeep int) (int64, error)
	ArchiveAuditData(ctx context.Context, start, end time.Time) (*appaudit.ArchiveResult, error)
}

var _ AuditService = (*appaudit.Service)(nil)

// maxTrailLimit caps the limit query parameter on trail endpoints
const maxTrailLimit = 1000

// CreateComplianceCheckRequest represents a compliance check to record
type CreateComplianceCheckRequest struct {
	PaymentID uuid.UUID `json:"paymentId" binding:"required"`
	CheckType string    `json:"checkType" binding:"required,max=100"`
	Status    string    `json:"status" binding:"required,oneof=PASSED FAILED PENDING"`
	Details   string    `json:"details" binding:"max=2000"`
}

// ArchiveRequest selects the window of audit entries to archive
type ArchiveRequest struct {
	StartDate time.Time `json:"startDate" binding:"required"`
	EndDate   time.Time `json:"endDate" binding:"required"`
}

// PurgeResult reports how many audit entries a retention run removed
type PurgeResult struct {
	DaysToKeep int   `json:"daysToKeep"`
	Deleted    int64 `json:"deleted"`
}

// AuditHandler handles audit trail and compliance endpoints
type AuditHandler struct {
	BaseHandler
	audit AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// PaymentTrail godoc
// @ID           getPaymentAuditTrail
//
//	@Summary		Audit trail of a payment
//	@Tags			audit
//	@Produce		json
//	@Param			paymentId	path		string	true	"Payment ID"
//	@Success		200			{object}	APIResponse[[]audit.Entry]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/payments/{paymentId} [get]
func (h *AuditHandler) PaymentTrail(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "paymentId")
	if !ok {
		return
	}

	entries, err := h.audit.GetPaymentAuditTrail(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "", entries)
}

// MemberTrail godoc
// @ID           getMemberAuditTrail
//
//	@Summary		Audit trail of a member's payments
//	@Tags			audit
//	@Produce		json
//	@Param			memberId	path		string	true	"Member ID"
//	@Param			limit		query		int		false	"Maximum entries"	default(100)
//	@Success		200			{object}	APIResponse[[]audit.Entry]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/members/{memberId} [get]
func (h *AuditHandler) MemberTrail(c *gin.Context) {
	h.limitedTrail(c, "memberId", h.audit.GetMemberPaymentAuditTrail)
}

// UserTrail godoc
// @ID           getUserAuditTrail
//
//	@Summary		Payment activity performed by a user
//	@Tags			audit
//	@Produce		json
//	@Param			userId	path		string	true	"User ID"
//	@Param			limit	query		int		false	"Maximum entries"	default(100)
//	@Success		200		{object}	APIResponse[[]audit.Entry]
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/users/{userId} [get]
func (h *AuditHandler) UserTrail(c *gin.Context) {
	h.limitedTrail(c, "userId", h.audit.GetUserPaymentAuditTrail)
}

func (h *AuditHandler) limitedTrail(c *gin.Context, param string, load func(context.Context, uuid.UUID, int) ([]audit.Entry, error)) {
	id, ok := h.parseUUIDParam(c, param)
	if !ok {
		return
	}
	limit, ok := h.parseIntQuery(c, "limit", appaudit.DefaultTrailLimit)
	if !ok {
		return
	}
	if limit < 1 || limit > maxTrailLimit {
		h.BadRequest(c, fmt.Sprintf("limit must be between 1 and %d", maxTrailLimit))
		return
	}

	entries, err := load(c.Request.Context(), id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "", entries)
}

// Export godoc
// @ID           exportAuditData
//
//	@Summary		Export audit entries
//	@Description	format=CSV downloads a CSV document; any other format returns the entries as JSON
//	@Tags			audit
//	@Produce		json
//	@Produce		text/csv
//	@Param			start		query		string	true	"Window start (RFC 3339 or YYYY-MM-DD)"
//	@Param			end			query		string	true	"Window end (RFC 3339 or YYYY-MM-DD)"
//	@Param			format		query		string	false	"Export format"	Enums(JSON, CSV)
//	@Success		200			{object}	APIResponse[appaudit.ExportResult]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	start, end, ok := h.window(c)
	if !ok {
		return
	}

	result, err := h.audit.ExportAuditData(c.Request.Context(), start, end, c.Query("format"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Format == appaudit.ExportFormatCSV {
		filename := fmt.Sprintf("audit-%s-%s.csv", start.Format(dateLayout), end.Format(dateLayout))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(result.CSV))
		return
	}
	h.Success(c, "", result)
}

// Purge godoc
// @ID           purgeAuditLogs
//
//	@Summary		Delete audit entries past retention
//	@Description	Removes entries older than daysToKeep days. Defaults to seven years.
//	@Tags			audit
//	@Produce		json
//	@Param			daysToKeep	query		int	false	"Retention in days"	default(2555)
//	@Success		200			{object}	APIResponse[PurgeResult]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		403			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/retention [delete]
func (h *AuditHandler) Purge(c *gin.Context) {
	days, ok := h.parseIntQuery(c, "daysToKeep", audit.DefaultRetentionDays)
	if !ok {
		return
	}
	if days < 1 {
		h.BadRequest(c, "daysToKeep must be positive")
		return
	}

	deleted, err := h.audit.CleanOldAuditLogs(c.Request.Context(), days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "Audit logs purged", PurgeResult{DaysToKeep: days, Deleted: deleted})
}

// CreateComplianceCheck godoc
// @ID           createComplianceCheck
//
//	@Summary		Record a compliance check
//	@Tags			audit
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateComplianceCheckRequest	true	"Check"
//	@Success		201		{object}	APIResponse[audit.ComplianceCheck]
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/compliance-checks [post]
func (h *AuditHandler) CreateComplianceCheck(c *gin.Context) {
	var req CreateComplianceCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	check, err := h.audit.CreateComplianceCheck(c.Request.Context(), appaudit.ComplianceCheckInput{
		PaymentID: req.PaymentID,
		CheckType: req.CheckType,
		Status:    audit.CheckStatus(req.Status),
		Details:   req.Details,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, "Compliance check recorded", check)
}

// ComplianceReport godoc
// @ID           getComplianceReport
//
//	@Summary		Compliance report
//	@Description	Counts checks in the window by type and status
//	@Tags			audit
//	@Produce		json
//	@Param			start		query		string	true	"Window start (RFC 3339 or YYYY-MM-DD)"
//	@Param			end			query		string	true	"Window end (RFC 3339 or YYYY-MM-DD)"
//	@Success		200			{object}	APIResponse[audit.ComplianceReport]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/compliance-report [get]
func (h *AuditHandler) ComplianceReport(c *gin.Context) {
	start, end, ok := h.window(c)
	if !ok {
		return
	}

	report, err := h.audit.GetComplianceReport(c.Request.Context(), start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, "", report)
}

// Archive godoc
// @ID           archiveAuditData
//
//	@Summary		Archive audit entries to object storage
//	@Tags			audit
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ArchiveRequest	true	"Window"
//	@Success		201		{object}	APIResponse[appaudit.ArchiveResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/archive [post]
func (h *AuditHandler) Archive(c *gin.Context) {
	var req ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.audit.ArchiveAuditData(c.Request.Context(), req.StartDate, req.EndDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, "Audit data archived", result)
}

func (h *AuditHandler) window(c *gin.Context) (time.Time, time.Time, bool) {
	start, ok := h.parseTimeQuery(c, "start", false)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := h.parseTimeQuery(c, "end", true)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
