package router

import (
	"github.com/gin-gonic/gin"
	"github.com/gym/backend/internal/infrastructure/auth"
	"github.com/gym/backend/internal/interfaces/http/handler"
)

// Handlers bundles the handlers mounted under the API prefix
type Handlers struct {
	Payments     *handler.PaymentHandler
	Recurring    *handler.RecurringHandler
	Installments *handler.InstallmentHandler
	Audit        *handler.AuditHandler
	// Billing is nil when the cron trigger is disabled
	Billing *handler.BillingHandler
}

// RoleGuard builds middleware admitting callers holding any of roles
type RoleGuard func(roles ...string) gin.HandlerFunc

var (
	// billingRoles may move money and read the audit trail
	billingRoles = []string{auth.RoleBilling, auth.RoleAdmin}
	adminRoles   = []string{auth.RoleAdmin}
)

// APIGroups returns the payment API route groups. Every route expects an
// authenticated caller; guard adds role checks to the sensitive ones.
func APIGroups(h Handlers, guard RoleGuard) []*DomainGroup {
	billing := guard(billingRoles...)
	admin := guard(adminRoles...)

	payments := NewDomainGroup("payments", "/payments").
		POST("", h.Payments.Create).
		GET("", h.Payments.List).
		GET("/member/:memberId", h.Payments.ListByMember).
		GET("/:id", h.Payments.Get).
		PUT("/:id", h.Payments.Update).
		DELETE("/:id", billing, h.Payments.Delete).
		POST("/:id/refund", billing, h.Payments.Refund).
		POST("/:id/cancel", h.Payments.Cancel)

	invoices := NewDomainGroup("invoices", "/invoices").
		POST("", h.Payments.CreateInvoice).
		GET("/:paymentId/pdf", h.Payments.InvoicePDF)

	reports := NewDomainGroup("reports", "/reports").
		Use(billing).
		GET("", h.Payments.Report)

	recurring := NewDomainGroup("recurring-payments", "/recurring-payments").
		POST("", h.Recurring.Create).
		GET("", h.Recurring.List).
		POST("/process", billing, h.Recurring.Process).
		GET("/:id", h.Recurring.Get).
		POST("/:id/pause", h.Recurring.Pause).
		POST("/:id/resume", h.Recurring.Resume).
		POST("/:id/cancel", h.Recurring.Cancel)

	installments := NewDomainGroup("installment-plans", "/installment-plans").
		POST("", h.Installments.Create).
		GET("", h.Installments.List).
		POST("/process", billing, h.Installments.Process).
		GET("/:id", h.Installments.Get).
		POST("/:id/resume", h.Installments.Resume).
		POST("/:id/cancel", h.Installments.Cancel)

	auditTrail := NewDomainGroup("audit", "/audit").
		Use(billing).
		GET("/payments/:paymentId", h.Audit.PaymentTrail).
		GET("/members/:memberId", h.Audit.MemberTrail).
		GET("/users/:userId", h.Audit.UserTrail).
		GET("/export", h.Audit.Export).
		POST("/compliance-checks", h.Audit.CreateComplianceCheck).
		GET("/compliance-report", h.Audit.ComplianceReport).
		DELETE("/retention", admin, h.Audit.Purge).
		POST("/archive", admin, h.Audit.Archive)

	groups := []*DomainGroup{payments, invoices, reports, recurring, installments, auditTrail}
	if h.Billing != nil {
		groups = append(groups, NewDomainGroup("billing", "/billing").
			Use(admin).
			GET("/scheduler", h.Billing.Status).
			POST("/scheduler/trigger", h.Billing.Trigger))
	}
	return groups
}

// RegisterAPI registers the payment API groups on r
func RegisterAPI(r *Router, h Handlers, guard RoleGuard) *Router {
	for _, g := range APIGroups(h, guard) {
		r.Register(g)
	}
	return r
}
