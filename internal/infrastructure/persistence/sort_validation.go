package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, else defaultField.
// Sort columns are interpolated into SQL, so only whitelisted names pass.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// orderClause builds a safe ORDER BY expression with id as tie-breaker
func orderClause(sortField string, allowed map[string]bool, defaultField, orderDir string) string {
	field := ValidateSortField(sortField, allowed, defaultField)
	dir := ValidateSortOrder(orderDir)
	return field + " " + dir + ", id " + dir
}

// PaymentSortFields contains allowed sort fields for payments
var PaymentSortFields = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"payment_date": true,
	"amount":       true,
	"status":       true,
	"method":       true,
}

// RecurringPaymentSortFields contains allowed sort fields for schedules
var RecurringPaymentSortFields = map[string]bool{
	"created_at":        true,
	"updated_at":        true,
	"next_payment_date": true,
	"amount":            true,
	"status":            true,
}

// InstallmentPlanSortFields contains allowed sort fields for plans
var InstallmentPlanSortFields = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"next_due_date": true,
	"total_amount":  true,
	"status":        true,
}
