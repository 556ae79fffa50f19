package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// NotificationContext is everything a member-facing message needs
type NotificationContext struct {
	Member      Member
	Amount      decimal.Decimal
	Currency    Currency
	DueDate     *time.Time
	DaysOverdue int
	Reference   string

	// Payment is set for receipts and confirmations
	Payment *Payment
}

// Notifier sends member-facing payment messages.
// Callers log returned errors and never fail their own operation on them.
type Notifier interface {
	SendFailedPaymentNotification(ctx context.Context, n NotificationContext, errMsg string) error
	SendPaymentReminder(ctx context.Context, n NotificationContext) error
	SendPaymentReceipt(ctx context.Context, n NotificationContext) error
	SendPaymentConfirmation(ctx context.Context, n NotificationContext) error
}

// NewScheduleNotification builds the context for a recurring payment message
func NewScheduleNotification(rp *RecurringPayment) NotificationContext {
	n := NotificationContext{
		Amount:    rp.Amount,
		Currency:  DefaultCurrency,
		Reference: rp.PaymentReference(),
	}
	due := rp.NextPaymentDate
	n.DueDate = &due
	if rp.Member != nil {
		n.Member = *rp.Member
	} else {
		n.Member.ID = rp.MemberID
	}
	return n
}

// NewInstallmentNotification builds the reminder context for an installment
func NewInstallmentNotification(ip *InstallmentPlan, daysOverdue int) NotificationContext {
	n := NotificationContext{
		Amount:      ip.InstallmentAmount,
		Currency:    DefaultCurrency,
		DueDate:     ip.NextDueDate,
		DaysOverdue: daysOverdue,
		Reference:   ip.PaymentReference(),
	}
	if ip.Member != nil {
		n.Member = *ip.Member
	} else {
		n.Member.ID = ip.MemberID
	}
	return n
}

// NewPaymentNotification builds the context for a receipt or confirmation
func NewPaymentNotification(p *Payment) NotificationContext {
	n := NotificationContext{
		Amount:    p.Amount,
		Currency:  p.Currency,
		Reference: p.Reference,
		Payment:   p,
	}
	if p.Member != nil {
		n.Member = *p.Member
	} else {
		n.Member.ID = p.MemberID
	}
	return n
}
