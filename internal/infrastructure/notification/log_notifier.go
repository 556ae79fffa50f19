package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gym/backend/internal/domain/payment"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"
)

// ErrNoRecipient is returned when the member has no email address
var ErrNoRecipient = errors.New("notification: member has no email address")

// Kind identifies a member-facing message
type Kind string

const (
	KindFailedPayment Kind = "FAILED_PAYMENT"
	KindReminder      Kind = "PAYMENT_REMINDER"
	KindReceipt       Kind = "PAYMENT_RECEIPT"
	KindConfirmation  Kind = "PAYMENT_CONFIRMATION"
)

// Message is a rendered notification
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

// Config holds notifier configuration
type Config struct {
	// Rate is the number of messages per second. Zero disables throttling.
	Rate     float64
	Burst    int
	Timeout  time.Duration
	Language language.Tag
}

// DefaultConfig returns the default notifier configuration
func DefaultConfig() Config {
	return Config{
		Rate:     5,
		Burst:    10,
		Timeout:  10 * time.Second,
		Language: language.English,
	}
}

// LogNotifier renders payment messages and writes them to the log.
// Delivery to members is handled by whatever ships the logs.
type LogNotifier struct {
	config  Config
	limiter *rate.Limiter
	printer *message.Printer
	logger  *zap.Logger
}

var _ payment.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier
func NewLogNotifier(config Config, logger *zap.Logger) *LogNotifier {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Language == language.Und {
		config.Language = defaults.Language
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if config.Rate > 0 {
		limit = rate.Limit(config.Rate)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &LogNotifier{
		config:  config,
		limiter: rate.NewLimiter(limit, burst),
		printer: message.NewPrinter(config.Language),
		logger:  logger.Named("notifier"),
	}
}

// SendFailedPaymentNotification tells the member a charge did not go through
func (n *LogNotifier) SendFailedPaymentNotification(ctx context.Context, nc payment.NotificationContext, errMsg string) error {
	body := n.printer.Sprintf("Hi %s, we could not process your payment of %s", greetingName(nc.Member), n.formatAmount(nc))
	if nc.Reference != "" {
		body += n.printer.Sprintf(" (reference %s)", nc.Reference)
	}
	if errMsg != "" {
		body += ": " + errMsg
	}
	body += ". Please check your payment method."
	return n.send(ctx, nc, Message{Kind: KindFailedPayment, Subject: "Payment failed", Body: body})
}

// SendPaymentReminder reminds the member of a due or overdue installment
func (n *LogNotifier) SendPaymentReminder(ctx context.Context, nc payment.NotificationContext) error {
	var body string
	switch {
	case nc.DaysOverdue > 0 && nc.DueDate != nil:
		body = n.printer.Sprintf("Hi %s, your payment of %s was due on %s and is %s overdue.",
			greetingName(nc.Member), n.formatAmount(nc), formatDate(*nc.DueDate), days(nc.DaysOverdue))
	case nc.DueDate != nil:
		body = n.printer.Sprintf("Hi %s, your payment of %s is due on %s.",
			greetingName(nc.Member), n.formatAmount(nc), formatDate(*nc.DueDate))
	default:
		body = n.printer.Sprintf("Hi %s, your payment of %s is due.", greetingName(nc.Member), n.formatAmount(nc))
	}
	return n.send(ctx, nc, Message{Kind: KindReminder, Subject: "Payment reminder", Body: body})
}

// SendPaymentReceipt confirms a completed payment
func (n *LogNotifier) SendPaymentReceipt(ctx context.Context, nc payment.NotificationContext) error {
	body := n.printer.Sprintf("Hi %s, we received your payment of %s", greetingName(nc.Member), n.formatAmount(nc))
	if nc.Payment != nil {
		body += n.printer.Sprintf(" on %s", formatDate(nc.Payment.PaymentDate))
	}
	if nc.Reference != "" {
		body += n.printer.Sprintf(". Reference %s", nc.Reference)
	}
	body += ". Thank you!"
	return n.send(ctx, nc, Message{Kind: KindReceipt, Subject: "Payment receipt", Body: body})
}

// SendPaymentConfirmation acknowledges a recorded, not yet completed payment
func (n *LogNotifier) SendPaymentConfirmation(ctx context.Context, nc payment.NotificationContext) error {
	body := n.printer.Sprintf("Hi %s, your payment of %s has been recorded", greetingName(nc.Member), n.formatAmount(nc))
	if nc.Payment != nil {
		body += n.printer.Sprintf(" with status %s", strings.ToLower(nc.Payment.Status.String()))
	}
	body += "."
	return n.send(ctx, nc, Message{Kind: KindConfirmation, Subject: "Payment confirmation", Body: body})
}

func (n *LogNotifier) send(ctx context.Context, nc payment.NotificationContext, msg Message) error {
	if nc.Member.Email == "" {
		return fmt.Errorf("%w: member %s", ErrNoRecipient, nc.Member.ID)
	}
	msg.To = nc.Member.Email

	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification: throttled: %w", err)
	}

	n.logger.Info("Payment notification sent",
		zap.String("kind", string(msg.Kind)),
		zap.String("member_id", nc.Member.ID.String()),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// formatAmount renders the amount with the currency symbol for the configured language
func (n *LogNotifier) formatAmount(nc payment.NotificationContext) string {
	code := nc.Currency
	if code == "" {
		code = payment.DefaultCurrency
	}
	unit, err := currency.ParseISO(code.String())
	if err != nil {
		return nc.Amount.StringFixed(2) + " " + code.String()
	}
	return n.printer.Sprint(currency.Symbol(unit.Amount(nc.Amount.InexactFloat64())))
}

func greetingName(m payment.Member) string {
	if m.FirstName != "" {
		return m.FirstName
	}
	return "there"
}

func formatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
