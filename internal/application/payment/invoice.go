package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest represents a request to issue an invoice for a payment
type CreateInvoiceRequest struct {
	PaymentID uuid.UUID `json:"paymentId" binding:"required"`
}

// InvoiceLine is one billed item
type InvoiceLine struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is a billing document derived from a ledger entry
type Invoice struct {
	Number      string          `json:"number"`
	PaymentID   uuid.UUID       `json:"paymentId"`
	IssuedAt    time.Time       `json:"issuedAt"`
	PaymentDate time.Time       `json:"paymentDate"`
	Status      string          `json:"status"`
	Method      string          `json:"method"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference,omitempty"`
	Member      *MemberResponse `json:"member,omitempty"`
	Lines       []InvoiceLine   `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// invoiceNumber is stable for a payment: INV-{payment date}-{id prefix}
func invoiceNumber(p *payment.Payment) string {
	id := strings.ToUpper(strings.ReplaceAll(p.ID.String(), "-", ""))
	return fmt.Sprintf("INV-%s-%s", p.PaymentDate.UTC().Format("20060102"), id[:8])
}

func buildInvoice(p *payment.Payment, issuedAt time.Time) *Invoice {
	description := p.Description
	if description == "" {
		description = "Membership payment"
	}
	lines := []InvoiceLine{{Description: description, Amount: p.Amount}}
	if p.ProcessingFee.IsPositive() {
		lines = append(lines, InvoiceLine{Description: "Processing fee", Amount: p.ProcessingFee})
	}
	if p.LateFees.IsPositive() {
		lines = append(lines, InvoiceLine{Description: "Late fees", Amount: p.LateFees})
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Amount)
	}

	return &Invoice{
		Number:      invoiceNumber(p),
		PaymentID:   p.ID,
		IssuedAt:    issuedAt,
		PaymentDate: p.PaymentDate,
		Status:      p.Status.String(),
		Method:      p.Method.String(),
		Currency:    p.Currency.String(),
		Reference:   p.Reference,
		Member:      toMemberResponse(p.Member),
		Lines:       lines,
		Subtotal:    subtotal,
		Tax:         p.TaxAmount,
		Total:       p.TotalAmount(),
	}
}

// CreateInvoice builds the invoice for a payment
func (s *PaymentService) CreateInvoice(ctx context.Context, paymentID uuid.UUID) (*Invoice, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Member == nil {
		if m, err := s.members.FindByID(ctx, p.MemberID); err == nil {
			p.Member = m
		}
	}
	return buildInvoice(p, s.clock()), nil
}

// RenderInvoicePDF builds the invoice for a payment and renders it as PDF
func (s *PaymentService) RenderInvoicePDF(ctx context.Context, paymentID uuid.UUID) (*Invoice, []byte, error) {
	if s.invoices == nil {
		return nil, nil, ErrInvoiceRendererUnavailable
	}
	inv, err := s.CreateInvoice(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := s.invoices.RenderInvoice(ctx, inv)
	if err != nil {
		return nil, nil, fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}
	return inv, pdf, nil
}
