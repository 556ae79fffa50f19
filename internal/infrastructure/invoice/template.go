package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/shopspring/decimal"
)

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.Invoice.Number}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; margin: 0; }
  h1 { font-size: 22px; margin: 0 0 4px; }
  .meta { color: #666; margin-bottom: 24px; }
  .parties { display: flex; justify-content: space-between; margin-bottom: 24px; }
  table { width: 100%; border-collapse: collapse; }
  th, td { padding: 6px 8px; border-bottom: 1px solid #ddd; text-align: left; }
  td.amount, th.amount { text-align: right; }
  tfoot td { border-bottom: none; }
  .total td { font-weight: bold; border-top: 2px solid #222; }
  .status { text-transform: uppercase; font-weight: bold; }
</style>
</head>
<body>
  <h1>{{.Company}}</h1>
  <div class="meta">
    Invoice <strong>{{.Invoice.Number}}</strong>
    &middot; Issued {{date .Invoice.IssuedAt}}
    &middot; Paid {{date .Invoice.PaymentDate}}
  </div>
  <div class="parties">
    <div>
      <strong>Billed to</strong><br>
      {{with .Invoice.Member}}{{.FirstName}} {{.LastName}}<br>{{.Email}}{{else}}Member{{end}}
    </div>
    <div>
      Method: {{.Invoice.Method}}<br>
      Status: <span class="status">{{.Invoice.Status}}</span>
      {{with .Invoice.Reference}}<br>Reference: {{.}}{{end}}
    </div>
  </div>
  <table>
    <thead>
      <tr><th>Description</th><th class="amount">Amount ({{.Invoice.Currency}})</th></tr>
    </thead>
    <tbody>
      {{range .Invoice.Lines}}<tr><td>{{.Description}}</td><td class="amount">{{money .Amount}}</td></tr>
      {{end}}
    </tbody>
    <tfoot>
      <tr><td>Subtotal</td><td class="amount">{{money .Invoice.Subtotal}}</td></tr>
      <tr><td>Tax</td><td class="amount">{{money .Invoice.Tax}}</td></tr>
      <tr class="total"><td>Total</td><td class="amount">{{money .Invoice.Total}} {{.Invoice.Currency}}</td></tr>
    </tfoot>
  </table>
</body>
</html>
`

var tmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date":  func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(invoiceTemplate))

type templateData struct {
	Company string
	Invoice *apppayment.Invoice
}

// RenderHTML renders the invoice document that is printed to PDF
func RenderHTML(company string, inv *apppayment.Invoice) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("invoice: nil invoice")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Company: company, Invoice: inv}); err != nil {
		return "", fmt.Errorf("invoice: render template: %w", err)
	}
	return buf.String(), nil
}
