package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	apppayment "github.com/gym/backend/internal/application/payment"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second

	// A4 in inches
	paperWidth  = 8.27
	paperHeight = 11.69
	margin      = 0.4
)

// ErrRenderTimeout is returned when the browser does not produce the PDF in time
var ErrRenderTimeout = errors.New("invoice: PDF rendering timed out")

// Config contains configuration for the chromedp renderer
type Config struct {
	// RemoteURL is the debugging URL of a running Chrome. Empty launches a local headless browser.
	RemoteURL string
	Timeout   time.Duration
	// NoSandbox is required when Chrome runs as root inside a container
	NoSandbox   bool
	CompanyName string
	Logger      *zap.Logger
}

// ChromedpRenderer prints invoices to PDF through the Chrome DevTools Protocol
type ChromedpRenderer struct {
	config      Config
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

var _ apppayment.InvoiceRenderer = (*ChromedpRenderer)(nil)

// NewChromedpRenderer creates a renderer. The browser starts on first use.
func NewChromedpRenderer(config Config) *ChromedpRenderer {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.CompanyName == "" {
		config.CompanyName = "Gym"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{config: config, logger: logger.Named("invoice")}
	if config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("font-render-hinting", "none"),
		)
		if config.NoSandbox {
			opts = append(opts, chromedp.NoSandbox)
		}
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	return r
}

// RenderInvoice renders inv to HTML and prints it to an A4 PDF
func (r *ChromedpRenderer) RenderInvoice(ctx context.Context, inv *apppayment.Invoice) ([]byte, error) {
	html, err := RenderHTML(r.config.CompanyName, inv)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(r.logger.Sugar().Debugf),
	)
	defer browserCancel()

	// Tie the tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrRenderTimeout, r.config.Timeout)
		}
		return nil, fmt.Errorf("invoice: print to PDF: %w", err)
	}

	r.logger.Debug("Invoice rendered",
		zap.String("invoice_number", inv.Number),
		zap.Int("size_bytes", len(pdf)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return pdf, nil
}

// Close shuts down the browser allocator
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}
