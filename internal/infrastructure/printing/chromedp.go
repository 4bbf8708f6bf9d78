package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/erp/salesdocs/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultScale         = 1.0
	defaultMaxConcurrent = 2
)

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// ExecPath of a local Chrome/Chromium; empty uses chromedp's lookup
	ExecPath string
	// RemoteURL is the DevTools websocket URL of a remote browser (optional).
	// If empty, chromedp launches a local browser.
	RemoteURL string
	// DefaultTimeout for rendering operations
	DefaultTimeout time.Duration
	// MaxConcurrent bounds the number of tabs printing at the same time
	MaxConcurrent int
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	Scale     float64
	Logger    *zap.Logger
}

// ChromedpConfigFromApp maps the renderer section of the application config
func ChromedpConfigFromApp(cfg config.RendererConfig, logger *zap.Logger) *ChromedpConfig {
	return &ChromedpConfig{
		ExecPath:       cfg.ChromePath,
		RemoteURL:      cfg.RemoteURL,
		DefaultTimeout: cfg.Timeout,
		MaxConcurrent:  cfg.MaxConcurrent,
		NoSandbox:      true,
		Logger:         logger,
	}
}

// ChromedpRenderer renders HTML to PDF using the Chrome DevTools Protocol.
// Every render gets its own browser context from the shared allocator.
type ChromedpRenderer struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	slots       chan struct{}
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates a new chromedp-based PDF renderer.
// No browser is started until the first render.
func NewChromedpRenderer(cfg *ChromedpConfig) (*ChromedpRenderer, error) {
	if cfg == nil {
		cfg = &ChromedpConfig{}
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultChromeTimeout
	}
	if cfg.Scale == 0 {
		cfg.Scale = defaultScale
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{
		config: cfg,
		logger: logger.Named("chromedp"),
		slots:  make(chan struct{}, cfg.MaxConcurrent),
	}
	r.initAllocator()
	return r, nil
}

func (r *ChromedpRenderer) initAllocator() {
	if r.config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if r.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.config.ExecPath))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Render converts HTML content to PDF
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "render request is nil", nil)
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}
	if !req.PaperSize.IsValid() {
		return nil, NewRenderError(ErrCodeInvalidPaperSize, "invalid paper size: "+string(req.PaperSize), nil)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = r.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return nil, NewRenderError(ErrCodeRenderTimeout, "no free render slot", ctx.Err())
	}

	startTime := time.Now()
	tabCtx, tabCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer tabCancel()
	// the tab must die with the caller's deadline, not only with the allocator
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	html := buildCompleteHTML(req)
	params := r.buildPrintParams(req)

	var pdfData []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(params.paperWidth).
				WithPaperHeight(params.paperHeight).
				WithMarginTop(params.marginTop).
				WithMarginRight(params.marginRight).
				WithMarginBottom(params.marginBottom).
				WithMarginLeft(params.marginLeft).
				WithScale(params.scale).
				WithDisplayHeaderFooter(params.displayFooter).
				WithHeaderTemplate("<span></span>").
				WithFooterTemplate(params.footerTemplate).
				WithPreferCSSPageSize(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("PDF rendering timed out after %v", timeout), err)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}
	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	pageCount := estimatePageCount(pdfData)
	renderDuration := time.Since(startTime)
	r.logger.Debug("PDF rendered",
		zap.Int("bytes", len(pdfData)),
		zap.Int("pages", pageCount),
		zap.Duration("duration", renderDuration))

	return &RenderResult{
		PDFData:        pdfData,
		PageCount:      pageCount,
		RenderDuration: renderDuration,
	}, nil
}

// printParams holds the page setup in inches, which is what Chrome expects
type printParams struct {
	paperWidth     float64
	paperHeight    float64
	marginTop      float64
	marginRight    float64
	marginBottom   float64
	marginLeft     float64
	scale          float64
	displayFooter  bool
	footerTemplate string
}

func (r *ChromedpRenderer) buildPrintParams(req *RenderRequest) *printParams {
	width, height := req.PaperSize.Dimensions()
	params := &printParams{
		paperWidth:   mmToInches(width),
		paperHeight:  mmToInches(height),
		marginTop:    mmToInches(req.Margins.Top),
		marginRight:  mmToInches(req.Margins.Right),
		marginBottom: mmToInches(req.Margins.Bottom),
		marginLeft:   mmToInches(req.Margins.Left),
		scale:        r.config.Scale,
	}
	if req.FooterHTML != "" {
		params.displayFooter = true
		params.footerTemplate = req.FooterHTML
		if params.marginBottom < mmToInches(15) {
			params.marginBottom = mmToInches(15)
		}
	}
	return params
}

// buildCompleteHTML wraps fragments in a complete document
func buildCompleteHTML(req *RenderRequest) string {
	lower := strings.ToLower(req.HTML)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return req.HTML
	}

	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html><html lang="de"><head><meta charset="UTF-8">`)
	if req.Title != "" {
		buf.WriteString("<title>")
		buf.WriteString(req.Title)
		buf.WriteString("</title>")
	}
	buf.WriteString("</head><body>")
	buf.WriteString(req.HTML)
	buf.WriteString("</body></html>")
	return buf.String()
}

// Close shuts the browser down
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// estimatePageCount counts page objects in the PDF.
// "/Type /Pages" also matches the "/Type /Page" prefix, so parent nodes are subtracted.
func estimatePageCount(pdfData []byte) int {
	count := bytes.Count(pdfData, []byte("/Type /Page"))
	count -= bytes.Count(pdfData, []byte("/Type /Pages"))
	return max(count, 1)
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
