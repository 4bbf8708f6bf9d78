package printing

import (
	"context"
	"embed"
	"html/template"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// DocumentView is the data bound to the document template
type DocumentView struct {
	Title    string
	Number   string
	IssuedOn time.Time
	Customer document.Customer
	Items    []document.LineItem
	Priced   bool
	Totals   document.Totals
	VATRate  decimal.Decimal
	Notes    string
}

// NewDocumentView builds the template data for a payload of type t
func NewDocumentView(t document.DocumentType, payload document.Payload) DocumentView {
	p := payload.Clone()
	p.Normalize(t)
	view := DocumentView{
		Title:    t.Label(),
		Number:   p.Number,
		IssuedOn: p.IssuedOn,
		Customer: p.Customer,
		Items:    p.Items,
		Priced:   t.IsPriced(),
		VATRate:  p.VATRate,
		Notes:    p.Notes,
	}
	if view.Priced {
		view.Totals = p.Totals()
	}
	return view
}

// DocumentRenderer implements document.Renderer on top of the HTML templates
type DocumentRenderer struct {
	engine    *TemplateEngine
	templates *template.Template
	pdf       PDFRenderer
	paperSize PaperSize
	margins   Margins
	logger    *zap.Logger
}

// DocumentRendererOption configures a DocumentRenderer
type DocumentRendererOption func(*DocumentRenderer)

// WithPaperSize sets the output format
func WithPaperSize(p PaperSize) DocumentRendererOption {
	return func(r *DocumentRenderer) {
		if p.IsValid() {
			r.paperSize = p
		}
	}
}

// WithRendererLogger sets the logger
func WithRendererLogger(logger *zap.Logger) DocumentRendererOption {
	return func(r *DocumentRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewDocumentRenderer creates a renderer. With a nil PDFRenderer the artifacts are HTML.
func NewDocumentRenderer(pdf PDFRenderer, opts ...DocumentRendererOption) (*DocumentRenderer, error) {
	engine := NewTemplateEngine()
	tmpl, err := engine.Parse(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &DocumentRenderer{
		engine:    engine,
		templates: tmpl,
		pdf:       pdf,
		paperSize: PaperSizeA4,
		margins:   DefaultMargins(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RenderHTML renders the document template only
func (r *DocumentRenderer) RenderHTML(ctx context.Context, t document.DocumentType, payload document.Payload) (string, error) {
	if !t.IsValid() {
		return "", document.ErrUnknownDocumentType
	}
	return r.engine.Execute(ctx, r.templates, "document", NewDocumentView(t, payload))
}

// Render produces the artifact for a document
func (r *DocumentRenderer) Render(ctx context.Context, t document.DocumentType, payload document.Payload) (*document.Artifact, error) {
	html, err := r.RenderHTML(ctx, t, payload)
	if err != nil {
		return nil, err
	}

	baseName := payload.Number
	if baseName == "" {
		baseName = t.Prefix() + "-draft"
	}
	if r.pdf == nil {
		return &document.Artifact{
			Data:        []byte(html),
			ContentType: ContentTypeHTML,
			FileName:    baseName + ".html",
			PageCount:   1,
		}, nil
	}

	result, err := r.pdf.Render(ctx, &RenderRequest{
		HTML:       html,
		PaperSize:  r.paperSize,
		Margins:    r.margins,
		Title:      t.Label() + " " + payload.Number,
		FooterHTML: footerTemplate,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Document rendered",
		zap.String("document_type", t.String()),
		zap.String("number", payload.Number),
		zap.Int("pages", result.PageCount),
		zap.Duration("duration", result.RenderDuration),
	)
	return &document.Artifact{
		Data:        result.PDFData,
		ContentType: ContentTypePDF,
		FileName:    baseName + ".pdf",
		PageCount:   result.PageCount,
	}, nil
}

// footerTemplate uses Chrome's pageNumber/totalPages placeholders
const footerTemplate = `<div style="font-size:8pt;width:100%;text-align:center;color:#666;">` +
	`Seite <span class="pageNumber"></span> von <span class="totalPages"></span></div>`

var _ document.Renderer = (*DocumentRenderer)(nil)
