package printing

import (
	"context"
	"strings"
	"time"
)

// PaperSize is a supported output format
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"
	PaperSizeA5     PaperSize = "A5"
	PaperSizeLetter PaperSize = "LETTER"
)

// ParsePaperSize accepts the configured name case-insensitively, defaulting to A4
func ParsePaperSize(s string) (PaperSize, bool) {
	p := PaperSize(strings.ToUpper(strings.TrimSpace(s)))
	if p == "" {
		return PaperSizeA4, true
	}
	return p, p.IsValid()
}

// IsValid checks if the paper size is known
func (p PaperSize) IsValid() bool {
	return p == PaperSizeA4 || p == PaperSizeA5 || p == PaperSizeLetter
}

// Dimensions returns width and height in millimeters
func (p PaperSize) Dimensions() (width, height float64) {
	switch p {
	case PaperSizeA5:
		return 148, 210
	case PaperSizeLetter:
		return 215.9, 279.4
	default:
		return 210, 297
	}
}

// Margins in millimeters
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// DefaultMargins follow DIN 5008 closely enough for business letters
func DefaultMargins() Margins {
	return Margins{Top: 20, Right: 20, Bottom: 20, Left: 25}
}

// RenderRequest contains the parameters for rendering HTML to PDF
type RenderRequest struct {
	HTML      string
	PaperSize PaperSize
	Margins   Margins
	// Title for the PDF document metadata
	Title string
	// FooterHTML is printed on every page (optional)
	FooterHTML string
	// Timeout overrides the default rendering timeout
	Timeout time.Duration
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	PDFData        []byte
	PageCount      int
	RenderDuration time.Duration
}

// PDFRenderer defines the interface for rendering HTML to PDF
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	// Close releases any resources held by the renderer
	Close() error
}

// RenderError represents an error during rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeTemplateFailed   = "TEMPLATE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
