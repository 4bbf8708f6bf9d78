package printing

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"maps"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TemplateEngine renders HTML templates with German business formatting
type TemplateEngine struct {
	funcMap template.FuncMap
	lang    language.Tag
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithFuncs adds or overrides template functions
func WithFuncs(funcs template.FuncMap) TemplateEngineOption {
	return func(e *TemplateEngine) {
		maps.Copy(e.funcMap, funcs)
	}
}

// NewTemplateEngine creates a new template engine with default configuration
func NewTemplateEngine(opts ...TemplateEngineOption) *TemplateEngine {
	e := &TemplateEngine{lang: language.German}

	e.funcMap = template.FuncMap{
		// Money
		"formatMoney":    formatMoney,
		"formatMoneyRaw": formatMoneyRaw,

		// Numbers and dates
		"formatDecimal":  formatDecimal,
		"formatQuantity": formatQuantity,
		"formatPercent":  formatPercent,
		"formatDate":     formatDate,

		// Strings
		"upper":   e.upper,
		"title":   e.title,
		"trim":    strings.TrimSpace,
		"lines":   lines,
		"default": defaultFunc,

		// Positions are printed one-based
		"position": func(i int) int { return i + 1 },
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse parses every *.html file of fsys into one template set
func (e *TemplateEngine) Parse(fsys fs.FS, patterns ...string) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(e.funcMap).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, NewRenderError(ErrCodeTemplateFailed, "failed to parse templates", err)
	}
	return tmpl, nil
}

// Execute renders the named template of a parsed set
func (e *TemplateEngine) Execute(ctx context.Context, tmpl *template.Template, name string, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to execute template "+name, err)
	}
	return buf.String(), nil
}

// RenderString renders a template string with the provided data
func (e *TemplateEngine) RenderString(ctx context.Context, name, content string, data any) (string, error) {
	if content == "" {
		return "", NewRenderError(ErrCodeInvalidHTML, "template content is empty", nil)
	}
	tmpl, err := template.New(name).Funcs(e.funcMap).Parse(content)
	if err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to parse template", err)
	}
	return e.Execute(ctx, tmpl, name, data)
}

// GetFuncMap returns a copy of the template function map
func (e *TemplateEngine) GetFuncMap() template.FuncMap {
	funcMap := make(template.FuncMap, len(e.funcMap))
	maps.Copy(funcMap, e.funcMap)
	return funcMap
}

// =============================================================================
// Template Functions - Money and Numbers
// =============================================================================

// formatMoney formats a value as euro amount
// Example: 1234.5 -> "1.234,50 €"
func formatMoney(v any) string {
	return formatMoneyRaw(v) + " €"
}

// formatMoneyRaw formats a value with two decimals and German separators
// Example: -1234.5 -> "-1.234,50"
func formatMoneyRaw(v any) string {
	return formatDecimal(v, 2)
}

// formatDecimal formats with a fixed number of decimals
func formatDecimal(v any, places int) string {
	d := toDecimal(v).Round(int32(places))
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	intPart, fracPart, _ := strings.Cut(d.StringFixed(int32(places)), ".")
	out := sign + groupThousands(intPart)
	if fracPart != "" {
		out += "," + fracPart
	}
	return out
}

// formatQuantity drops insignificant zeros
// Example: 2.500 -> "2,5", 1000 -> "1.000"
func formatQuantity(v any) string {
	d := toDecimal(v)
	places := max(-d.Exponent(), 0)
	s := formatDecimal(d, int(places))
	if strings.Contains(s, ",") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ",")
	}
	return s
}

// formatPercent formats a rate
// Example: 0.19 -> "19 %"
func formatPercent(v any) string {
	return formatQuantity(toDecimal(v).Shift(2)) + " %"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// =============================================================================
// Template Functions - Dates and Strings
// =============================================================================

// formatDate formats as DD.MM.YYYY, empty for zero times
func formatDate(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("02.01.2006")
}

// Casers are stateful, so every call gets its own
func (e *TemplateEngine) upper(s string) string {
	return cases.Upper(e.lang).String(s)
}

func (e *TemplateEngine) title(s string) string {
	return cases.Title(e.lang).String(s)
}

func lines(s string) []string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func defaultFunc(def string, v string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// =============================================================================
// Helper Functions
// =============================================================================

func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case string:
		for _, f := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(f, val); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
