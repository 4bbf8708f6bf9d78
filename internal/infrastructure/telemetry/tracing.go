package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for business spans
const TracerName = "salesdocs"

// Span attribute keys shared by the document components
const (
	SpanAttrProjectID    = "project_id"
	SpanAttrDocumentType = "document_type"
	SpanAttrVersion      = "document_version"
	SpanAttrNumber       = "document_number"
)

type SpanOption func(*spanConfig)

type spanConfig struct {
	attrs []attribute.KeyValue
	kind  trace.SpanKind
}

func WithAttribute(key string, value any) SpanOption {
	return func(c *spanConfig) {
		c.attrs = append(c.attrs, toAttribute(key, value))
	}
}

// ForDocument tags the span with the lifecycle it works on.
func ForDocument(projectID, documentType fmt.Stringer) SpanOption {
	return func(c *spanConfig) {
		c.attrs = append(c.attrs,
			attribute.String(SpanAttrProjectID, projectID.String()),
			attribute.String(SpanAttrDocumentType, documentType.String()),
		)
	}
}

// WithSpanKind overrides the default internal kind, e.g. for outbox consumers.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(c *spanConfig) {
		c.kind = kind
	}
}

// StartSpan starts a span on the global provider. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	cfg := spanConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(cfg.kind),
		trace.WithAttributes(cfg.attrs...),
	)
}

// StartServiceSpan starts a span named "{service}.{operation}".
func StartServiceSpan(ctx context.Context, service, operation string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+operation, opts...)
}

func SetAttribute(span trace.Span, key string, value any) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// RecordError records err on the span and marks it failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds an event with alternating key/value attributes. Pairs whose
// key is not a string are dropped.
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
