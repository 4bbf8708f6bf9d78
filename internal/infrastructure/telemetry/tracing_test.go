package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "document.render")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "document.render", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
}

func TestStartServiceSpan_WithAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "document_lifecycle", "Finalize",
		telemetry.WithAttribute(telemetry.SpanAttrProjectID, "p-1"),
		telemetry.WithAttribute(telemetry.SpanAttrDocumentType, document.TypeInvoice),
		telemetry.WithAttribute(telemetry.SpanAttrVersion, 2),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "document_lifecycle.Finalize", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "p-1", attrs[telemetry.SpanAttrProjectID])
	assert.Equal(t, "invoice", attrs[telemetry.SpanAttrDocumentType])
	assert.Equal(t, "2", attrs[telemetry.SpanAttrVersion])
}

func TestSetAttribute(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "document.commit")
	telemetry.SetAttribute(span, telemetry.SpanAttrNumber, "RE-2026-00001")
	telemetry.SetAttribute(span, "fallback", true)
	telemetry.SetAttribute(nil, "ignored", 1)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, "RE-2026-00001", attrs[telemetry.SpanAttrNumber])
	assert.Equal(t, "true", attrs["fallback"])
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "document.commit")
	telemetry.RecordError(span, errors.New("unique violation"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "unique violation", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecordError_NilIsIgnored(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "document.commit")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(nil, errors.New("no span"))
	span.End()

	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "document.finalize")
	telemetry.AddEvent(span, "number.fallback", "document_type", "quote", 42, "skipped", "reason", "timeout")
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "number.fallback", events[0].Name)
	attrs := attrMap(events[0].Attributes)
	assert.Equal(t, "quote", attrs["document_type"])
	assert.Equal(t, "timeout", attrs["reason"])
	assert.Len(t, attrs, 2)
}

func TestForDocument_WithSpanKind(t *testing.T) {
	sr := setupTestTracer(t)
	projectID := uuid.MustParse("0f9f6d0e-5d39-4b8e-9d0c-6b1f1c6e2a11")

	_, span := telemetry.StartSpan(context.Background(), "outbox.deliver",
		telemetry.ForDocument(projectID, document.TypeDeliveryNote),
		telemetry.WithSpanKind(trace.SpanKindConsumer),
	)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, trace.SpanKindConsumer, ended.SpanKind())
	attrs := attrMap(ended.Attributes())
	assert.Equal(t, projectID.String(), attrs[telemetry.SpanAttrProjectID])
	assert.Equal(t, "delivery_note", attrs[telemetry.SpanAttrDocumentType])
}
