package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestFromContext(t *testing.T) {
	t.Run("returns nop logger when absent", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
		l.Info("dropped")
	})

	t.Run("returns stored logger", func(t *testing.T) {
		l, _ := newObserved()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})
}

func TestWithRequestID(t *testing.T) {
	base, recorded := newObserved()

	ctx, l := WithRequestID(context.Background(), base, "req-42")
	assert.Equal(t, "req-42", GetRequestID(ctx))
	assert.Same(t, l, FromContext(ctx))

	l.Info("hello")
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "req-42", recorded.All()[0].ContextMap()["request_id"])
}

func TestWithDocumentKey(t *testing.T) {
	base, recorded := newObserved()

	ctx, l := WithDocumentKey(context.Background(), base, "7d1f", "invoice")
	assert.Equal(t, "7d1f", GetProjectID(ctx))
	assert.Equal(t, "invoice", GetDocumentType(ctx))

	l.Info("finalizing")
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "7d1f", fields["project_id"])
	assert.Equal(t, "invoice", fields["document_type"])
}

func TestContextGettersWithoutValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetProjectID(ctx))
	assert.Empty(t, GetDocumentType(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
	assert.Empty(t, Fields(ctx))
}

func TestTraceCorrelation(t *testing.T) {
	ctx := spanContext(t)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx))
	assert.Equal(t, "00f067aa0ba902b7", GetSpanID(ctx))
	assert.Len(t, Fields(ctx), 2)
}

func TestContextLogger(t *testing.T) {
	base, recorded := newObserved()
	ctx := WithContext(spanContext(t), base)

	L(ctx).With(zap.String("number", "RE-2026-00001")).Info("sealed")
	L(ctx).Warn("fallback number")
	L(ctx).Debug("debug")
	L(ctx).Error("failed")

	entries := recorded.All()
	require.Len(t, entries, 4)
	first := entries[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", first["trace_id"])
	assert.Equal(t, "RE-2026-00001", first["number"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestWithLogger(t *testing.T) {
	base, recorded := newObserved()
	WithLogger(context.Background(), base).Zap().Info("direct")
	assert.Equal(t, 1, recorded.Len())

	// a nil logger must not panic
	WithLogger(context.Background(), nil).Info("nowhere")
	WithLogger(context.Background(), nil).With(zap.Int("n", 1)).Info("nowhere")
}
