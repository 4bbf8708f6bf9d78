// Package telemetry provides OpenTelemetry tracing, metrics, log export and
// continuous profiling for the document service.
package telemetry

import (
	"context"
	"fmt"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const defaultServiceVersion = "dev"

// TracingConfig holds span export configuration.
type TracingConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
	// Exporter replaces the batched OTLP exporter and is flushed synchronously
	Exporter sdktrace.SpanExporter
}

// TracerProvider owns the span pipeline behind the global tracer.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
}

// NewTracerProvider creates and registers the global TracerProvider and the
// W3C trace context propagator. Disabled tracing keeps the global no-op provider.
func NewTracerProvider(ctx context.Context, cfg TracingConfig, logger *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return tp, nil
	}

	export, err := spanExport(ctx, cfg)
	if err != nil {
		return nil, err
	}
	version := cfg.ServiceVersion
	if version == "" {
		version = defaultServiceVersion
	}
	res, err := serviceResource(cfg.ServiceName, version)
	if err != nil {
		return nil, err
	}

	tp.provider = sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(tp.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
		zap.String("service_version", version),
	)
	return tp, nil
}

func spanExport(ctx context.Context, cfg TracingConfig) (sdktrace.TracerProviderOption, error) {
	if cfg.Exporter != nil {
		return sdktrace.WithSyncer(cfg.Exporter), nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return sdktrace.WithBatcher(exporter), nil
}

// samplerFor keeps every trace at ratio 1 and none at 0. Ratios in between
// follow the caller's sampling decision when there is one.
func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Shutdown flushes pending spans and stops the provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := tp.provider.Shutdown(ctx); err != nil {
		tp.logger.Error("Tracer provider shutdown failed", zap.Error(err))
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	tp.logger.Info("Tracing shut down")
	return nil
}

func (tp *TracerProvider) IsEnabled() bool {
	return tp.provider != nil
}

// EnableSpanProfiles wraps the global provider so CPU profiles carry the
// span ID of the work they sampled. It needs a running Profiler to be useful.
func (tp *TracerProvider) EnableSpanProfiles() {
	if tp.provider == nil {
		return
	}
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp.provider))
	tp.logger.Info("Span profiles enabled")
}
