package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds log export configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	// MinLevel keeps chattier records on stdout only
	MinLevel zapcore.Level
	// Exporter replaces the OTLP exporter and is flushed synchronously
	Exporter sdklog.Exporter
}

// LoggerProvider owns the log export pipeline that the zap bridge writes to.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	config   LogsConfig
}

// NewLoggerProvider creates and registers the global LoggerProvider.
// Disabled export leaves the provider nil and Bridge a no-op.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{config: cfg}
	if !cfg.Enabled {
		logger.Info("Log export disabled")
		return lp, nil
	}

	processor, err := logProcessor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := serviceResource(cfg.ServiceName, "")
	if err != nil {
		return nil, err
	}

	lp.provider = sdklog.NewLoggerProvider(sdklog.WithResource(res), sdklog.WithProcessor(processor))
	global.SetLoggerProvider(lp.provider)

	logger.Info("Log export initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Stringer("min_level", cfg.MinLevel),
	)
	return lp, nil
}

func logProcessor(ctx context.Context, cfg LogsConfig) (sdklog.Processor, error) {
	if cfg.Exporter != nil {
		return sdklog.NewSimpleProcessor(cfg.Exporter), nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}
	return sdklog.NewBatchProcessor(exporter), nil
}

// Shutdown flushes pending records and stops the provider.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := lp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown logger provider: %w", err)
	}
	return nil
}

func (lp *LoggerProvider) IsEnabled() bool {
	return lp.provider != nil
}

// Bridge returns base teed into the collector for records at or above MinLevel.
// base is returned unchanged when export is disabled.
func (lp *LoggerProvider) Bridge(base *zap.Logger) *zap.Logger {
	if !lp.IsEnabled() {
		return base
	}

	exported, err := zapcore.NewIncreaseLevelCore(
		otelzap.NewCore(lp.config.ServiceName, otelzap.WithLoggerProvider(lp.provider)),
		lp.config.MinLevel,
	)
	if err != nil {
		base.Warn("Log export bridge not installed", zap.Error(err))
		return base
	}
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, exported)
	}))
}
