package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include query variables in spans (dev only)
	SlowQueryThresh time.Duration // default: 200ms
	DBSystem        string        // default: "postgresql"

	// TracerProvider overrides the global provider, mainly for tests
	TracerProvider trace.TracerProvider
}

// DBTracingPlugin registers otelgorm and marks slow or failed statements on their spans.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs the plugin on db. It is a no-op when tracing is disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerTimingCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

type queryStartKey struct{}

func (p *DBTracingPlugin) registerTimingCallbacks(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}

	type registrar interface {
		Register(name string, fn func(*gorm.DB)) error
	}

	cb := db.Callback()
	hooks := []struct {
		callback registrar
		hook     func(*gorm.DB)
		name     string
	}{
		{cb.Create().Before("gorm:create"), before, "before_create"},
		{cb.Query().Before("gorm:query"), before, "before_query"},
		{cb.Update().Before("gorm:update"), before, "before_update"},
		{cb.Delete().Before("gorm:delete"), before, "before_delete"},
		{cb.Row().Before("gorm:row"), before, "before_row"},
		{cb.Raw().Before("gorm:raw"), before, "before_raw"},

		// otelgorm ends its span in otel:after:*, so inspect it first
		{cb.Create().After("gorm:create").Before("otel:after:create"), p.afterStatement, "after_create"},
		{cb.Query().After("gorm:query").Before("otel:after:query"), p.afterStatement, "after_query"},
		{cb.Update().After("gorm:update").Before("otel:after:update"), p.afterStatement, "after_update"},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), p.afterStatement, "after_delete"},
		{cb.Row().After("gorm:row").Before("otel:after:row"), p.afterStatement, "after_row"},
		{cb.Raw().After("gorm:raw").Before("otel:after:raw"), p.afterStatement, "after_raw"},
	}
	for _, h := range hooks {
		if err := h.callback.Register("salesdocs_timing:"+h.name, h.hook); err != nil {
			return err
		}
	}
	return nil
}

func (p *DBTracingPlugin) afterStatement(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
