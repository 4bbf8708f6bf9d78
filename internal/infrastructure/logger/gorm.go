package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/salesdocs/internal/infrastructure/config"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowSQL      = 200 * time.Millisecond
	defaultMaxSQLLength = 2048
)

// SQLLogger writes GORM statements to zap, tagged with the request and the
// document key they were issued for. Lookups that find no row are normal for
// keys without versions and are never logged as errors.
type SQLLogger struct {
	logger       *zap.Logger
	level        gormlogger.LogLevel
	slow         time.Duration
	maxSQLLength int
}

type SQLLoggerOption func(*SQLLogger)

// WithSlowThreshold logs statements running longer than d as slow. Zero disables it.
func WithSlowThreshold(d time.Duration) SQLLoggerOption {
	return func(l *SQLLogger) {
		l.slow = d
	}
}

// WithMaxSQLLength truncates logged statements. Snapshot inserts carry the
// whole payload JSON inline.
func WithMaxSQLLength(n int) SQLLoggerOption {
	return func(l *SQLLogger) {
		l.maxSQLLength = n
	}
}

func NewSQLLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...SQLLoggerOption) *SQLLogger {
	l := &SQLLogger{
		logger:       zapLogger.Named("sql"),
		level:        level,
		slow:         defaultSlowSQL,
		maxSQLLength: defaultMaxSQLLength,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewDatabaseLogger builds the SQL logger from the database config section
func NewDatabaseLogger(zapLogger *zap.Logger, cfg *config.DatabaseConfig) *SQLLogger {
	var opts []SQLLoggerOption
	if cfg.SlowThreshold > 0 {
		opts = append(opts, WithSlowThreshold(cfg.SlowThreshold))
	}
	return NewSQLLogger(zapLogger, ParseSQLLogLevel(cfg.LogLevel), opts...)
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		WithLogger(ctx, l.logger).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		WithLogger(ctx, l.logger).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		WithLogger(ctx, l.logger).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs one executed statement. Failures log at error, slow statements
// at warn and everything else at debug when the level is info.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if err != nil && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.slow > 0 && elapsed > l.slow
	switch {
	case err != nil && l.level >= gormlogger.Error:
	case slow && l.level >= gormlogger.Warn:
	case l.level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	fields := append(l.statementFields(ctx, sql, rows), zap.Duration("elapsed", elapsed))
	log := WithLogger(ctx, l.logger)

	switch {
	case err != nil:
		log.Error("sql failed", append(fields, zap.Error(err))...)
	case slow:
		log.Warn("slow sql", append(fields, zap.Duration("threshold", l.slow))...)
	default:
		log.Debug("sql", fields...)
	}
}

func (l *SQLLogger) statementFields(ctx context.Context, sql string, rows int64) []zap.Field {
	fields := []zap.Field{
		zap.String("operation", statementOperation(sql)),
		zap.String("sql", truncate(sql, l.maxSQLLength)),
		zap.Int64("rows", rows),
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if project := GetProjectID(ctx); project != "" {
		fields = append(fields,
			zap.String("project_id", project),
			zap.String("document_type", GetDocumentType(ctx)),
		)
	}
	return fields
}

// statementOperation returns the leading SQL keyword, upper-cased
func statementOperation(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n"); i > 0 {
		sql = sql[:i]
	}
	return strings.ToUpper(sql)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseSQLLogLevel maps database.log_level to a GORM level. Unknown values mean warn.
func ParseSQLLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
