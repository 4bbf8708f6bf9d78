package logger

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ginLoggerKey    = "logger"
	accessLogMsg    = "HTTP Request"
	requestIDGinKey = "request_id"
)

type accessLogConfig struct {
	quietPaths []string
	slow       time.Duration
}

type AccessLogOption func(*accessLogConfig)

// WithQuietPaths logs successful requests to these exact paths at debug
// level. Health probes are the usual candidates.
func WithQuietPaths(paths ...string) AccessLogOption {
	return func(c *accessLogConfig) {
		c.quietPaths = append(c.quietPaths, paths...)
	}
}

// WithSlowRequestThreshold raises requests slower than d to warn level.
// Rendering a document is the common slow path.
func WithSlowRequestThreshold(d time.Duration) AccessLogOption {
	return func(c *accessLogConfig) {
		c.slow = d
	}
}

// AccessLog logs every HTTP request and installs a request-scoped logger in
// the gin context and in the request context, so code behind the handler
// can use L(ctx). Document routes add the project and document type.
func AccessLog(logger *zap.Logger, opts ...AccessLogOption) gin.HandlerFunc {
	var cfg accessLogConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *gin.Context) {
		start := time.Now()
		query := c.Request.URL.RawQuery

		reqLogger := logger.With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		ctx := c.Request.Context()
		if requestID := c.GetString(requestIDGinKey); requestID != "" {
			ctx, reqLogger = WithRequestID(ctx, reqLogger, requestID)
		}
		if projectID, docType := c.Param("project_id"), c.Param("type"); projectID != "" && docType != "" {
			ctx, reqLogger = WithDocumentKey(ctx, reqLogger, projectID, docType)
		}
		c.Request = c.Request.WithContext(WithContext(ctx, reqLogger))
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		fields := append([]zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}, Fields(c.Request.Context())...)
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		slow := cfg.slow > 0 && latency > cfg.slow
		if slow {
			fields = append(fields, zap.Bool("slow", true))
		}
		level := accessLevel(status, slow, slices.Contains(cfg.quietPaths, c.Request.URL.Path))
		if ce := reqLogger.Check(level, accessLogMsg); ce != nil {
			ce.Write(fields...)
		}
	}
}

func accessLevel(status int, slow, quiet bool) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest, slow:
		return zapcore.WarnLevel
	case quiet:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Recovery turns a handler panic into a 500 envelope and logs the stack.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			logger.Error("Panic recovered",
				zap.String("request_id", c.GetString(requestIDGinKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("error", err),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INTERNAL_ERROR",
					"message": "An unexpected error occurred",
				},
			})
		}()
		c.Next()
	}
}

// FromGin returns the request-scoped logger installed by AccessLog, or a
// no-op logger outside it.
func FromGin(c *gin.Context) *zap.Logger {
	if l, ok := c.Value(ginLoggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
