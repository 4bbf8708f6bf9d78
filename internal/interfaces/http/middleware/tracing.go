// Package middleware provides HTTP middleware for the document service.
package middleware

import (
	"net/http"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength is the maximum length accepted for inbound request IDs
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "salesdocs",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns the otelgin middleware for the service.
// Span names follow "METHOD route", e.g. "POST /api/v1/projects/:project_id/documents/:type/finalize".
// The span ends when otelgin returns, so attributes are added by
// TracingAttributeInjector further down the chain.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector tags the current span with the request ID and, on
// document routes, the project ID and document type of the key.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
	}
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := getRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if projectID := getProjectID(c); projectID != "" {
		span.SetAttributes(attribute.String("document.project_id", projectID))
	}
	if docType := getDocumentType(c); docType != "" {
		span.SetAttributes(attribute.String("document.type", docType))
	}
}

// getRequestID retrieves the request ID from the gin context or header.
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	headerID := c.GetHeader(RequestIDHeader)
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// getProjectID returns the project path parameter when it is a UUID
func getProjectID(c *gin.Context) string {
	raw := c.Param("project_id")
	if raw == "" {
		return ""
	}
	if _, err := uuid.Parse(raw); err != nil {
		return ""
	}
	return raw
}

// getDocumentType returns the type path parameter when it names a known type
func getDocumentType(c *gin.Context) string {
	t := document.DocumentType(c.Param("type"))
	if !t.IsValid() {
		return ""
	}
	return t.String()
}

// SpanErrorMarker marks spans of 4xx/5xx responses with error status.
// Place it after Tracing in the chain.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, statusDescription(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
		if len(c.Errors) > 0 {
			span.SetAttributes(attribute.String("error.message", c.Errors.Last().Error()))
		}
	}
}

func statusDescription(status int) string {
	switch {
	case status == http.StatusConflict:
		return "Conflict"
	case status == http.StatusNotFound:
		return "Not Found"
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		return "Dependency Failure"
	case status >= http.StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "Client Error"
	}
}
