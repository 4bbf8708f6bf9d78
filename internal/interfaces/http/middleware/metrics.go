package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/erp/salesdocs/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMeterName names the meter the request instruments live on
const HTTPMeterName = "http.server"

const unmatchedRoute = "unknown"

// responseSizeBuckets run from a bare envelope to a rendered PDF inlined in JSON
var responseSizeBuckets = []float64{100, 500, 1e3, 5e3, 1e4, 5e4, 1e5, 5e5, 1e6}

type httpInstruments struct {
	requests *telemetry.Counter
	latency  *telemetry.Histogram
	size     *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		m    httpInstruments
		errs [4]error
	)
	m.requests, errs[0] = telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}")
	m.latency, errs[1] = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	m.size, errs[2] = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size in bytes",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	})
	m.inFlight, errs[3] = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of HTTP requests being served"),
		metric.WithUnit("{request}"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

// HTTPMetrics counts requests and records latency, response size and
// requests in flight. Attributes carry the route pattern, never the raw
// path, plus the document type on document routes. Without a usable meter
// the middleware does nothing.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	passThrough := func(c *gin.Context) { c.Next() }
	if meter == nil {
		return passThrough
	}
	m, err := newHTTPInstruments(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		m.inFlight.Add(ctx, 1)
		defer m.inFlight.Add(ctx, -1)

		c.Next()
		m.observe(ctx, c, time.Since(start))
	}
}

func (m *httpInstruments) observe(ctx context.Context, c *gin.Context, elapsed time.Duration) {
	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}
	attrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}
	if docType := getDocumentType(c); docType != "" {
		attrs = append(attrs, telemetry.AttrDocumentType.String(docType))
	}

	m.latency.RecordDuration(ctx, elapsed, attrs...)
	if n := c.Writer.Size(); n > 0 {
		m.size.Record(ctx, float64(n), attrs...)
	}
	m.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
}
