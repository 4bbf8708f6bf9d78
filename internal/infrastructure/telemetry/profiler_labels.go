package telemetry

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelController   = "controller"
	ProfilingLabelRoute        = "route"
	ProfilingLabelMethod       = "method"
	ProfilingLabelDocumentType = "document_type"
	ProfilingLabelOperation    = "operation"
)

// MaxLabelValueLength caps label values before they reach Pyroscope.
const MaxLabelValueLength = 128

// HighCardinalityLabels are never attached to profiles.
// Project IDs and document numbers are unbounded.
var HighCardinalityLabels = map[string]bool{
	"project_id":      true,
	"document_id":     true,
	"document_number": true,
	"request_id":      true,
	"trace_id":        true,
	"span_id":         true,
}

// WithProfilingLabels runs fn with labels attached to its goroutine, so the
// samples taken meanwhile can be filtered by them. labels is not retained.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels returns key/value pairs sorted by key. Empty and
// high-cardinality labels are dropped and long values truncated.
func sanitizeLabels(labels map[string]string) []string {
	var pairs []string
	for _, key := range slices.Sorted(maps.Keys(labels)) {
		value := labels[key]
		if value == "" || HighCardinalityLabels[key] {
			continue
		}
		name := sanitizeLabelKey(key)
		if name == "" {
			continue
		}
		pairs = append(pairs, name, truncate(value, MaxLabelValueLength))
	}
	return pairs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sanitizeLabelKey lowercases key, turns spaces and dashes into underscores
// and drops anything else outside [a-z0-9_]
func sanitizeLabelKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ', r == '-':
			return '_'
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return -1
		}
	}, strings.ToLower(key))
}
