package middleware

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/erp/salesdocs/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are exact paths served without labels
	SkipPaths []string
	// SkipPathPrefixes are path prefixes served without labels
	SkipPathPrefixes []string
}

func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health"},
		SkipPathPrefixes: []string{"/swagger"},
	}
}

func (cfg ProfilingConfig) skips(path string) bool {
	return slices.Contains(cfg.SkipPaths, path) ||
		slices.ContainsFunc(cfg.SkipPathPrefixes, func(p string) bool { return strings.HasPrefix(path, p) })
}

// Profiling labels the request goroutine so CPU and allocation profiles
// can be sliced by route, controller and document type.
func Profiling(cfg ProfilingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || cfg.skips(c.Request.URL.Path) {
			c.Next()
			return
		}

		route := c.FullPath()
		labels := map[string]string{
			telemetry.ProfilingLabelMethod:       c.Request.Method,
			telemetry.ProfilingLabelRoute:        route,
			telemetry.ProfilingLabelController:   controllerFromRoute(route),
			telemetry.ProfilingLabelDocumentType: getDocumentType(c),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

var apiVersionSegment = regexp.MustCompile(`^[vV][0-9]+$`)

// controllerFromRoute returns the first static segment after /api/vN:
// "/api/v1/projects/:project_id/documents/:type" gives "projects".
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		switch {
		case part == "", part == "api", apiVersionSegment.MatchString(part):
		case strings.HasPrefix(part, ":"), strings.HasPrefix(part, "*"):
		default:
			return part
		}
	}
	return ""
}
