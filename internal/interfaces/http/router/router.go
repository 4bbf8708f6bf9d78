// Package router mounts the resource route groups below the versioned API prefix.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultAPIVersion = "v1"

// RouteRegistrar is anything that can add its routes to a gin group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them on the engine in Setup
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	logger     *zap.Logger
}

type RouterOption func(*Router)

// WithAPIVersion replaces the "v1" segment of the API prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithLogger logs the mounted routes at debug level
func WithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: defaultAPIVersion, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues registrar for Setup. Registrars mount in call order.
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

func (r *Router) BasePath() string {
	return path.Join("/api", r.apiVersion)
}

// Setup mounts every registrar below BasePath
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath())
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
		if group, ok := registrar.(*DomainGroup); ok {
			for _, info := range group.Routes() {
				r.logger.Debug("Route registered",
					zap.String("group", group.Name()),
					zap.String("method", info.Method),
					zap.String("path", joinPaths(r.BasePath(), info.Path)),
				)
			}
		}
	}
}

// RouteInfo is one route of a DomainGroup, its path relative to the
// registrar the group is mounted on
type RouteInfo struct {
	Method string
	Path   string
}

// DomainGroup declares the routes of one resource below a shared prefix.
// Nothing reaches gin until RegisterRoutes, so a group can be built and
// inspected without an engine.
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	entries    []groupEntry
}

// groupEntry is either a route or a nested group, kept in declaration order
type groupEntry struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
	child    *DomainGroup
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

func (dg *DomainGroup) Name() string   { return dg.name }
func (dg *DomainGroup) Prefix() string { return dg.prefix }

// Use adds middleware run before every route of the group and its subgroups
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

func (dg *DomainGroup) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.entries = append(dg.entries, groupEntry{method: method, path: relativePath, handlers: handlers})
	return dg
}

func (dg *DomainGroup) GET(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, relativePath, handlers...)
}

func (dg *DomainGroup) POST(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, relativePath, handlers...)
}

func (dg *DomainGroup) PUT(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, relativePath, handlers...)
}

func (dg *DomainGroup) DELETE(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, relativePath, handlers...)
}

// Group nests a new group below this one and returns it
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	dg.entries = append(dg.entries, groupEntry{child: child})
	return child
}

func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix, dg.middleware...)
	for _, e := range dg.entries {
		if e.child != nil {
			e.child.RegisterRoutes(group)
			continue
		}
		group.Handle(e.method, e.path, e.handlers...)
	}
}

// Routes flattens the group, subgroups included, in declaration order
func (dg *DomainGroup) Routes() []RouteInfo {
	var out []RouteInfo
	for _, e := range dg.entries {
		if e.child == nil {
			out = append(out, RouteInfo{Method: e.method, Path: joinPaths(dg.prefix, e.path)})
			continue
		}
		for _, info := range e.child.Routes() {
			out = append(out, RouteInfo{Method: info.Method, Path: joinPaths(dg.prefix, info.Path)})
		}
	}
	return out
}

// joinPaths joins like gin does: a trailing slash on rel survives
func joinPaths(base, rel string) string {
	if rel == "" {
		return base
	}
	joined := path.Join(base, rel)
	if rel[len(rel)-1] == '/' && joined[len(joined)-1] != '/' {
		return joined + "/"
	}
	return joined
}
