package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, body)
	}
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Equal(t, "/api/v1", r.BasePath())
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())

	engine := gin.New()
	NewRouter(engine, WithAPIVersion("v2")).Register(NewDomainGroup("system", "/system").GET("/info", ok("info"))).Setup()
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v2/system/info").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/system/info").Code)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	core, logs := observer.New(zap.DebugLevel)
	r := NewRouter(engine, WithLogger(zap.New(core)))

	group := NewDomainGroup("system", "/system")
	group.GET("/ping", ok("pong"))
	r.Register(group).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/system/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	registered := logs.FilterMessage("Route registered").All()
	if assert.Len(t, registered, 1) {
		fields := registered[0].ContextMap()
		assert.Equal(t, "system", fields["group"])
		assert.Equal(t, "/api/v1/system/ping", fields["path"])
	}
}

func TestDomainGroup_DeclarationOrder(t *testing.T) {
	g := NewDomainGroup("outbox", "/system/outbox")
	g.GET("/stats", ok("stats"))
	g.Group("entries", "/entries/:id").POST("/retry", ok("retry"))
	g.GET("/dead-letters", ok("dead"))

	assert.Equal(t, []RouteInfo{
		{http.MethodGet, "/system/outbox/stats"},
		{http.MethodPost, "/system/outbox/entries/:id/retry"},
		{http.MethodGet, "/system/outbox/dead-letters"},
	}, g.Routes())
}

func TestDomainGroup_MiddlewareReachesSubgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("projects", "/projects/:project_id")
	g.Use(func(c *gin.Context) {
		c.Header("X-Project", c.Param("project_id"))
		c.Next()
	})
	g.Group("documents", "/documents/:type").GET("", ok("doc"))
	NewRouter(engine).Register(g).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/projects/p7/documents/quote")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p7", w.Header().Get("X-Project"))
}

func TestDomainGroup_DocumentRoutes(t *testing.T) {
	engine := gin.New()
	projects := NewDomainGroup("projects", "/projects/:project_id")
	projects.GET("/status", ok("status"))

	docs := projects.Group("documents", "/documents/:type")
	docs.GET("", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("project_id")+"/"+c.Param("type"))
	})
	docs.PUT("/draft", ok("draft"))
	docs.POST("/edit-mode", ok("enter"))
	docs.DELETE("/edit-mode", ok("cancel"))
	docs.GET("/versions/:version/artifact", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("version"))
	})

	NewRouter(engine).Register(projects).Setup()

	tests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/v1/projects/p1/status", "status"},
		{http.MethodGet, "/api/v1/projects/p1/documents/quote", "p1/quote"},
		{http.MethodPut, "/api/v1/projects/p1/documents/quote/draft", "draft"},
		{http.MethodPost, "/api/v1/projects/p1/documents/invoice/edit-mode", "enter"},
		{http.MethodDelete, "/api/v1/projects/p1/documents/invoice/edit-mode", "cancel"},
		{http.MethodGet, "/api/v1/projects/p1/documents/invoice/versions/3/artifact", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}

	assert.Equal(t, []RouteInfo{
		{http.MethodGet, "/projects/:project_id/status"},
		{http.MethodGet, "/projects/:project_id/documents/:type"},
		{http.MethodPut, "/projects/:project_id/documents/:type/draft"},
		{http.MethodPost, "/projects/:project_id/documents/:type/edit-mode"},
		{http.MethodDelete, "/projects/:project_id/documents/:type/edit-mode"},
		{http.MethodGet, "/projects/:project_id/documents/:type/versions/:version/artifact"},
	}, projects.Routes())
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("files", "/files")
	g.Use(func(c *gin.Context) {
		c.Header("X-Test-Middleware", "applied")
		c.Next()
	})
	g.GET("/*path", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("path"))
	})
	g.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodGet, "/api/v1/files/documents/2026/a/RE-2026-00001.pdf")
	assert.Equal(t, "applied", w.Header().Get("X-Test-Middleware"))
	assert.Equal(t, "/documents/2026/a/RE-2026-00001.pdf", w.Body.String())
}

func TestDomainGroup_Accessors(t *testing.T) {
	g := NewDomainGroup("documents", "/documents")
	assert.Equal(t, "documents", g.Name())
	assert.Equal(t, "/documents", g.Prefix())
	assert.Empty(t, g.Routes())
}

func TestJoinPaths(t *testing.T) {
	assert.Equal(t, "/a", joinPaths("/a", ""))
	assert.Equal(t, "/a/b", joinPaths("/a", "/b"))
	assert.Equal(t, "/a/b/", joinPaths("/a", "/b/"))
	assert.Equal(t, "/a/*path", joinPaths("/a", "/*path"))
}
