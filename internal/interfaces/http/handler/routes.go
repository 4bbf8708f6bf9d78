package handler

import (
	"github.com/erp/salesdocs/internal/interfaces/http/router"
)

// DocumentRoutes creates the route group for the project document lifecycle
func DocumentRoutes(h *DocumentHandler) *router.DomainGroup {
	projects := router.NewDomainGroup("projects", "/projects/:project_id")
	projects.GET("/status", h.ProjectStatus)

	docs := projects.Group("documents", "/documents/:type")

	// Session
	docs.GET("", h.GetDocument)
	docs.PUT("/draft", h.SaveDraft)
	docs.POST("/finalize", h.Finalize)
	docs.POST("/edit-mode", h.EnterEditMode)
	docs.DELETE("/edit-mode", h.CancelEdit)
	docs.POST("/versions", h.SaveNewVersion)
	docs.DELETE("/session", h.CloseSession)

	// Stored versions
	docs.GET("/current", h.GetCurrent)
	docs.GET("/history", h.History)
	docs.GET("/inherited-items", h.InheritedItems)
	docs.GET("/versions/:version/artifact", h.ArtifactURL)

	return projects
}

// FileRoutes serves artifacts of the local blob stores
func FileRoutes(h *FileHandler) *router.DomainGroup {
	files := router.NewDomainGroup("files", "/files")
	files.GET("/*path", h.ServeFile)
	return files
}

// SystemRoutes exposes build information below the API prefix
func SystemRoutes(h *SystemHandler) *router.DomainGroup {
	system := router.NewDomainGroup("system", "/system")
	system.GET("/info", h.GetSystemInfo)
	return system
}

// OutboxRoutes exposes the event outbox below the system group
func OutboxRoutes(h *OutboxHandler) *router.DomainGroup {
	outbox := router.NewDomainGroup("outbox", "/system/outbox")
	outbox.GET("/stats", h.GetStats)
	outbox.GET("/dead-letters", h.GetDeadLetterEntries)
	outbox.POST("/dead-letters/retry", h.RetryAllDeadEntries)
	outbox.GET("/entries/:id", h.GetEntry)
	outbox.POST("/entries/:id/retry", h.RetryDeadEntry)
	return outbox
}
