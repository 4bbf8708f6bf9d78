package handler

import (
	"context"

	docapp "github.com/erp/salesdocs/internal/application/document"
	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentService is the lifecycle API the document handler drives
type DocumentService interface {
	View(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*docapp.SessionView, error)
	Edit(ctx context.Context, projectID uuid.UUID, t document.DocumentType, payload document.Payload) (*docapp.SessionView, error)
	Finalize(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*docapp.CommitResult, error)
	EnterEditMode(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*docapp.SessionView, error)
	CancelEdit(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*docapp.SessionView, error)
	SaveNewVersion(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*docapp.CommitResult, error)
	GetCurrent(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*document.StoredDocument, error)
	History(ctx context.Context, projectID uuid.UUID, t document.DocumentType) ([]document.HistoryEntry, error)
	Inherit(ctx context.Context, projectID uuid.UUID, t document.DocumentType) ([]document.LineItem, error)
	ArtifactURL(ctx context.Context, projectID uuid.UUID, t document.DocumentType, version int, mode document.URLMode) (string, error)
	ProjectStatus(ctx context.Context, projectID uuid.UUID) (document.ProjectStatus, error)
	CloseSession(projectID uuid.UUID, t document.DocumentType)
}

// DocumentHandler handles the document lifecycle endpoints of a project
type DocumentHandler struct {
	BaseHandler
	service DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// bindKey parses the project and type path parameters, writing a 400 on failure
func (h *DocumentHandler) bindKey(c *gin.Context) (uuid.UUID, document.DocumentType, bool) {
	var uri DocumentKeyURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, "", false
	}
	return uuid.MustParse(uri.ProjectID), document.DocumentType(uri.Type), true
}

// GetDocument returns the editing state of a document, opening its session
//
// @ID           getDocument
// @Summary      Open a document session
// @Description  Returns the editing state of a document and opens its session
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      200 {object} dto.Response{data=SessionViewResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	view, err := h.service.View(c.Request.Context(), projectID, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionViewResponse(view))
}

// SaveDraft replaces the working payload; the draft is persisted in the background
//
// @ID           saveDraft
// @Summary      Save the working draft
// @Description  Replaces the working payload. The draft is persisted after the autosave delay
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Param        request body SaveDraftRequest true "Draft payload"
// @Success      200 {object} dto.Response{data=SessionViewResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/draft [put]
func (h *DocumentHandler) SaveDraft(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	view, err := h.service.Edit(c.Request.Context(), projectID, t, req.ToPayload())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionViewResponse(view))
}

// Finalize commits version 1 of the document
//
// @ID           finalize
// @Summary      Finalize a document
// @Description  Numbers the document, renders its artifact and commits version 1
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      200 {object} dto.Response{data=CommitResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/finalize [post]
func (h *DocumentHandler) Finalize(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	result, err := h.service.Finalize(c.Request.Context(), projectID, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toCommitResponse(result))
}

// EnterEditMode starts a revision of a finalized document
//
// @ID           enterEditMode
// @Summary      Start a revision
// @Description  Starts a revision of a finalized document. Sealed types refuse
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      200 {object} dto.Response{data=SessionViewResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/edit-mode [post]
func (h *DocumentHandler) EnterEditMode(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	view, err := h.service.EnterEditMode(c.Request.Context(), projectID, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionViewResponse(view))
}

// CancelEdit discards a revision and restores the current version
//
// @ID           cancelEdit
// @Summary      Cancel a revision
// @Description  Discards the revision and restores the current version
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      200 {object} dto.Response{data=SessionViewResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/edit-mode [delete]
func (h *DocumentHandler) CancelEdit(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	view, err := h.service.CancelEdit(c.Request.Context(), projectID, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionViewResponse(view))
}

// CloseSession ends the editing session of a document
//
// @ID           closeSession
// @Summary      Close a document session
// @Description  Tears down the session and disarms its autosave. Edits not yet autosaved are dropped; a revision not saved as a new version is discarded. The next request opens a fresh session from the stored state.
// @Tags         documents
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      204
// @Failure      400 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/session [delete]
func (h *DocumentHandler) CloseSession(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	h.service.CloseSession(projectID, t)
	h.NoContent(c)
}

// SaveNewVersion commits the revision as the next version
//
// @ID           saveNewVersion
// @Summary      Save a new version
// @Description  Commits the revision as the next version under the same number
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      200 {object} dto.Response{data=CommitResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/versions [post]
func (h *DocumentHandler) SaveNewVersion(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	result, err := h.service.SaveNewVersion(c.Request.Context(), projectID, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toCommitResponse(result))
}

// GetCurrent returns the current stored version
//
// @ID           getCurrent
// @Summary      Get the current version
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      200 {object} dto.Response{data=StoredDocumentResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/current [get]
func (h *DocumentHandler) GetCurrent(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	doc, err := h.service.GetCurrent(c.Request.Context(), projectID, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toStoredDocumentResponse(doc))
}

// History lists every stored version, newest first
//
// @ID           history
// @Summary      List stored versions
// @Description  Lists every stored version, newest first
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      200 {object} dto.Response{data=[]document.HistoryEntry}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/history [get]
func (h *DocumentHandler) History(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), projectID, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(c, entries)
}

// InheritedItems previews the line items taken over from the preceding stage
//
// @ID           inheritedItems
// @Summary      Preview inherited line items
// @Description  Returns the line items taken over from the preceding stage
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Success      200 {object} dto.Response{data=[]document.LineItem}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/inherited-items [get]
func (h *DocumentHandler) InheritedItems(c *gin.Context) {
	projectID, t, ok := h.bindKey(c)
	if !ok {
		return
	}
	items, err := h.service.Inherit(c.Request.Context(), projectID, t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(c, items)
}

// ArtifactURL returns a view or download URL for a stored version; version 0
// selects the current one
//
// @ID           artifactURL
// @Summary      Get an artifact URL
// @Description  Returns a view or download URL for a stored version. Version 0 selects the current one
// @Tags         documents
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Param        type path string true "Document type" Enums(quote, order_confirmation, delivery_note, invoice, credit_note)
// @Param        version path integer true "Version, 0 for current"
// @Param        mode query string false "URL mode" Enums(view, download)
// @Success      200 {object} dto.Response{data=ArtifactURLResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /projects/{project_id}/documents/{type}/versions/{version}/artifact [get]
func (h *DocumentHandler) ArtifactURL(c *gin.Context) {
	var uri ArtifactURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	var query ArtifactQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	mode := document.URLModeView
	if query.Mode != "" {
		mode = document.URLMode(query.Mode)
	}

	url, err := h.service.ArtifactURL(c.Request.Context(),
		uuid.MustParse(uri.ProjectID), document.DocumentType(uri.Type), uri.Version, mode)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ArtifactURLResponse{URL: url, Mode: mode, Version: uri.Version})
}

// ProjectStatus returns the status derived from the furthest current stage
//
// @ID           projectStatus
// @Summary      Get the project status
// @Description  Returns the status derived from the furthest stage with a current document
// @Tags         projects
// @Produce      json
// @Param        project_id path string true "Project ID"
// @Success      200 {object} dto.Response{data=ProjectStatusResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /projects/{project_id}/status [get]
func (h *DocumentHandler) ProjectStatus(c *gin.Context) {
	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	projectID := uuid.MustParse(uri.ProjectID)
	status, err := h.service.ProjectStatus(c.Request.Context(), projectID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ProjectStatusResponse{ProjectID: projectID, Status: status})
}
