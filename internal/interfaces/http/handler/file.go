package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/infrastructure/logger"
	"github.com/erp/salesdocs/internal/infrastructure/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileHandler streams artifacts kept by the filesystem and memory blob stores.
// S3 deployments hand out presigned URLs and never reach this handler.
type FileHandler struct {
	BaseHandler
	reader storage.ArtifactReader
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(reader storage.ArtifactReader) *FileHandler {
	return &FileHandler{reader: reader}
}

// ServeFile streams one artifact inline or as an attachment
// GET /files/*path?mode=view|download
func (h *FileHandler) ServeFile(c *gin.Context) {
	fileID := strings.TrimPrefix(c.Param("path"), "/")
	if fileID == "" || strings.Contains(fileID, "..") || strings.Contains(fileID, `\`) {
		h.BadRequest(c, "Invalid file path")
		return
	}
	mode := document.URLMode(c.DefaultQuery("mode", string(document.URLModeView)))
	if !mode.IsValid() {
		h.BadRequest(c, "mode must be view or download")
		return
	}

	body, meta, err := h.reader.Open(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			h.NotFound(c, "File not found")
			return
		}
		h.HandleError(c, err)
		return
	}
	defer body.Close()

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", storage.ContentDisposition(fileID, mode))
	c.Header("Cache-Control", "private, max-age=3600, immutable")
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, body); err != nil {
		logger.FromGin(c).Warn("Artifact stream interrupted",
			zap.String("file_id", fileID),
			zap.Error(err),
		)
	}
}
