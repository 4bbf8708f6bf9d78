package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/logger"
	"github.com/erp/salesdocs/internal/interfaces/http/dto"
	"github.com/erp/salesdocs/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusClientClosedRequest is reported when the caller went away before
// the operation finished
const statusClientClosedRequest = 499

// BaseHandler writes the response envelope for the resource handlers
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// List writes items with their count
func List[T any](c *gin.Context, items []T) {
	c.JSON(http.StatusOK, dto.NewListResponse(items))
}

// Error writes an error envelope carrying the request ID
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// apiError is the envelope an error is reported as
type apiError struct {
	status  int
	code    string
	message string
}

// resolveError maps domain errors to their API code and status. Context
// errors get their own statuses; anything else is an internal error
// reported without detail.
func resolveError(err error) apiError {
	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		code := dto.NormalizeErrorCode(domainErr.Code)
		return apiError{status: dto.GetHTTPStatus(code), code: code, message: domainErr.Message}
	case errors.Is(err, context.DeadlineExceeded):
		return apiError{status: http.StatusGatewayTimeout, code: dto.ErrCodeInternal, message: "The request timed out"}
	case errors.Is(err, context.Canceled):
		return apiError{status: statusClientClosedRequest, code: dto.ErrCodeBadRequest, message: "The request was cancelled"}
	default:
		return apiError{status: http.StatusInternalServerError, code: dto.ErrCodeInternal, message: "An unexpected error occurred"}
	}
}

// HandleError records err on the gin context and writes its envelope.
// Server-side failures are logged with the request-scoped logger.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	resp := resolveError(err)
	if resp.status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("Request failed",
			zap.String("code", resp.code),
			zap.Int("status", resp.status),
			zap.Error(err),
		)
	}
	h.Error(c, resp.status, resp.code, resp.message)
}
