package middleware

import (
	"net/http"

	"github.com/erp/salesdocs/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

const bodyTooLargeMessage = "Request body exceeds maximum allowed size"

// BodyLimit rejects requests whose declared length exceeds maxBytes and caps
// the body reader for the rest, so an oversized chunked draft fails while it
// is bound. A non-positive maxBytes disables the limit.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeRequestTooLarge, bodyTooLargeMessage, getRequestID(c)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
