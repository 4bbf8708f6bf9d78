package handler

import (
	"context"

	eventapp "github.com/erp/salesdocs/internal/application/event"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OutboxService is the outbox management API the outbox handler drives
type OutboxService interface {
	DeadLetters(ctx context.Context, q eventapp.DeadLetterQuery) (*eventapp.DeadLetterPage, error)
	Entry(ctx context.Context, id uuid.UUID) (*eventapp.EntryView, error)
	Requeue(ctx context.Context, id uuid.UUID) (*eventapp.EntryView, error)
	RequeueAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*eventapp.DeliveryStats, error)
}

// OutboxHandler serves the document event outbox to operators
type OutboxHandler struct {
	BaseHandler
	service OutboxService
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(service OutboxService) *OutboxHandler {
	return &OutboxHandler{service: service}
}

// RetryAllResponse reports how many dead entries were queued again
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

// GetStats returns entry counts per delivery status
//
// @ID           getStats
// @Summary      Get outbox statistics
// @Description  Returns entry counts per delivery status
// @Tags         outbox
// @Produce      json
// @Success      200 {object} dto.Response{data=event.DeliveryStats}
// @Failure      500 {object} dto.Response
// @Router       /system/outbox/stats [get]
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// GetDeadLetterEntries lists dead entries
//
// @ID           getDeadLetterEntries
// @Summary      List dead entries
// @Tags         outbox
// @Produce      json
// @Param        page query integer false "Page number"
// @Param        page_size query integer false "Page size (max 100)"
// @Success      200 {object} dto.Response{data=event.DeadLetterPage}
// @Failure      400 {object} dto.Response
// @Router       /system/outbox/dead-letters [get]
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	var q eventapp.DeadLetterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	result, err := h.service.DeadLetters(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetEntry returns one entry
//
// @ID           getEntry
// @Summary      Get an outbox entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox entry ID"
// @Success      200 {object} dto.Response{data=event.EntryView}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /system/outbox/entries/{id} [get]
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	id, ok := h.entryID(c)
	if !ok {
		return
	}
	entry, err := h.service.Entry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryDeadEntry queues one dead entry again
//
// @ID           retryDeadEntry
// @Summary      Retry a dead entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox entry ID"
// @Success      200 {object} dto.Response{data=event.EntryView}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /system/outbox/entries/{id}/retry [post]
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	id, ok := h.entryID(c)
	if !ok {
		return
	}
	entry, err := h.service.Requeue(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAllDeadEntries queues every dead entry again
//
// @ID           retryAllDeadEntries
// @Summary      Retry all dead entries
// @Tags         outbox
// @Produce      json
// @Success      200 {object} dto.Response{data=RetryAllResponse}
// @Failure      500 {object} dto.Response
// @Router       /system/outbox/dead-letters/retry [post]
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	count, err := h.service.RequeueAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RetryAllResponse{Count: count})
}

func (h *OutboxHandler) entryID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID")
		return uuid.Nil, false
	}
	return id, true
}
