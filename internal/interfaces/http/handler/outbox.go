package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appevent "github.com/procure/backend/internal/application/event"
	"github.com/procure/backend/internal/interfaces/http/dto"
	"github.com/procure/backend/internal/interfaces/http/middleware"
)

// OutboxAdminHandler exposes the event outbox to operators: queue stats,
// dead letter inspection, and requeueing. The outbox spans all tenants, so
// like tenant provisioning these routes are limited to system principals.
type OutboxAdminHandler struct {
	BaseHandler
	outboxService *appevent.OutboxService
}

// NewOutboxAdminHandler creates a new OutboxAdminHandler
func NewOutboxAdminHandler(outboxService *appevent.OutboxService) *OutboxAdminHandler {
	return &OutboxAdminHandler{outboxService: outboxService}
}

// RegisterRoutes registers outbox admin routes on an unbound group
func (h *OutboxAdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	outbox := rg.Group("/outbox")
	{
		outbox.GET("/stats", h.Stats)
		outbox.GET("/dead", h.ListDead)
		outbox.GET("/:id", h.Get)
		outbox.POST("/:id/retry", h.Retry)
		outbox.POST("/retry-all", h.RetryAll)
	}
}

// Stats returns entry counts per outbox status
func (h *OutboxAdminHandler) Stats(c *gin.Context) {
	if !h.requireSystemPrincipal(c) {
		return
	}

	stats, err := h.outboxService.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// ListDead returns dead letter entries, newest first
func (h *OutboxAdminHandler) ListDead(c *gin.Context) {
	if !h.requireSystemPrincipal(c) {
		return
	}

	var filter appevent.OutboxFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.outboxService.GetDeadLetterEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Entries, result.Total, result.Page, result.PageSize)
}

// Get returns a single outbox entry
func (h *OutboxAdminHandler) Get(c *gin.Context) {
	if !h.requireSystemPrincipal(c) {
		return
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid outbox entry ID")
		return
	}

	result, err := h.outboxService.GetEntry(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Retry requeues a single dead letter entry
func (h *OutboxAdminHandler) Retry(c *gin.Context) {
	if !h.requireSystemPrincipal(c) {
		return
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid outbox entry ID")
		return
	}

	result, err := h.outboxService.RetryDeadEntry(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RetryAll requeues every dead letter entry
func (h *OutboxAdminHandler) RetryAll(c *gin.Context) {
	if !h.requireSystemPrincipal(c) {
		return
	}

	count, err := h.outboxService.RetryAllDeadEntries(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"retried": count})
}

func (h *OutboxAdminHandler) requireSystemPrincipal(c *gin.Context) bool {
	if !middleware.IsSystemPrincipal(c) {
		h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, "Outbox administration requires a system principal")
		return false
	}
	return true
}
