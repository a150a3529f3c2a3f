package handler

import (
	"payment-webhook-gateway/internal/adapter/http/dto"
	"payment-webhook-gateway/internal/core/ports"
	"payment-webhook-gateway/pkg/apperror"
	"payment-webhook-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// OpsHandler exposes the inbound event log to operators.
type OpsHandler struct {
	webhookSvc ports.WebhookService
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(webhookSvc ports.WebhookService) *OpsHandler {
	return &OpsHandler{webhookSvc: webhookSvc}
}

// ListEvents handles GET /api/v1/ops/webhook-events.
func (h *OpsHandler) ListEvents(c *gin.Context) {
	var q dto.ListEventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	events, err := h.webhookSvc.ListEvents(c.Request.Context(), ports.InboundEventListParams{
		Processed: q.Processed,
		Limit:     q.Limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		items = append(items, dto.ToEventResponse(&events[i], false))
	}
	response.OK(c, items)
}

// GetEvent handles GET /api/v1/ops/webhook-events/:id.
func (h *OpsHandler) GetEvent(c *gin.Context) {
	var uri dto.EventURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	event, err := h.webhookSvc.GetEvent(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToEventResponse(event, true))
}

// Replay handles POST /api/v1/ops/webhook-events/:id/replay.
func (h *OpsHandler) Replay(c *gin.Context) {
	var uri dto.EventURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.webhookSvc.Replay(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToReplayResponse(result))
}
