package handler

import (
	"errors"
	"io"
	"net/http"

	"payment-webhook-gateway/internal/core/ports"
	"payment-webhook-gateway/pkg/apperror"
	"payment-webhook-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	headerSignature = "x-signature"
	headerRequestID = "x-request-id"
)

// WebhookHandler receives provider notifications on POST /api/webhooks/:provider.
type WebhookHandler struct {
	providers map[string]ports.WebhookService
	log       zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. providers maps the :provider
// path segment to its ingestion pipeline.
func NewWebhookHandler(providers map[string]ports.WebhookService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{providers: providers, log: log}
}

// Receive handles POST /api/webhooks/:provider.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := c.Param("provider")
	svc, ok := h.providers[provider]
	if !ok {
		response.WebhookError(c, apperror.ErrUnknownProvider())
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, response.WebhookErrorBody{Error: "Request body too large"})
			return
		}
		response.WebhookError(c, apperror.Validation("cannot read request body"))
		return
	}

	result, err := svc.Ingest(c.Request.Context(), ports.IngestRequest{
		Provider:        provider,
		Body:            body,
		SignatureHeader: c.GetHeader(headerSignature),
		RequestID:       c.GetHeader(headerRequestID),
		Query:           c.Request.URL.Query(),
		ClientIP:        c.ClientIP(),
	})
	if err != nil {
		response.WebhookError(c, err)
		return
	}

	h.log.Debug().
		Str("provider", provider).
		Str("event_id", result.EventID).
		Str("outcome", string(result.Outcome)).
		Msg("webhook acknowledged")
	response.Received(c)
}
