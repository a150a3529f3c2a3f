package dto

import (
	"encoding/json"
	"time"

	"payment-webhook-gateway/internal/core/domain"
	"payment-webhook-gateway/internal/core/ports"
)

// ListEventsQuery is the query string of GET /api/v1/ops/webhook-events.
type ListEventsQuery struct {
	Processed *bool `form:"processed"`
	Limit     int   `form:"limit" binding:"omitempty,min=1,max=200"`
}

// EventURI binds the :id path parameter of the ops event routes.
type EventURI struct {
	ID string `uri:"id" binding:"required,max=200,safe_id"`
}

// EventResponse is an inbound webhook event as shown to operators.
type EventResponse struct {
	ID                string          `json:"id"`
	Provider          string          `json:"provider"`
	Topic             string          `json:"topic"`
	Action            string          `json:"action,omitempty"`
	ExternalPaymentID *string         `json:"external_payment_id,omitempty"`
	Processed         bool            `json:"processed"`
	ProcessedAt       *string         `json:"processed_at,omitempty"`
	ReceivedAt        string          `json:"received_at"`
	Attempts          int             `json:"attempts"`
	LastError         *string         `json:"last_error,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// ReplayResponse is the result of POST /api/v1/ops/webhook-events/:id/replay.
type ReplayResponse struct {
	EventID       string `json:"event_id"`
	Outcome       string `json:"outcome"`
	Reconcile     string `json:"reconcile,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

// ToEventResponse maps a domain event. The payload is only included when withPayload is set.
func ToEventResponse(e *domain.InboundEvent, withPayload bool) EventResponse {
	resp := EventResponse{
		ID:                e.ID,
		Provider:          e.Provider,
		Topic:             e.Topic,
		Action:            e.Action,
		ExternalPaymentID: e.ExternalPaymentID,
		Processed:         e.Processed,
		ReceivedAt:        e.ReceivedAt.UTC().Format(time.RFC3339),
		Attempts:          e.Attempts,
		LastError:         e.LastError,
	}
	if e.ProcessedAt != nil {
		s := e.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	if withPayload {
		resp.Payload = e.Payload
	}
	return resp
}

// ToReplayResponse maps an ingestion result.
func ToReplayResponse(r *ports.IngestResult) ReplayResponse {
	resp := ReplayResponse{EventID: r.EventID, Outcome: string(r.Outcome)}
	if r.Reconcile != nil {
		resp.Reconcile = string(r.Reconcile.Outcome)
		resp.PaymentID = r.Reconcile.PaymentID
		resp.PaymentStatus = string(r.Reconcile.Status)
	}
	return resp
}
