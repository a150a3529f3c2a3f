package domain

import (
	"encoding/json"
	"time"
)

// Topic values the provider sends in the "type"/"topic" field.
const (
	TopicPayment       = "payment"
	TopicMerchantOrder = "merchant_order"
)

// InboundEvent is the audit-trail row recorded for every distinct webhook delivery.
// ID is the provider request id (or a derived fallback) and is unique.
type InboundEvent struct {
	ID                string          `json:"id"`
	Provider          string          `json:"provider"`
	Topic             string          `json:"topic"`
	Action            string          `json:"action,omitempty"`
	ExternalPaymentID *string         `json:"external_payment_id,omitempty"`
	Payload           json.RawMessage `json:"payload"`
	Processed         bool            `json:"processed"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	ReceivedAt        time.Time       `json:"received_at"`
	Attempts          int             `json:"attempts"`
	LastError         *string         `json:"last_error,omitempty"`
	ClaimedAt         *time.Time      `json:"claimed_at,omitempty"`
}

// IsPayment returns true if the event carries a payment notification.
func (e *InboundEvent) IsPayment() bool {
	return e.Topic == TopicPayment
}

// LeaseHeld reports whether another worker's claim on the event is still live at now.
func (e *InboundEvent) LeaseHeld(now time.Time, lease time.Duration) bool {
	return e.ClaimedAt != nil && now.Sub(*e.ClaimedAt) < lease
}

// EventClassification is what the classifier extracted from a webhook payload.
type EventClassification struct {
	Topic               string
	Action              string
	IsPayment           bool
	ExternalPaymentID   string // provider payment id, "" if none found
	Reference           string // candidate internal PaymentRecord id, "" if none found
	PayloadStatus       string // raw status embedded in the payload, fallback only
	PayloadStatusDetail string
}
