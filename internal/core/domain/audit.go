package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionInvalidSignature AuditAction = "WEBHOOK_INVALID_SIGNATURE"
	AuditActionMissingRequestID AuditAction = "WEBHOOK_MISSING_REQUEST_ID"
	AuditActionReplay           AuditAction = "WEBHOOK_REPLAY"
)

// AuditLog records a single security-relevant or operator action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
