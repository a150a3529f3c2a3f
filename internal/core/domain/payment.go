package domain

import (
	"strings"
	"time"
)

// PaymentStatus is the internal lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// IsKnown returns true for the three statuses the reconciler can apply.
func (s PaymentStatus) IsKnown() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo enforces the payment state machine.
// approved is terminal; rejected may only be approved (a retried charge) or repeated.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if !next.IsKnown() {
		return false
	}
	switch s {
	case PaymentStatusApproved:
		return false
	case PaymentStatusRejected:
		return next != PaymentStatusPending
	case PaymentStatusPending, "":
		return true
	}
	return false
}

// NormalizePaymentStatus maps a provider status string onto the internal enum.
// Unrecognized values are returned unchanged (lower-cased, trimmed) so callers can
// tell them apart with IsKnown.
func NormalizePaymentStatus(raw string) PaymentStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "approved"):
		return PaymentStatusApproved
	case strings.Contains(s, "pending"), strings.Contains(s, "in_process"):
		return PaymentStatusPending
	case strings.Contains(s, "rejected"), strings.Contains(s, "cancel"), strings.Contains(s, "refused"):
		return PaymentStatusRejected
	}
	return PaymentStatus(s)
}

// PaymentRecord is a subscriber's plan purchase, created at checkout and
// mutated only by webhook reconciliation.
type PaymentRecord struct {
	ID                string        `json:"id"`
	ExternalPaymentID *string       `json:"external_payment_id,omitempty"`
	Status            PaymentStatus `json:"status"`
	Amount            int64         `json:"amount"` // In minor units (e.g. centavos)
	Currency          string        `json:"currency"`
	PaymentMethod     string        `json:"payment_method,omitempty"`
	SubscriberID      string        `json:"subscriber_id"`
	PlanType          string        `json:"plan_type"`
	ProviderStatus    string        `json:"provider_status,omitempty"` // Raw provider status, kept for audit
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// IsApproved returns true if the payment reached its terminal success state.
func (p *PaymentRecord) IsApproved() bool {
	return p.Status == PaymentStatusApproved
}

// PaymentUpdate carries the fields written by a reconciliation.
// Zero-valued optional fields leave the stored value untouched.
type PaymentUpdate struct {
	Status            PaymentStatus
	ProviderStatus    string
	ExternalPaymentID string
	PaymentMethod     string
	Amount            *int64
	Currency          string
}
