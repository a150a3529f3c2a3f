package domain

import "time"

// PlanStatus is the activation state of a subscriber's plan.
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "ACTIVE"
	PlanStatusInactive PlanStatus = "INACTIVE"
	PlanStatusExpired  PlanStatus = "EXPIRED"
)

// RenewalPeriod is how long one approved payment keeps a plan active.
const RenewalPeriod = 30 * 24 * time.Hour

// Subscription is the plan state of a business on the marketplace.
type Subscription struct {
	SubscriberID string     `json:"subscriber_id"`
	PlanType     string     `json:"plan_type"`
	PlanStatus   PlanStatus `json:"plan_status"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive returns true if the plan is active and not yet expired at now.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.PlanStatus == PlanStatusActive && now.Before(s.ExpiresAt)
}
