package service

import (
	"context"
	"fmt"

	"payment-webhook-gateway/internal/core/domain"
	"payment-webhook-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SubscriptionActivatorImpl implements ports.SubscriptionActivator.
type SubscriptionActivatorImpl struct {
	subs  ports.SubscriptionRepository
	clock domain.Clock
	log   zerolog.Logger
}

// NewSubscriptionActivator creates a new SubscriptionActivatorImpl.
func NewSubscriptionActivator(subs ports.SubscriptionRepository, clock domain.Clock, log zerolog.Logger) *SubscriptionActivatorImpl {
	return &SubscriptionActivatorImpl{subs: subs, clock: clock, log: log}
}

// Activate sets the payment's subscriber plan ACTIVE until now + RenewalPeriod.
// It writes through tx and never commits; the caller owns the transaction.
func (a *SubscriptionActivatorImpl) Activate(ctx context.Context, tx pgx.Tx, payment *domain.PaymentRecord) (*domain.Subscription, error) {
	if payment.SubscriberID == "" {
		return nil, fmt.Errorf("payment %s has no subscriber reference", payment.ID)
	}

	now := a.clock.Now()
	sub := &domain.Subscription{
		SubscriberID: payment.SubscriberID,
		PlanType:     payment.PlanType,
		PlanStatus:   domain.PlanStatusActive,
		ExpiresAt:    now.Add(domain.RenewalPeriod),
		UpdatedAt:    now,
	}
	if err := a.subs.Activate(ctx, tx, sub); err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	a.log.Info().
		Str("subscriber_id", sub.SubscriberID).
		Str("plan_type", sub.PlanType).
		Time("expires_at", sub.ExpiresAt).
		Msg("subscription activated")

	return sub, nil
}
