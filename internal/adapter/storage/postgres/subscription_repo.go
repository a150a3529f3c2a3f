package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-webhook-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// SubscriptionRepo implements ports.SubscriptionRepository.
type SubscriptionRepo struct {
	pool Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(pool Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// Activate upserts the subscriber's plan inside the caller's transaction.
func (r *SubscriptionRepo) Activate(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	query := `INSERT INTO subscriptions (subscriber_id, plan_type, plan_status, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subscriber_id) DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			plan_status = EXCLUDED.plan_status,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		sub.SubscriberID, sub.PlanType, string(sub.PlanStatus), sub.ExpiresAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// GetBySubscriberID fetches a subscriber's plan. Returns nil, nil when absent.
func (r *SubscriptionRepo) GetBySubscriberID(ctx context.Context, subscriberID string) (*domain.Subscription, error) {
	query := `SELECT subscriber_id, plan_type, plan_status, expires_at, updated_at
		FROM subscriptions WHERE subscriber_id = $1`

	s := &domain.Subscription{}
	err := r.pool.QueryRow(ctx, query, subscriberID).Scan(
		&s.SubscriberID, &s.PlanType, &s.PlanStatus, &s.ExpiresAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}
