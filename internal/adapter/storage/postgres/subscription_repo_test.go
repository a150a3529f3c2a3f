package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-webhook-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRepo_Activate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sub := &domain.Subscription{
		SubscriberID: "biz_42",
		PlanType:     "PRO",
		PlanStatus:   domain.PlanStatusActive,
		ExpiresAt:    now.Add(domain.RenewalPeriod),
		UpdatedAt:    now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs("biz_42", "PRO", "ACTIVE", now.Add(domain.RenewalPeriod), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, NewSubscriptionRepo(mock).Activate(ctx, tx, sub))
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepo_Activate_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnError(errors.New("deadlock detected"))

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	err = NewSubscriptionRepo(mock).Activate(ctx, tx, &domain.Subscription{SubscriberID: "biz_42"})
	assert.ErrorContains(t, err, "upsert subscription")
}

func TestSubscriptionRepo_GetBySubscriberID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"subscriber_id", "plan_type", "plan_status", "expires_at", "updated_at"}).
		AddRow("biz_42", "PRO", "ACTIVE", now.Add(domain.RenewalPeriod), now)

	mock.ExpectQuery("SELECT (.+) FROM subscriptions").
		WithArgs("biz_42").
		WillReturnRows(rows)

	s, err := NewSubscriptionRepo(mock).GetBySubscriberID(context.Background(), "biz_42")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, domain.PlanStatusActive, s.PlanStatus)
	assert.True(t, s.IsActive(now))
}

func TestSubscriptionRepo_GetBySubscriberID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM subscriptions").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	s, err := NewSubscriptionRepo(mock).GetBySubscriberID(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, s)
}
