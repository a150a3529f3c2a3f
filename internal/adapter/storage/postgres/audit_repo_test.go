package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-webhook-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	log := &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionReplay,
		ResourceType: "webhook",
		ResourceID:   "req-1",
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(log.ID, "WEBHOOK_REPLAY", "webhook", "req-1", "{}", "10.0.0.1", log.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), log)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(errors.New("disk full"))

	err = NewAuditRepo(mock).Create(context.Background(), &domain.AuditLog{ID: uuid.New(), Details: `{"a":"b"}`})
	assert.ErrorContains(t, err, "insert audit log")
}
