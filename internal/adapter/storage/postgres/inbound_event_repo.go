package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-webhook-gateway/internal/core/domain"
	"payment-webhook-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const inboundEventColumns = `id, provider, topic, action, external_payment_id, payload, processed,
	processed_at, received_at, attempts, last_error, claimed_at`

// InboundEventRepo implements ports.InboundEventRepository.
type InboundEventRepo struct {
	pool Pool
}

// NewInboundEventRepo creates a new InboundEventRepo.
func NewInboundEventRepo(pool Pool) *InboundEventRepo {
	return &InboundEventRepo{pool: pool}
}

// Insert records a first sighting and takes the processing lease in the same statement.
// The primary key on id arbitrates concurrent deliveries.
func (r *InboundEventRepo) Insert(ctx context.Context, e *domain.InboundEvent) error {
	query := `INSERT INTO inbound_events (id, provider, topic, action, external_payment_id, payload,
		received_at, attempts, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $7)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		e.ID, e.Provider, e.Topic, e.Action, e.ExternalPaymentID, []byte(e.Payload), e.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inbound event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrDuplicateEvent
	}

	claimedAt := e.ReceivedAt
	e.Attempts = 1
	e.ClaimedAt = &claimedAt
	return nil
}

// Get fetches an inbound event by id. Returns nil, nil when absent.
func (r *InboundEventRepo) Get(ctx context.Context, id string) (*domain.InboundEvent, error) {
	query := `SELECT ` + inboundEventColumns + ` FROM inbound_events WHERE id = $1`

	e, err := scanInboundEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inbound event: %w", err)
	}
	return e, nil
}

// Claim takes the lease on an unprocessed event whose previous claim has expired.
func (r *InboundEventRepo) Claim(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error) {
	query := `UPDATE inbound_events SET claimed_at = $2, attempts = attempts + 1
		WHERE id = $1 AND processed = false AND (claimed_at IS NULL OR claimed_at < $3)`

	tag, err := r.pool.Exec(ctx, query, id, now, now.Add(-lease))
	if err != nil {
		return false, fmt.Errorf("claim inbound event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkProcessed completes an event inside the caller's transaction.
func (r *InboundEventRepo) MarkProcessed(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	query := `UPDATE inbound_events SET processed = true, processed_at = $2, claimed_at = NULL, last_error = NULL
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark inbound event processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inbound event not found: %s", id)
	}
	return nil
}

// RecordFailure stores the last error and releases the lease.
func (r *InboundEventRepo) RecordFailure(ctx context.Context, id string, reason string) error {
	query := `UPDATE inbound_events SET last_error = $2, claimed_at = NULL WHERE id = $1 AND processed = false`

	if _, err := r.pool.Exec(ctx, query, id, reason); err != nil {
		return fmt.Errorf("record inbound event failure: %w", err)
	}
	return nil
}

// List fetches inbound events, oldest first.
func (r *InboundEventRepo) List(ctx context.Context, params ports.InboundEventListParams) ([]domain.InboundEvent, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Processed != nil {
		conditions = append(conditions, fmt.Sprintf("processed = $%d", argIdx))
		args = append(args, *params.Processed)
		argIdx++
	}
	if params.ReceivedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("received_at < $%d", argIdx))
		args = append(args, *params.ReceivedBefore)
		argIdx++
	}
	if params.MaxAttempts > 0 {
		conditions = append(conditions, fmt.Sprintf("attempts < $%d", argIdx))
		args = append(args, params.MaxAttempts)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM inbound_events %s ORDER BY received_at ASC LIMIT $%d`,
		inboundEventColumns, where, argIdx)
	args = append(args, params.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inbound events: %w", err)
	}
	defer rows.Close()

	var events []domain.InboundEvent
	for rows.Next() {
		e, err := scanInboundEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inbound event row: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inbound event rows: %w", err)
	}
	return events, nil
}

func scanInboundEvent(row pgx.Row) (*domain.InboundEvent, error) {
	e := &domain.InboundEvent{}
	var payload []byte
	err := row.Scan(
		&e.ID, &e.Provider, &e.Topic, &e.Action, &e.ExternalPaymentID, &payload, &e.Processed,
		&e.ProcessedAt, &e.ReceivedAt, &e.Attempts, &e.LastError, &e.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return e, nil
}
