package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-webhook-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, external_payment_id, status, amount, currency, payment_method,
	subscriber_id, plan_type, provider_status, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// GetByID fetches a payment by internal id. Returns nil, nil when absent.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by id: %w", err)
	}
	return p, nil
}

// GetByExternalID fetches a payment by the provider's payment id.
func (r *PaymentRepo) GetByExternalID(ctx context.Context, externalPaymentID string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_payment_id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, externalPaymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by external id: %w", err)
	}
	return p, nil
}

// GetByIDForUpdate locks the payment row for the rest of tx.
func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`

	p, err := scanPayment(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment for update: %w", err)
	}
	return p, nil
}

// Update applies a reconciliation. Empty optional fields keep their stored value.
func (r *PaymentRepo) Update(ctx context.Context, tx pgx.Tx, id string, upd domain.PaymentUpdate) error {
	query := `UPDATE payments SET
		status = $2,
		provider_status = $3,
		external_payment_id = COALESCE(NULLIF($4::text, ''), external_payment_id),
		payment_method = COALESCE(NULLIF($5::text, ''), payment_method),
		amount = COALESCE($6::bigint, amount),
		currency = COALESCE(NULLIF($7::text, ''), currency),
		updated_at = NOW()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query,
		id, string(upd.Status), upd.ProviderStatus, upd.ExternalPaymentID,
		upd.PaymentMethod, upd.Amount, upd.Currency,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("external payment id %s already linked to another payment: %w", upd.ExternalPaymentID, err)
		}
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	p := &domain.PaymentRecord{}
	err := row.Scan(
		&p.ID, &p.ExternalPaymentID, &p.Status, &p.Amount, &p.Currency, &p.PaymentMethod,
		&p.SubscriberID, &p.PlanType, &p.ProviderStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
