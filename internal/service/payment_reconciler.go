package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"payment-webhook-gateway/internal/core/domain"
	"payment-webhook-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	statusSourceProvider = "provider"
	statusSourcePayload  = "payload"
)

// PaymentReconcilerImpl implements ports.PaymentReconciler.
type PaymentReconcilerImpl struct {
	provider      ports.PaymentProvider
	payments      ports.PaymentRepository
	events        ports.InboundEventRepository
	activator     ports.SubscriptionActivator
	transactor    ports.DBTransactor
	clock         domain.Clock
	lookupTimeout time.Duration
	log           zerolog.Logger
}

// NewPaymentReconciler creates a new PaymentReconcilerImpl.
func NewPaymentReconciler(
	provider ports.PaymentProvider,
	payments ports.PaymentRepository,
	events ports.InboundEventRepository,
	activator ports.SubscriptionActivator,
	transactor ports.DBTransactor,
	clock domain.Clock,
	lookupTimeout time.Duration,
	log zerolog.Logger,
) *PaymentReconcilerImpl {
	return &PaymentReconcilerImpl{
		provider:      provider,
		payments:      payments,
		events:        events,
		activator:     activator,
		transactor:    transactor,
		clock:         clock,
		lookupTimeout: lookupTimeout,
		log:           log,
	}
}

// Reconcile confirms the payment status with the provider and applies it.
// Every write, including marking eventID processed, happens in one transaction.
// A returned error means nothing was written and the event stays unprocessed.
func (r *PaymentReconcilerImpl) Reconcile(ctx context.Context, eventID string, ev domain.EventClassification) (*ports.ReconcileResult, error) {
	remote, lookupErr := r.lookup(ctx, ev.ExternalPaymentID)
	if errors.Is(lookupErr, ports.ErrProviderPaymentNotFound) {
		return nil, fmt.Errorf("lookup payment %s: %w", ev.ExternalPaymentID, lookupErr)
	}

	rawStatus, source := ev.PayloadStatus, statusSourcePayload
	if remote != nil {
		rawStatus, source = remote.Status, statusSourceProvider
	} else if lookupErr != nil {
		if rawStatus == "" {
			return nil, fmt.Errorf("no status for payment %s: %w", ev.ExternalPaymentID, lookupErr)
		}
		r.log.Warn().Err(lookupErr).
			Str("event_id", eventID).
			Str("external_payment_id", ev.ExternalPaymentID).
			Str("payload_status", rawStatus).
			Msg("provider lookup failed, falling back to payload status")
	}

	record, err := r.resolveRecord(ctx, ev, remote)
	if err != nil {
		return nil, err
	}

	dbTx, err := r.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	status := domain.NormalizePaymentStatus(rawStatus)
	result := &ports.ReconcileResult{Status: status, StatusSource: source}

	if record == nil {
		r.log.Warn().
			Str("event_id", eventID).
			Str("external_payment_id", ev.ExternalPaymentID).
			Str("reference", ev.Reference).
			Msg("unmatched payment, skipping")
		result.Outcome = ports.ReconcileUnmatched
		return r.finish(ctx, dbTx, eventID, result)
	}
	result.PaymentID = record.ID

	if !status.IsKnown() {
		r.log.Warn().
			Str("event_id", eventID).
			Str("payment_id", record.ID).
			Str("provider_status", rawStatus).
			Msg("non-actionable payment status, skipping")
		result.Outcome = ports.ReconcileNonActionable
		return r.finish(ctx, dbTx, eventID, result)
	}

	// Row lock serializes concurrent reconciliations of the same payment.
	locked, err := r.payments.GetByIDForUpdate(ctx, dbTx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	if locked == nil {
		result.Outcome = ports.ReconcileUnmatched
		return r.finish(ctx, dbTx, eventID, result)
	}

	if !locked.Status.CanTransitionTo(status) {
		r.log.Info().
			Str("event_id", eventID).
			Str("payment_id", locked.ID).
			Str("current_status", string(locked.Status)).
			Str("incoming_status", string(status)).
			Msg("out-of-order status ignored")
		result.Outcome = ports.ReconcileUnchanged
		return r.finish(ctx, dbTx, eventID, result)
	}

	upd := domain.PaymentUpdate{
		Status:            status,
		ProviderStatus:    rawStatus,
		ExternalPaymentID: ev.ExternalPaymentID,
	}
	if status == domain.PaymentStatusApproved && remote != nil {
		upd.PaymentMethod = remote.PaymentMethodID
		upd.Currency = remote.CurrencyID
		if remote.TransactionAmount > 0 {
			amount := toMinorUnits(remote.TransactionAmount)
			upd.Amount = &amount
		}
	}

	if err := r.payments.Update(ctx, dbTx, locked.ID, upd); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	if status == domain.PaymentStatusApproved {
		if _, err := r.activator.Activate(ctx, dbTx, locked); err != nil {
			return nil, err
		}
	}

	result.Outcome = ports.ReconcileApplied
	if _, err := r.finish(ctx, dbTx, eventID, result); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("event_id", eventID).
		Str("payment_id", locked.ID).
		Str("status", string(status)).
		Str("source", source).
		Msg("payment reconciled")

	return result, nil
}

// lookup fetches the authoritative payment, bounded by lookupTimeout.
// A nil payment with nil error means there was nothing to look up.
func (r *PaymentReconcilerImpl) lookup(ctx context.Context, externalPaymentID string) (*ports.ProviderPayment, error) {
	if externalPaymentID == "" {
		return nil, nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	return r.provider.GetPayment(lookupCtx, externalPaymentID)
}

func (r *PaymentReconcilerImpl) resolveRecord(ctx context.Context, ev domain.EventClassification, remote *ports.ProviderPayment) (*domain.PaymentRecord, error) {
	refs := []string{ev.Reference}
	if remote != nil && remote.ExternalReference != "" && remote.ExternalReference != ev.Reference {
		refs = append(refs, remote.ExternalReference)
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		record, err := r.payments.GetByID(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("get payment %s: %w", ref, err)
		}
		if record != nil {
			return record, nil
		}
	}

	if ev.ExternalPaymentID == "" {
		return nil, nil
	}
	record, err := r.payments.GetByExternalID(ctx, ev.ExternalPaymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment by external id %s: %w", ev.ExternalPaymentID, err)
	}
	return record, nil
}

func (r *PaymentReconcilerImpl) finish(ctx context.Context, dbTx pgx.Tx, eventID string, result *ports.ReconcileResult) (*ports.ReconcileResult, error) {
	if err := r.events.MarkProcessed(ctx, dbTx, eventID, r.clock.Now()); err != nil {
		return nil, fmt.Errorf("mark event processed: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
