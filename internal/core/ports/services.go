package ports

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

import (
	"context"
	"errors"
	"net/url"
	"time"

	"payment-webhook-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ErrProviderPaymentNotFound is returned by PaymentProvider when the provider
// explicitly reports that no such payment exists.
var ErrProviderPaymentNotFound = errors.New("payment not found at provider")

// SignatureVerifier authenticates inbound webhook calls.
type SignatureVerifier interface {
	VerifyWebhook(signatureHeader, secret, paymentID, requestID string) bool
}

// PaymentProvider is the upstream payment API.
type PaymentProvider interface {
	GetPayment(ctx context.Context, externalPaymentID string) (*ProviderPayment, error)
}

// ProviderPayment is the authoritative payment state reported by the provider.
type ProviderPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	TransactionAmount float64
	CurrencyID        string
	PaymentMethodID   string
	ExternalReference string
	Metadata          map[string]any
}

// IdempotencyCache is the Redis fast path for already-processed events.
type IdempotencyCache interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

// PaymentReconciler applies an authoritative payment status to local state.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, eventID string, event domain.EventClassification) (*ReconcileResult, error)
}

// ReconcileOutcome describes what a reconciliation did.
type ReconcileOutcome string

const (
	ReconcileApplied       ReconcileOutcome = "applied"
	ReconcileUnchanged     ReconcileOutcome = "unchanged"      // state machine refused the transition
	ReconcileUnmatched     ReconcileOutcome = "unmatched"      // no local payment record
	ReconcileNonActionable ReconcileOutcome = "non_actionable" // unmapped provider status
)

// ReconcileResult is returned by PaymentReconciler.
type ReconcileResult struct {
	Outcome   ReconcileOutcome
	PaymentID string
	Status    domain.PaymentStatus
	// StatusSource is "provider" or "payload".
	StatusSource string
}

// SubscriptionActivator activates a subscriber's plan inside the caller's transaction.
type SubscriptionActivator interface {
	Activate(ctx context.Context, tx pgx.Tx, payment *domain.PaymentRecord) (*domain.Subscription, error)
}

// WebhookService is the webhook ingestion pipeline.
type WebhookService interface {
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	Replay(ctx context.Context, eventID string) (*IngestResult, error)
	ListEvents(ctx context.Context, params InboundEventListParams) ([]domain.InboundEvent, error)
	GetEvent(ctx context.Context, eventID string) (*domain.InboundEvent, error)
}

// IngestRequest is one inbound webhook delivery.
type IngestRequest struct {
	Provider        string
	Body            []byte
	SignatureHeader string
	RequestID       string
	Query           url.Values
	ClientIP        string
}

// IngestOutcome describes how a delivery was handled.
type IngestOutcome string

const (
	IngestProcessed IngestOutcome = "processed"
	IngestIgnored   IngestOutcome = "ignored" // non-payment topic
	IngestDuplicate IngestOutcome = "duplicate"
	IngestInFlight  IngestOutcome = "in_flight"
)

// IngestResult is returned by WebhookService.
type IngestResult struct {
	EventID   string
	Outcome   IngestOutcome
	Reconcile *ReconcileResult
}

// TokenService handles ops JWT operations.
type TokenService interface {
	Generate(operator string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Operator string
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
