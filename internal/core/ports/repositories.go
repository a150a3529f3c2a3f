package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"payment-webhook-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ErrDuplicateEvent is returned by InboundEventRepository.Insert when an event with
// the same id has already been recorded.
var ErrDuplicateEvent = errors.New("inbound event already recorded")

// InboundEventRepository persists webhook deliveries. The unique key on id is the
// only mutual exclusion between concurrent identical deliveries.
type InboundEventRepository interface {
	// Insert records a new event and takes its processing lease.
	// Returns ErrDuplicateEvent if the id already exists.
	Insert(ctx context.Context, event *domain.InboundEvent) error
	Get(ctx context.Context, id string) (*domain.InboundEvent, error)
	// Claim takes the processing lease of an unprocessed event whose previous claim
	// is older than lease. Returns false if the event is processed or still claimed.
	Claim(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, id string, at time.Time) error
	// RecordFailure stores the error and releases the lease so a retry can claim it.
	RecordFailure(ctx context.Context, id string, reason string) error
	List(ctx context.Context, params InboundEventListParams) ([]domain.InboundEvent, error)
}

// InboundEventListParams filters inbound events.
type InboundEventListParams struct {
	Processed      *bool
	ReceivedBefore *time.Time
	MaxAttempts    int // 0 = no limit
	Limit          int
}

// PaymentRepository reads and reconciles payment records.
// Methods accepting pgx.Tx are used inside the reconciliation transaction.
type PaymentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.PaymentRecord, error)
	GetByExternalID(ctx context.Context, externalPaymentID string) (*domain.PaymentRecord, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.PaymentRecord, error)
	Update(ctx context.Context, tx pgx.Tx, id string, upd domain.PaymentUpdate) error
}

// SubscriptionRepository persists plan activation state.
type SubscriptionRepository interface {
	Activate(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error
	GetBySubscriberID(ctx context.Context, subscriberID string) (*domain.Subscription, error)
}

// AuditRepository persists audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
