package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"payment-webhook-gateway/internal/core/domain"
	"payment-webhook-gateway/internal/core/ports"
	"payment-webhook-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	fallbackIDPrefix = "fb_"
)

// WebhookOptions configures the ingestion pipeline.
type WebhookOptions struct {
	Secret           string
	RequireRequestID bool
	Lease            time.Duration
	ProcessedTTL     time.Duration
}

// webhookService implements ports.WebhookService.
type webhookService struct {
	events     ports.InboundEventRepository
	cache      ports.IdempotencyCache
	verifier   ports.SignatureVerifier
	reconciler ports.PaymentReconciler
	transactor ports.DBTransactor
	auditSvc   ports.AuditService
	clock      domain.Clock
	opts       WebhookOptions
	log        zerolog.Logger
}

// NewWebhookService creates a new webhook ingestion service.
func NewWebhookService(
	events ports.InboundEventRepository,
	cache ports.IdempotencyCache,
	verifier ports.SignatureVerifier,
	reconciler ports.PaymentReconciler,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	clock domain.Clock,
	opts WebhookOptions,
	log zerolog.Logger,
) ports.WebhookService {
	return &webhookService{
		events:     events,
		cache:      cache,
		verifier:   verifier,
		reconciler: reconciler,
		transactor: transactor,
		auditSvc:   auditSvc,
		clock:      clock,
		opts:       opts,
		log:        log,
	}
}

// Ingest runs one delivery through signature check, idempotency guard and
// processing. Returned errors are *apperror.AppError.
func (s *webhookService) Ingest(ctx context.Context, req ports.IngestRequest) (*ports.IngestResult, error) {
	payload, parseErr := ParsePayload(req.Body)
	if parseErr != nil {
		s.log.Debug().Err(parseErr).Msg("webhook body is not a JSON object, relying on query parameters")
	}
	ev := ClassifyEvent(payload, req.Query)

	if !s.verifier.VerifyWebhook(req.SignatureHeader, s.opts.Secret, ev.ExternalPaymentID, req.RequestID) {
		s.log.Warn().
			Str("provider", req.Provider).
			Str("ip", req.ClientIP).
			Str("request_id", req.RequestID).
			Str("external_payment_id", ev.ExternalPaymentID).
			Msg("invalid webhook signature")
		s.audit(ctx, domain.AuditActionInvalidSignature, req.RequestID, req.ClientIP, map[string]string{
			"provider":            req.Provider,
			"external_payment_id": ev.ExternalPaymentID,
		})
		return nil, apperror.ErrInvalidWebhookSignature()
	}

	eventID := req.RequestID
	if eventID == "" {
		if s.opts.RequireRequestID {
			s.log.Error().Str("provider", req.Provider).Str("ip", req.ClientIP).Msg("webhook delivery without x-request-id rejected")
			s.audit(ctx, domain.AuditActionMissingRequestID, "", req.ClientIP, map[string]string{"provider": req.Provider})
			return nil, apperror.ErrMissingRequestID()
		}
		ts, _, _ := ParseSignatureHeader(req.SignatureHeader)
		eventID = FallbackEventID(ts, req.Body)
		s.log.Warn().Str("event_id", eventID).Msg("missing x-request-id, using derived event id")
	}

	processed, err := s.cache.IsProcessed(ctx, eventID)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("redis processed check failed, falling through to DB")
	}
	if processed {
		s.log.Info().Str("event_id", eventID).Msg("duplicate webhook (cache)")
		return &ports.IngestResult{EventID: eventID, Outcome: ports.IngestDuplicate}, nil
	}

	event := &domain.InboundEvent{
		ID:         eventID,
		Provider:   req.Provider,
		Topic:      ev.Topic,
		Action:     ev.Action,
		Payload:    storedPayload(req.Body, parseErr),
		ReceivedAt: s.clock.Now(),
	}
	if ev.ExternalPaymentID != "" {
		event.ExternalPaymentID = &ev.ExternalPaymentID
	}

	err = s.events.Insert(ctx, event)
	if errors.Is(err, ports.ErrDuplicateEvent) {
		return s.handleDuplicate(ctx, eventID, ev)
	}
	if err != nil {
		s.log.Error().Err(err).Str("event_id", eventID).Msg("failed to record inbound event")
		return nil, apperror.ErrEventStore(err)
	}

	return s.process(ctx, eventID, ev)
}

// handleDuplicate decides what to do when the event row already exists.
// A row that was never marked processed is a failed or crashed attempt and is retried.
func (s *webhookService) handleDuplicate(ctx context.Context, eventID string, ev domain.EventClassification) (*ports.IngestResult, error) {
	existing, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, apperror.ErrEventStore(err)
	}
	if existing == nil {
		return nil, apperror.ErrEventStore(fmt.Errorf("event %s reported duplicate but not found", eventID))
	}

	if existing.Processed {
		s.log.Info().Str("event_id", eventID).Msg("duplicate webhook")
		s.markCached(ctx, eventID)
		return &ports.IngestResult{EventID: eventID, Outcome: ports.IngestDuplicate}, nil
	}

	claimed, err := s.events.Claim(ctx, eventID, s.clock.Now(), s.opts.Lease)
	if err != nil {
		return nil, apperror.ErrEventStore(err)
	}
	if !claimed {
		s.log.Info().Str("event_id", eventID).Msg("duplicate webhook while first delivery is in flight")
		return &ports.IngestResult{EventID: eventID, Outcome: ports.IngestInFlight}, nil
	}

	s.log.Info().
		Str("event_id", eventID).
		Int("attempts", existing.Attempts+1).
		Msg("retrying unfinished webhook event")
	return s.process(ctx, eventID, ev)
}

// process handles an event whose lease the caller holds.
func (s *webhookService) process(ctx context.Context, eventID string, ev domain.EventClassification) (*ports.IngestResult, error) {
	if !ev.IsPayment {
		if err := s.markProcessed(ctx, eventID); err != nil {
			s.recordFailure(ctx, eventID, err)
			return nil, apperror.ErrWebhookProcessing(err)
		}
		s.markCached(ctx, eventID)
		s.log.Info().Str("event_id", eventID).Str("topic", ev.Topic).Msg("unhandled webhook topic, acknowledged")
		return &ports.IngestResult{EventID: eventID, Outcome: ports.IngestIgnored}, nil
	}

	res, err := s.reconciler.Reconcile(ctx, eventID, ev)
	if err != nil {
		s.recordFailure(ctx, eventID, err)
		if errors.Is(err, ports.ErrProviderPaymentNotFound) {
			s.log.Warn().Err(err).Str("event_id", eventID).Str("external_payment_id", ev.ExternalPaymentID).Msg("payment not found upstream")
			return nil, apperror.ErrUpstreamPaymentNotFound(err)
		}
		s.log.Error().Err(err).Str("event_id", eventID).Msg("webhook processing failed")
		return nil, apperror.ErrWebhookProcessing(err)
	}

	s.markCached(ctx, eventID)
	return &ports.IngestResult{EventID: eventID, Outcome: ports.IngestProcessed, Reconcile: res}, nil
}

// Replay re-runs processing for a stored event that never completed.
func (s *webhookService) Replay(ctx context.Context, eventID string) (*ports.IngestResult, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if event == nil {
		return nil, apperror.ErrNotFound("Webhook event")
	}
	if event.Processed {
		return &ports.IngestResult{EventID: eventID, Outcome: ports.IngestDuplicate}, nil
	}

	claimed, err := s.events.Claim(ctx, eventID, s.clock.Now(), s.opts.Lease)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !claimed {
		return nil, apperror.ErrEventInFlight()
	}

	s.log.Info().Str("event_id", eventID).Int("attempts", event.Attempts+1).Msg("replaying webhook event")
	return s.process(ctx, eventID, reclassify(event))
}

func (s *webhookService) ListEvents(ctx context.Context, params ports.InboundEventListParams) ([]domain.InboundEvent, error) {
	switch {
	case params.Limit <= 0:
		params.Limit = defaultListLimit
	case params.Limit > maxListLimit:
		params.Limit = maxListLimit
	}
	events, err := s.events.List(ctx, params)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return events, nil
}

func (s *webhookService) GetEvent(ctx context.Context, eventID string) (*domain.InboundEvent, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if event == nil {
		return nil, apperror.ErrNotFound("Webhook event")
	}
	return event, nil
}

func (s *webhookService) markProcessed(ctx context.Context, eventID string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.events.MarkProcessed(ctx, dbTx, eventID, s.clock.Now()); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *webhookService) markCached(ctx context.Context, eventID string) {
	if err := s.cache.MarkProcessed(ctx, eventID, s.opts.ProcessedTTL); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("failed to cache processed marker in redis")
	}
}

func (s *webhookService) recordFailure(ctx context.Context, eventID string, cause error) {
	if err := s.events.RecordFailure(context.WithoutCancel(ctx), eventID, cause.Error()); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("failed to record webhook failure")
	}
}

func (s *webhookService) audit(ctx context.Context, action domain.AuditAction, resourceID, ip string, details map[string]string) {
	if s.auditSvc == nil {
		return
	}
	detailsJSON, _ := json.Marshal(details)
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: "webhook",
		ResourceID:   resourceID,
		Details:      string(detailsJSON),
		IPAddress:    ip,
		CreatedAt:    s.clock.Now(),
	})
}

// FallbackEventID derives a deterministic event id for deliveries without
// x-request-id: fb_ + hex(sha256(ts ":" body)).
func FallbackEventID(ts string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(ts))
	h.Write([]byte(":"))
	h.Write(body)
	return fallbackIDPrefix + hex.EncodeToString(h.Sum(nil))
}

// storedPayload keeps the raw body as JSON for the audit trail. Bodies that jsonb
// would refuse (invalid JSON, invalid UTF-8, \u0000 escapes) are wrapped as
// {"raw": ...} so the delivery can still be recorded.
func storedPayload(body []byte, parseErr error) json.RawMessage {
	if parseErr == nil && jsonbSafe(body) {
		return json.RawMessage(body)
	}
	if len(body) == 0 {
		return json.RawMessage(`{}`)
	}
	raw := strings.ToValidUTF8(string(body), "\uFFFD")
	raw = strings.ReplaceAll(raw, "\x00", "")
	wrapped, _ := json.Marshal(map[string]string{"raw": raw})
	return wrapped
}

// jsonbSafe reports whether PostgreSQL accepts body as jsonb text.
func jsonbSafe(body []byte) bool {
	return utf8.Valid(body) && !bytes.Contains(body, []byte(`\u0000`))
}

// reclassify rebuilds the classification of a stored event. Query parameters are
// not stored, so the persisted columns fill in what the body cannot provide.
func reclassify(event *domain.InboundEvent) domain.EventClassification {
	payload, _ := ParsePayload(event.Payload)
	ev := ClassifyEvent(payload, nil)
	if ev.Topic == "" {
		ev.Topic = event.Topic
		ev.IsPayment = event.IsPayment()
	}
	if ev.ExternalPaymentID == "" && event.ExternalPaymentID != nil {
		ev.ExternalPaymentID = *event.ExternalPaymentID
	}
	return ev
}
