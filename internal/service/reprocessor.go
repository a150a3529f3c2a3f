package service

import (
	"context"
	"errors"
	"time"

	"payment-webhook-gateway/internal/core/domain"
	"payment-webhook-gateway/internal/core/ports"
	"payment-webhook-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// ReprocessOptions configures the background reprocessor.
type ReprocessOptions struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Lease       time.Duration
}

// Reprocessor periodically replays inbound events that were recorded but never
// processed, for deliveries the provider has stopped retrying.
type Reprocessor struct {
	events   ports.InboundEventRepository
	webhooks ports.WebhookService
	clock    domain.Clock
	opts     ReprocessOptions
	log      zerolog.Logger
}

// NewReprocessor creates a new Reprocessor.
func NewReprocessor(events ports.InboundEventRepository, webhooks ports.WebhookService, clock domain.Clock, opts ReprocessOptions, log zerolog.Logger) *Reprocessor {
	return &Reprocessor{events: events, webhooks: webhooks, clock: clock, opts: opts, log: log}
}

// Run ticks every Interval until ctx is cancelled.
func (r *Reprocessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.opts.Interval).Msg("reprocessor started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reprocessor stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("reprocessor pass failed")
			}
		}
	}
}

// RunOnce replays one batch of stale unprocessed events and returns how many
// were completed.
func (r *Reprocessor) RunOnce(ctx context.Context) (int, error) {
	unprocessed := false
	before := r.clock.Now().Add(-r.opts.Lease)

	events, err := r.events.List(ctx, ports.InboundEventListParams{
		Processed:      &unprocessed,
		ReceivedBefore: &before,
		MaxAttempts:    r.opts.MaxAttempts,
		Limit:          r.opts.BatchSize,
	})
	if err != nil {
		return 0, err
	}

	done := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		res, err := r.webhooks.Replay(ctx, ev.ID)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Code == apperror.ErrEventInFlight().Code {
				r.log.Debug().Str("event_id", ev.ID).Msg("event claimed elsewhere, skipping")
				continue
			}
			r.log.Warn().Err(err).Str("event_id", ev.ID).Int("attempts", ev.Attempts).Msg("reprocess failed")
			continue
		}
		done++
		r.log.Info().Str("event_id", ev.ID).Str("outcome", string(res.Outcome)).Msg("event reprocessed")
	}

	if len(events) > 0 {
		r.log.Info().Int("candidates", len(events)).Int("completed", done).Msg("reprocessor pass finished")
	}
	return done, nil
}
