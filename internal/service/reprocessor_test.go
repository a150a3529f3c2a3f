package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-webhook-gateway/internal/core/domain"
	"payment-webhook-gateway/internal/core/ports"
	"payment-webhook-gateway/internal/core/ports/mocks"
	"payment-webhook-gateway/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestReprocessor(ctrl *gomock.Controller, interval time.Duration) (*Reprocessor, *mocks.MockInboundEventRepository, *mocks.MockWebhookService) {
	events := mocks.NewMockInboundEventRepository(ctrl)
	webhooks := mocks.NewMockWebhookService(ctrl)
	r := NewReprocessor(events, webhooks, domain.FixedClock{FixedTime: testNow}, ReprocessOptions{
		Interval:    interval,
		BatchSize:   25,
		MaxAttempts: 5,
		Lease:       testLease,
	}, newTestLogger())
	return r, events, webhooks
}

func TestReprocessor_RunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, events, webhooks := newTestReprocessor(ctrl, time.Minute)
	ctx := context.Background()

	unprocessed := false
	before := testNow.Add(-testLease)
	events.EXPECT().List(ctx, ports.InboundEventListParams{
		Processed:      &unprocessed,
		ReceivedBefore: &before,
		MaxAttempts:    5,
		Limit:          25,
	}).Return([]domain.InboundEvent{{ID: "a"}, {ID: "b"}, {ID: "c"}}, nil)

	webhooks.EXPECT().Replay(ctx, "a").Return(&ports.IngestResult{EventID: "a", Outcome: ports.IngestProcessed}, nil)
	webhooks.EXPECT().Replay(ctx, "b").Return(nil, apperror.ErrEventInFlight())
	webhooks.EXPECT().Replay(ctx, "c").Return(nil, apperror.ErrWebhookProcessing(errors.New("boom")))

	done, err := r.RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, done)
}

func TestReprocessor_RunOnce_ListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, events, _ := newTestReprocessor(ctrl, time.Minute)
	events.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := r.RunOnce(context.Background())

	assert.Error(t, err)
}

func TestReprocessor_Run_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r, events, _ := newTestReprocessor(ctrl, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	ticked := make(chan struct{}, 1)
	events.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, ports.InboundEventListParams) ([]domain.InboundEvent, error) {
			select {
			case ticked <- struct{}{}:
			default:
			}
			return nil, nil
		},
	).MinTimes(1)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("reprocessor never ticked")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reprocessor did not stop")
	}
}
