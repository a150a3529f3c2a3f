package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-webhook-gateway/config"
	httpHandler "payment-webhook-gateway/internal/adapter/http/handler"
	"payment-webhook-gateway/internal/adapter/provider/mercadopago"
	pgStorage "payment-webhook-gateway/internal/adapter/storage/postgres"
	redisStorage "payment-webhook-gateway/internal/adapter/storage/redis"
	"payment-webhook-gateway/internal/core/domain"
	"payment-webhook-gateway/internal/core/ports"
	"payment-webhook-gateway/internal/service"
	"payment-webhook-gateway/pkg/logger"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional; real deployments inject MPW_* directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("MPW_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting payment webhook gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Repositories
	eventRepo := pgStorage.NewInboundEventRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	subscriptionRepo := pgStorage.NewSubscriptionRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Redis stores
	processedCache := redisStorage.NewProcessedEventCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	clock := domain.RealClock{}
	provider := mercadopago.NewClient(cfg.Provider.BaseURL, cfg.Provider.AccessToken, &http.Client{Timeout: cfg.Provider.LookupTimeout + time.Second})

	// Services
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))
	activator := service.NewSubscriptionActivator(subscriptionRepo, clock, logger.Component(log, "subscription"))
	reconciler := service.NewPaymentReconciler(
		provider,
		paymentRepo,
		eventRepo,
		activator,
		transactor,
		clock,
		cfg.Provider.LookupTimeout,
		logger.Component(log, "reconciler"),
	)
	webhookSvc := service.NewWebhookService(
		eventRepo,
		processedCache,
		service.NewWebhookSignatureVerifier(),
		reconciler,
		transactor,
		auditSvc,
		clock,
		service.WebhookOptions{
			Secret:           cfg.Webhook.Secret,
			RequireRequestID: cfg.Webhook.RequireRequestID,
			Lease:            cfg.Webhook.Lease,
			ProcessedTTL:     cfg.Webhook.ProcessedTTL,
		},
		logger.Component(log, "webhook"),
	)

	deps := httpHandler.RouterDeps{
		Webhooks:       map[string]ports.WebhookService{mercadopago.ProviderName: webhookSvc},
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       auditSvc,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	}
	if cfg.Ops.JWTSecret != "" {
		deps.OpsSvc = webhookSvc
		deps.TokenSvc = service.NewJWTTokenService(cfg.Ops.JWTSecret, cfg.Ops.TokenTTL, cfg.Ops.JWTIssuer)
	} else {
		log.Warn().Msg("ops.jwt_secret not set, ops API disabled")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpHandler.SetupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Reprocess.Enabled {
		reprocessor := service.NewReprocessor(eventRepo, webhookSvc, clock, service.ReprocessOptions{
			Interval:    cfg.Reprocess.Interval,
			BatchSize:   cfg.Reprocess.BatchSize,
			MaxAttempts: cfg.Reprocess.MaxAttempts,
			Lease:       cfg.Webhook.Lease,
		}, logger.Component(log, "reprocessor"))
		g.Go(func() error {
			return reprocessor.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server exited")
}
