package handler

import (
	"payment-webhook-gateway/internal/adapter/http/middleware"
	redisStore "payment-webhook-gateway/internal/adapter/storage/redis"
	"payment-webhook-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps webhook and ops request bodies.
const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Webhooks       map[string]ports.WebhookService // keyed by :provider
	OpsSvc         ports.WebhookService            // nil = ops API disabled
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Mode           string             // gin mode, defaults to release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	webhookHandler := NewWebhookHandler(deps.Webhooks, deps.Logger)
	r.POST(middleware.WebhookRoutePrefix+":provider", rl("webhooks"), webhookHandler.Receive)

	if deps.OpsSvc != nil && deps.TokenSvc != nil {
		opsHandler := NewOpsHandler(deps.OpsSvc)
		jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
		ops := r.Group("/api/v1/ops", jwtAuth, rl("ops"))
		{
			ops.GET("/webhook-events", opsHandler.ListEvents)
			ops.GET("/webhook-events/:id", opsHandler.GetEvent)
			ops.POST("/webhook-events/:id/replay", opsHandler.Replay)
		}
	}

	return r
}
