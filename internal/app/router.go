// internal/app/router.go
package app

import (
	"time"

	accessHandler "modelmart-service/internal/handlers/access"
	catalogHandler "modelmart-service/internal/handlers/catalog"
	inferenceHandler "modelmart-service/internal/handlers/inference"
	opsHandler "modelmart-service/internal/handlers/ops"
	purchaseHandler "modelmart-service/internal/handlers/purchase"
	usageHandler "modelmart-service/internal/handlers/usage"
	webhookHandler "modelmart-service/internal/handlers/webhook"
	"modelmart-service/internal/middleware"
	"modelmart-service/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	InferenceHandler *inferenceHandler.InferenceHandler
	AccessHandler    *accessHandler.AccessHandler
	UsageHandler     *usageHandler.UsageHandler
	PurchaseHandler  *purchaseHandler.PurchaseHandler
	WebhookHandler   *webhookHandler.WebhookHandler
	CatalogHandler   *catalogHandler.CatalogHandler
	OpsHandler       *opsHandler.OpsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	RateLimiter      *ratelimit.Limiter
	WebhookSecret    string
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Payment Webhooks ====================
	// Signed by the provider, not by a caller token.
	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.SignatureMiddleware(h.WebhookSecret, logger))
	{
		webhooks.POST("/payment", h.WebhookHandler.HandlePaymentEvent)
	}

	// ==================== Catalog ====================
	catalog := api.Group("/catalog")
	{
		// Public endpoints - no auth required
		catalog.GET("/models", h.CatalogHandler.ListModels)
		catalog.GET("/models/:id", h.CatalogHandler.GetModel)
		catalog.GET("/plans/public", h.CatalogHandler.ListPublicPlans)
		catalog.GET("/plans/:id", h.CatalogHandler.GetPlan)

		// Owner endpoints
		catalogAuth := catalog.Group("")
		catalogAuth.Use(h.AuthMiddleware.Auth())
		{
			catalogAuth.POST("/plans", h.CatalogHandler.CreatePlan)
			catalogAuth.PUT("/plans/:id/retire", h.CatalogHandler.RetirePlan)
		}
	}

	// ==================== Inference ====================
	models := api.Group("/models")
	models.Use(h.AuthMiddleware.Auth())
	{
		models.POST("/:id/invoke", h.InferenceHandler.Invoke)
	}

	// ==================== Access & Subscriptions ====================
	access := api.Group("/access")
	access.Use(h.AuthMiddleware.Auth())
	{
		access.GET("/:model_id", h.AccessHandler.GetAccessReport)
	}

	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(h.AuthMiddleware.Auth())
	{
		subscriptions.GET("", h.AccessHandler.ListSubscriptions)
		subscriptions.GET("/active", h.AccessHandler.ListActiveSubscriptions)
	}

	// ==================== Usage & Earnings ====================
	usage := api.Group("/usage")
	usage.Use(h.AuthMiddleware.Auth())
	{
		usage.GET("/summary", h.UsageHandler.GetSummary)
	}

	earnings := api.Group("/earnings")
	earnings.Use(h.AuthMiddleware.Auth())
	{
		earnings.GET("", h.UsageHandler.GetEarnings)
	}

	// ==================== Purchases ====================
	purchases := api.Group("/purchases")
	purchases.Use(
		h.AuthMiddleware.Auth(),
		middleware.RateLimitMiddleware(h.RateLimiter, "purchases", 10, time.Minute, logger),
	)
	{
		purchases.POST("", h.PurchaseHandler.CreatePurchaseLink)
	}

	// ==================== Operator Surfaces ====================
	ops := api.Group("/ops")
	ops.Use(h.AuthMiddleware.OperatorOnly()...)
	{
		ops.GET("/audit-events", h.OpsHandler.ListAuditEvents)
	}

	// WebSocket upgrade cannot carry an Authorization header from browsers;
	// the auth middleware also accepts ?token=.
	ws := r.Group("/ws")
	ws.Use(h.AuthMiddleware.OperatorOnly()...)
	{
		ws.GET("/ops", h.OpsHandler.HandleConnection)
	}
}
