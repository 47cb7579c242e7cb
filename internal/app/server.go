// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"modelmart-service/internal/config"
	"modelmart-service/internal/db"
	"modelmart-service/internal/events"
	accessHandler "modelmart-service/internal/handlers/access"
	catalogHandler "modelmart-service/internal/handlers/catalog"
	inferenceHandler "modelmart-service/internal/handlers/inference"
	opsHandler "modelmart-service/internal/handlers/ops"
	purchaseHandler "modelmart-service/internal/handlers/purchase"
	usageHandler "modelmart-service/internal/handlers/usage"
	webhookHandler "modelmart-service/internal/handlers/webhook"
	"modelmart-service/internal/middleware"
	"modelmart-service/internal/pkg/jwt"
	"modelmart-service/internal/pkg/lock"
	"modelmart-service/internal/pkg/ratelimit"
	"modelmart-service/internal/repository/postgres"
	accessUsecase "modelmart-service/internal/service/access"
	catalogUsecase "modelmart-service/internal/service/catalog"
	inferenceUsecase "modelmart-service/internal/service/inference"
	meteringUsecase "modelmart-service/internal/service/metering"
	paymentUsecase "modelmart-service/internal/service/payment"
	reconcileUsecase "modelmart-service/internal/service/reconcile"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	stop   context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] ✅ Connected successfully")

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- JWT Verifier -----
	verifier, err := jwt.NewVerifierFromPEM(s.cfg.JWTPublicKeyPath, s.cfg.JWTIssuer, s.cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Locks & Rate Limiter -----
	settlementLocks := lock.NewRedisLock(redisClient)
	limiter := ratelimit.NewLimiter(redisClient)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	planRepo := postgres.NewPlanRepository(pool)
	modelRepo := postgres.NewModelRepository(pool)
	usageRepo := postgres.NewUsageEventRepository(pool)
	earningsRepo := postgres.NewEarningsRepository(pool)
	settledRepo := postgres.NewSettledPaymentRepository(pool)
	auditRepo := postgres.NewAuditEventRepository(pool)

	// ----- Ops Event Hub -----
	hub := events.NewHub(logger)
	go hub.Run(ctx)

	// ----- Services (Usecases) -----
	accessService := accessUsecase.NewService(
		subscriptionRepo,
		planRepo,
		usageRepo,
		accessUsecase.Limits{
			DefaultMinuteLimit: int64(s.cfg.DefaultMinuteLimit),
			DefaultMonthLimit:  int64(s.cfg.DefaultMonthLimit),
		},
		logger,
	)
	meteringService := meteringUsecase.NewService(
		usageRepo,
		earningsRepo,
		modelRepo,
		meteringUsecase.Rates{
			PerThousandTokens: s.cfg.RatePerThousandTokens,
			PerSecond:         s.cfg.RatePerSecond,
			RevenueShare:      s.cfg.RevenueShare,
		},
		logger,
	)
	meteringQueryService := meteringUsecase.NewQueryService(usageRepo, earningsRepo)
	catalogService := catalogUsecase.NewService(planRepo, modelRepo, logger)

	payLinkClient := paymentUsecase.NewPayLinkClient(
		s.cfg.PayLinkBaseURL,
		s.cfg.PayLinkAPIKey,
		s.cfg.PaymentPollLimit,
		logger,
	)
	purchaseService := paymentUsecase.NewPurchaseService(planRepo, payLinkClient, logger)

	reconcileService := reconcileUsecase.NewService(
		dbWrapper,
		settlementLocks,
		subscriptionRepo,
		settledRepo,
		earningsRepo,
		auditRepo,
		planRepo,
		modelRepo,
		hub,
		s.cfg.RevenueShare,
		logger,
	)

	provider := inferenceUsecase.NewHTTPProvider(s.cfg.ProviderBaseURL, s.cfg.ProviderAPIKey, logger)
	invoker := inferenceUsecase.NewTimeoutInvoker(provider, s.cfg.InvokeTimeout)
	invocationService := inferenceUsecase.NewInvocationService(
		accessService,
		meteringService,
		modelRepo,
		invoker,
		logger,
	)

	// ----- Expiry Sweeper -----
	sweeper := accessUsecase.NewExpirySweeper(subscriptionRepo, 10*time.Minute, logger)
	go sweeper.Run(ctx)

	// ----- Handlers -----
	inferenceHandlerInst := inferenceHandler.NewInferenceHandler(invocationService, hub, logger)
	accessHandlerInst := accessHandler.NewAccessHandler(accessService)
	usageHandlerInst := usageHandler.NewUsageHandler(meteringQueryService)
	purchaseHandlerInst := purchaseHandler.NewPurchaseHandler(purchaseService)
	webhookHandlerInst := webhookHandler.NewWebhookHandler(reconcileService, logger)
	catalogHandlerInst := catalogHandler.NewCatalogHandler(catalogService)
	opsHandlerInst := opsHandler.NewOpsHandler(hub, auditRepo, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		InferenceHandler: inferenceHandlerInst,
		AccessHandler:    accessHandlerInst,
		UsageHandler:     usageHandlerInst,
		PurchaseHandler:  purchaseHandlerInst,
		WebhookHandler:   webhookHandlerInst,
		CatalogHandler:   catalogHandlerInst,
		OpsHandler:       opsHandlerInst,
		AuthMiddleware:   authMiddleware,
		RateLimiter:      limiter,
		WebhookSecret:    s.cfg.WebhookSecret,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("🚀 Server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown stops the background workers.
func (s *Server) Shutdown() {
	if s.stop != nil {
		s.stop()
	}
}
