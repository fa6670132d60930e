package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	budgetapp "github.com/procure/backend/internal/application/budget"
	eventapp "github.com/procure/backend/internal/application/event"
	identityapp "github.com/procure/backend/internal/application/identity"
	orgapp "github.com/procure/backend/internal/application/org"
	"github.com/procure/backend/internal/infrastructure/audit"
	"github.com/procure/backend/internal/infrastructure/auth"
	"github.com/procure/backend/internal/infrastructure/cache"
	"github.com/procure/backend/internal/infrastructure/config"
	"github.com/procure/backend/internal/infrastructure/event"
	"github.com/procure/backend/internal/infrastructure/logger"
	"github.com/procure/backend/internal/infrastructure/persistence"
	"github.com/procure/backend/internal/infrastructure/persistence/tenant"
	"github.com/procure/backend/internal/infrastructure/telemetry"
	"github.com/procure/backend/internal/interfaces/http/handler"
	"github.com/procure/backend/internal/interfaces/http/middleware"
	"github.com/procure/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting procurement backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Install the tenant isolation callbacks. Every query, update, and
	// delete on a tenant-owned table is conjoined with the bound tenant;
	// an unbound context fails closed.
	tenantCallback := tenant.NewTenantCallback("tenant_id", true)
	tenantCallback.RegisterCallbacks(db.DB)

	// Database query tracing
	if cfg.Telemetry.DBTraceEnabled {
		tracingCfg := telemetry.DefaultDBTracingConfig()
		tracingCfg.Enabled = true
		if err := telemetry.NewDBTracingPlugin(tracingCfg, log).Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Initialize repositories
	budgetRepo := persistence.NewGormBudgetRepository(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	transferRepo := persistence.NewGormTransferRepository(db.DB)
	consumptionRepo := persistence.NewGormConsumptionRepository(db.DB)
	orgUnitRepo := persistence.NewGormOrgUnitRepository(db.DB)
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	auditSink := audit.NewGormAuditSink(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Tenant resolution cache: Redis when configured, process memory
	// otherwise
	var tenantCache cache.TenantResolutionCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisTenantCache(cache.RedisOptions{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		tenantCache = redisCache
		log.Info("Tenant resolution cache backed by Redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		tenantCache = cache.NewInMemoryTenantCache()
	}

	// Event bus and serializer
	eventSerializer := event.NewLedgerEventSerializer()
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Outbox processor for guaranteed event delivery
	if cfg.Event.ProcessorEnabled {
		processorCfg := event.DefaultOutboxProcessorConfig()
		if cfg.Event.BatchSize > 0 {
			processorCfg.BatchSize = cfg.Event.BatchSize
		}
		if cfg.Event.PollInterval > 0 {
			processorCfg.PollInterval = cfg.Event.PollInterval
		}

		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, processorCfg, log)
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", processorCfg.BatchSize),
			zap.Duration("poll_interval", processorCfg.PollInterval),
		)
	}

	// Initialize application services
	jwtService := auth.NewJWTService(cfg.JWT)
	ledgerService := budgetapp.NewLedgerService(txScope, budgetRepo, auditSink, log)
	usageService := budgetapp.NewUsageReportService(budgetRepo, allocationRepo, transferRepo, consumptionRepo, log)
	orgUnitService := orgapp.NewOrgUnitService(orgUnitRepo, log)
	tenantService := identityapp.NewTenantService(tenantRepo, log)
	tenantResolver := identityapp.NewTenantResolver(tenantRepo, tenantCache, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Initialize HTTP handlers
	budgetHandler := handler.NewBudgetHandler(ledgerService, usageService)
	orgUnitHandler := handler.NewOrgUnitHandler(orgUnitService)
	tenantHandler := handler.NewTenantHandler(tenantService, tenantResolver)
	outboxHandler := handler.NewOutboxAdminHandler(outboxService)
	healthHandler := handler.NewHealthHandler(db.DB)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.CORS())
	engine.Use(middleware.JWTAuth(middleware.JWTAuthConfig{
		Service:   jwtService,
		SkipPaths: []string{"/health", "/ready"},
		Logger:    log,
	}))

	healthHandler.RegisterRoutes(engine)

	// Tenant-scoped routes run behind the binding interceptor; provisioning
	// routes stay on the unscoped group
	router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithTenantMiddleware(
			middleware.TenantBinding(middleware.TenantBindingConfig{Resolver: tenantResolver, Logger: log}),
			middleware.RequireTenant(),
		),
	).
		Register(tenantHandler).
		Register(outboxHandler).
		RegisterTenantScoped(budgetHandler).
		RegisterTenantScoped(orgUnitHandler).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
