package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/adapter/cache"
	"github.com/depotfleet/sigec-fleet/internal/adapter/http/fiber/handlers"
	"github.com/depotfleet/sigec-fleet/internal/adapter/http/fiber/middleware"
	"github.com/depotfleet/sigec-fleet/internal/adapter/queue"
	"github.com/depotfleet/sigec-fleet/internal/adapter/storage/postgres"
	"github.com/depotfleet/sigec-fleet/internal/adapter/vault"
	"github.com/depotfleet/sigec-fleet/internal/controller"
	"github.com/depotfleet/sigec-fleet/internal/maf"
	"github.com/depotfleet/sigec-fleet/internal/observability/telemetry"
	"github.com/depotfleet/sigec-fleet/internal/ports"
	"github.com/depotfleet/sigec-fleet/internal/service/email"
	"github.com/depotfleet/sigec-fleet/internal/service/health"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
	"github.com/depotfleet/sigec-fleet/pkg/config"

	// Import metrics to register them
	_ "github.com/depotfleet/sigec-fleet/internal/observability/telemetry"
)

const serviceName = "fleet-planner"

func main() {
	// 1. Initialize Logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting fleet planner", zap.String("service", serviceName))

	// 2. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	tracerProvider, err := telemetry.InitTracer(serviceName)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// 4. Resolve secrets from Vault, falling back to config/env values
	databaseURL := cfg.Database.URL
	solverAPIKey := cfg.SolverEngine.APIKey
	if cfg.Vault.Address != "" {
		secrets, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token)
		if err != nil {
			logger.Warn("Vault unavailable, using configured secrets", zap.Error(err))
		} else {
			if dbURL, err := secrets.GetDatabaseCredentials(); err == nil {
				databaseURL = dbURL
			}
			if apiKey, err := secrets.GetSolverEngineCredentials(); err == nil {
				solverAPIKey = apiKey
			}
		}
	}

	// 5. Initialize PostgreSQL Connection
	db, err := postgres.NewConnection(databaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}
	store := postgres.NewStore(db, logger)

	// 6. Initialize Redis Cache, falling back to an in-memory cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("Redis not available, falling back to local cache", zap.Error(err))
		redisCache = cache.NewLocalCache(5*time.Minute, logger)
	}

	// 7. Initialize Message Queue (NATS primary, RabbitMQ fallback)
	messageQueue, err := queue.NewNATSQueue(cfg.NATS.URL, logger)
	if err != nil {
		logger.Warn("NATS not available, trying RabbitMQ", zap.Error(err))
		messageQueue, err = queue.NewRabbitMQQueue(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running without a message queue", zap.Error(err))
			messageQueue = nil
		}
	}

	// 8. Initialize the MAF site-configuration loader
	mafLoader := maf.NewHTTPLoader(cfg.MAF.BaseURL, cfg.MAF.BearerToken)
	if cfg.MAF.Timeout > 0 {
		mafLoader.Client.Timeout = cfg.MAF.Timeout
	}

	// 9. Initialize the solver capability (remote engine + greedy fallback)
	var remoteEngine *solverengine.RemoteEngine
	if cfg.SolverEngine.BaseURL != "" {
		remoteEngine = solverengine.NewRemoteEngine(cfg.SolverEngine.BaseURL, solverAPIKey, logger)
	}
	capability := solverengine.NewCapability(remoteEngine)
	if remoteEngine != nil {
		probeCapability(capability, remoteEngine, cfg.SolverEngine.HealthCheckInterval, logger)
	}

	// 10. Initialize the operator notification service. notifier stays a
	// nil ports.Notifier (not a boxed nil *email.Service) when SendGrid
	// isn't configured, so Controller's nil check actually trips.
	var notifier ports.Notifier
	if cfg.SendGrid.APIKey != "" {
		emailCfg := email.DefaultConfig()
		emailCfg.SendGridAPIKey = cfg.SendGrid.APIKey
		emailCfg.FromEmail = cfg.SendGrid.FromAddr
		emailCfg.FromName = cfg.SendGrid.FromName
		emailSvc, err := email.NewService(emailCfg, logger)
		if err != nil {
			logger.Warn("Email notifier unavailable", zap.Error(err))
		} else {
			notifier = emailSvc
		}
	}

	// 11. Initialize the planning controller
	planner := controller.New(store, messageQueue, notifier, mafLoader, capability, serviceName, logger)

	// 12. Initialize health service
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to obtain sql.DB handle", zap.Error(err))
	}
	healthSvc := health.NewService(&health.Config{
		Version: serviceName,
		DB:      sqlDB,
		NatsURL: cfg.NATS.URL,
		Solver:  capability,
	}, logger)

	// 13. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.CORS))
	app.Use(middleware.CircuitBreakerWithLogger(logger))

	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(healthSvc.Health(c.Context()))
	})
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		ready := healthSvc.Ready(c.Context())
		if !ready.Ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ready)
		}
		return c.JSON(ready)
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		handler(c.Context())
		return nil
	})

	v1 := app.Group("/api/v1", middleware.AuthRequired(cfg.JWT.OpsSigningKey))
	optimizeHandler := handlers.NewOptimizeHandler(planner, logger)
	reportHandler := handlers.NewReportHandler(store, logger)
	v1.Post("/optimize/unified", optimizeHandler.Unified)
	v1.Get("/report/schedule", reportHandler.Schedule)

	// 14. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 15. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if messageQueue != nil {
		messageQueue.Close()
	}
	redisCache.Close()
	postgres.Close(db)

	logger.Info("Server exited gracefully")
}

// probeCapability checks the remote engine once at startup and then on
// every tick thereafter, keeping Capability's healthy flag current without
// blocking a run on a live check.
func probeCapability(cap *solverengine.Capability, engine *solverengine.RemoteEngine, interval time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	cap.SetHealthy(engine.Healthz(ctx))
	cancel()

	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok := engine.Healthz(ctx)
			cancel()
			cap.SetHealthy(ok)
			if !ok {
				logger.Warn("solver engine health check failed, using greedy fallback")
			}
		}
	}()
}
