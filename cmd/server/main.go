package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rideops/commission-service/internal/adapters/postgres"
	"github.com/rideops/commission-service/internal/config"
	adminHandler "github.com/rideops/commission-service/internal/handlers/admin"
	cronHandler "github.com/rideops/commission-service/internal/handlers/cron"
	"github.com/rideops/commission-service/internal/middleware"
	"github.com/rideops/commission-service/internal/services/aggregation"
	"github.com/rideops/commission-service/internal/services/billing"
	"github.com/rideops/commission-service/internal/services/rates"
	"github.com/rideops/commission-service/pkg/logging"
	"github.com/rideops/commission-service/pkg/observability"
	"github.com/rideops/commission-service/pkg/resilience"
	"github.com/rideops/commission-service/pkg/shutdown"
)

func main() {
	// Load configuration from environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	// Initialize logger
	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting commission service",
		zap.String("version", "0.1.0"),
	)

	ctx := context.Background()

	// Resolve secrets from the configured backend
	if err := resolveSecrets(ctx, cfg, logger); err != nil {
		logger.Fatal("Failed to resolve secrets", zap.Error(err))
	}

	// Initialize database connection pool
	poolCfg := postgres.DefaultPoolConfig(databaseURL(&cfg.Database))
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	dbPool, err := postgres.Connect(ctx, poolCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	// Wire adapters
	domainLogger := logging.NewZapAdapter(logger)
	dbExecutor := postgres.NewDBExecutor(dbPool)
	periodRepo := postgres.NewPeriodRepository(dbPool)
	rateRepo := postgres.NewRateConfigRepository(dbPool)
	commissionRepo := postgres.NewCommissionRepository(dbPool)
	auditRepo := postgres.NewAuditRepository(dbPool)
	tripStore := postgres.NewTripStore(dbPool)
	registry := postgres.NewEnterpriseRegistry(dbPool)
	paymentTracker := postgres.NewPaymentTracker(dbPool, domainLogger)

	// Wire services
	rateService := rates.NewService(rateRepo, domainLogger)
	aggregator := aggregation.NewService(tripStore, registry, rateService, domainLogger, aggregation.Config{
		MaxConcurrency:       cfg.Billing.MaxConcurrency,
		TripQueriesPerSecond: float64(cfg.Billing.TripQueriesPerSecond),
	})
	billingService := billing.NewService(
		dbExecutor,
		periodRepo,
		commissionRepo,
		auditRepo,
		aggregator,
		paymentTracker,
		tripStore,
		domainLogger,
		resilience.DefaultTimeoutConfig(),
	)

	// Wire handlers
	cronPeriods := cronHandler.NewPeriodHandler(billingService, logger, cfg.Server.CronSecret, cfg.Billing.DefaultActor)
	adminPeriods := adminHandler.NewPeriodHandler(billingService, logger)
	adminRates := adminHandler.NewRateHandler(rateService, logger)

	mux := http.NewServeMux()

	// Cron endpoints (scheduler-triggered)
	mux.HandleFunc("POST /cron/close-period", cronPeriods.ClosePeriod)
	mux.HandleFunc("POST /cron/sweep-stale", cronPeriods.SweepStalePeriods)
	mux.HandleFunc("GET /cron/health", cronPeriods.HealthCheck)

	// Admin endpoints (operator-triggered)
	mux.HandleFunc("POST /admin/periods", adminPeriods.Create)
	mux.HandleFunc("GET /admin/periods", adminPeriods.List)
	mux.HandleFunc("POST /admin/periods/close", adminPeriods.Close)
	mux.HandleFunc("POST /admin/periods/reopen", adminPeriods.Reopen)
	mux.HandleFunc("POST /admin/periods/recompute", adminPeriods.Recompute)
	mux.HandleFunc("GET /admin/periods/{id}/details", adminPeriods.Details)
	mux.HandleFunc("GET /admin/periods/{id}/audit", adminPeriods.AuditTrail)
	mux.HandleFunc("POST /admin/commissions/settle", adminPeriods.Settle)
	mux.HandleFunc("POST /admin/rates", adminRates.Create)
	mux.HandleFunc("DELETE /admin/rates/{id}", adminRates.Deactivate)

	securityHeaders := middleware.NewSecurityHeaders(cfg.Logger.Development)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      securityHeaders.Middleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: resilience.DefaultTimeoutConfig().HTTPHandler,
	}

	// Metrics, health, and readiness endpoints on a separate port
	healthChecker := observability.NewHealthChecker(dbPool)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)

	go func() {
		logger.Info("HTTP server listening",
			zap.String("address", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Graceful shutdown, LIFO: HTTP first, metrics last
	manager := shutdown.NewManager(logger, 30*time.Second)
	manager.Register("metrics_server", func(context.Context) error {
		return observability.ShutdownMetricsServer(metricsServer)
	})
	manager.RegisterHTTPServer("http_server", httpServer)
	manager.WaitForShutdown()
}

// initLogger initializes the logger from config
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	if cfg.Development {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	logger, _ := zapCfg.Build()
	return logger
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// databaseURL builds the pgx connection URL
func databaseURL(db *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.Database, db.SSLMode,
	)
}
