// Package main provides the entry point of the faredown pricing service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/faredown-pricing/app/handlers"
	"github.com/amirphl/faredown-pricing/app/router"
	"github.com/amirphl/faredown-pricing/app/scheduler"
	"github.com/amirphl/faredown-pricing/app/services"
	businessflow "github.com/amirphl/faredown-pricing/business_flow"
	"github.com/amirphl/faredown-pricing/config"
	"github.com/amirphl/faredown-pricing/migrations"
	"github.com/amirphl/faredown-pricing/pricing"
	"github.com/amirphl/faredown-pricing/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logger    zerolog.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, logCloser := config.NewLogger(cfg.Logging)
	defer logCloser.Close()
	logger = logger.With().
		Str("service", "faredown-pricing").
		Str("env", cfg.Deployment.Environment).
		Str("version", cfg.Deployment.Version).
		Logger()

	logger.Info().Msg("starting faredown pricing service")

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-sigChan
	logger.Info().Msg("shutting down gracefully")

	if err := app.router.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	// background workers and connections stop after the last request drained
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	logger.Info().Msg("server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger zerolog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormLog := logger.With().Str("component", "gorm").Logger()
	logLevel := gormlogger.Error
	if cfg.SlowQueryLog {
		logLevel = gormlogger.Warn
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(&gormLog, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrations.Up(sqlDB); err != nil {
			return nil, err
		}
		logger.Info().Msg("database migrations applied")
	}

	logger.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("database connection established")

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A nil client means the service runs without Redis.
func initializeCache(cfg config.CacheConfig, logger zerolog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Int("db", cfg.RedisDB).Msg("redis connection established")
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity issues.
// The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger zerolog.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn().Err(err).Msg("redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializePublisher returns the Kafka reporting publisher, or a no-op one when Kafka is off
func initializePublisher(cfg config.KafkaConfig, logger zerolog.Logger) services.EventPublisher {
	if !cfg.Enabled {
		logger.Info().Msg("kafka reporting disabled")
		return services.NoopEventPublisher{}
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.ReportTopic).Msg("kafka reporting enabled")
	return services.NewKafkaEventPublisher(services.NewKafkaWriter(cfg.Brokers, cfg.ReportTopic))
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger zerolog.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, func() { _ = sqlDB.Close() })

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	healthChecks := map[string]router.HealthCheck{
		"database": sqlDB.PingContext,
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthCheckInterval, logger))
		healthChecks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	// Initialize repositories
	ruleRepo := repository.NewMarkupRuleRepository(db)
	promoRepo := repository.NewPromoCodeRepository(db)
	redemptionRepo := repository.NewPromoRedemptionRepository(db)
	auditRepo := repository.NewPricingAuditRepository(db)

	// Rules go through the Redis catalog cache; promo counters always hit Postgres
	catalog := services.NewCatalogCache(rc, ruleRepo, cfg.Cache.RedisPrefix, cfg.Pricing.CatalogCacheTTL, logger)
	store := repository.NewPricingStore(ruleRepo, promoRepo)

	var sessions pricing.SessionStore
	if rc != nil {
		sessions = services.NewRedisSessionStore(rc, cfg.Cache.RedisPrefix, cfg.Pricing.SessionRetention)
	} else {
		logger.Warn().Msg("redis disabled, bargain sessions are kept in process memory")
		sessions = pricing.NewMemorySessionStore()
	}

	engine := pricing.NewEngine(catalog, store, sessions, pricing.Config{
		MinimumMargin:      cfg.Pricing.MinimumMargin,
		SessionTTL:         cfg.Pricing.BargainSessionTTL,
		MaxBargainAttempts: cfg.Pricing.BargainMaxAttempts,
		FareSeedBucket:     cfg.Pricing.FareSeedBucket,
		SessionRetention:   cfg.Pricing.SessionRetention,
	}, pricing.WithLogger(logger.With().Str("component", "engine").Logger()))

	publisher := initializePublisher(cfg.Kafka, logger)
	stopFuncs = append(stopFuncs, func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close report publisher")
		}
	})

	// Initialize flows
	pricingFlow := businessflow.NewPricingFlow(engine, db, auditRepo, redemptionRepo, promoRepo, publisher, cfg.Pricing.DefaultCurrency, logger)
	markupRuleFlow := businessflow.NewMarkupRuleFlow(ruleRepo, catalog, logger)
	promoCodeFlow := businessflow.NewPromoCodeFlow(promoRepo, redemptionRepo, logger)

	// Initialize handlers
	pricingHandler := handlers.NewPricingHandler(pricingFlow, cfg.Server.RequestTimeout, logger)
	markupRuleHandler := handlers.NewMarkupRuleAdminHandler(markupRuleFlow, cfg.Server.RequestTimeout, logger)
	promoCodeHandler := handlers.NewPromoCodeAdminHandler(promoCodeFlow, cfg.Server.RequestTimeout, logger)

	appRouter := router.NewFiberRouter(cfg, logger, pricingHandler, markupRuleHandler, promoCodeHandler, healthChecks)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewPricingScheduler(
			pricingFlow,
			promoCodeFlow,
			cfg.Scheduler.BargainSweepEvery,
			cfg.Scheduler.PromoExpiryEvery,
			cfg.Scheduler.SweepRunTimeout,
			logger,
		)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
