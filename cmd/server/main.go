package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/mercato/internal"
	"github.com/dukerupert/mercato/internal/email"
	"github.com/dukerupert/mercato/internal/events"
	"github.com/dukerupert/mercato/internal/handler/api"
	"github.com/dukerupert/mercato/internal/lock"
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/repository"
	"github.com/dukerupert/mercato/internal/router"
	"github.com/dukerupert/mercato/internal/routes"
	"github.com/dukerupert/mercato/internal/service"
	"github.com/dukerupert/mercato/internal/shipping"
	"github.com/dukerupert/mercato/internal/tax"
	"github.com/dukerupert/mercato/internal/telemetry"
	"github.com/dukerupert/mercato/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	telemetry.InitBusinessMetrics("mercato")

	// Database
	logger.Info("Connecting to database...")
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(ctx, pool, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	store := repository.NewStore(pool)

	health := map[string]api.HealthCheck{
		"database": pool.Ping,
	}

	// Payment locks: Redis when configured so several instances agree
	var locker lock.Locker = lock.NewLocalLocker(lock.Options{})
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		locker = lock.NewRedisLocker(rdb, "mercato:lock:", lock.Options{}, logger)
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("Redis payment locks enabled")
	} else {
		logger.Warn("REDIS_URL not set, payment locks are process-local")
	}

	// Event fan-out
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NatsURL != "" {
		nc, err := events.Connect(cfg.NatsURL, "mercato")
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Drain()
		publisher = events.NewNATSPublisher(nc)
		health["nats"] = func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		}
		logger.Info("NATS event publishing enabled")
	}

	// Payment gateways
	gateways, hooks, err := newGateways(cfg, logger)
	if err != nil {
		return err
	}

	// Pricing
	shippingCalc := shipping.NewStateRateCalculator(shipping.DefaultStateRates, cfg.Checkout.DefaultShippingCents())
	taxCalc := tax.NewNoTaxCalculator()
	if cfg.Checkout.TaxRate > 0 {
		taxCalc, err = tax.NewPercentageCalculator(decimal.NewFromFloat(cfg.Checkout.TaxRate), "VAT")
		if err != nil {
			return fmt.Errorf("failed to initialize tax calculator: %w", err)
		}
	}

	// Services
	ledger := service.NewInventoryLedger(logger)
	notifier := service.NewNotifier(store, publisher, logger)
	callbackURL := cfg.BaseURL + "/api/v1/payments/callback"

	cartService := service.NewCartService(store, ledger, cfg.Payments.Currency, logger)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Store:       store,
		Gateways:    gateways,
		Ledger:      ledger,
		Promos:      service.NewPromoEngine(logger),
		Pricer:      service.NewPricer(shippingCalc, taxCalc, cfg.Payments.Currency),
		Locker:      locker,
		Notifier:    notifier,
		Logger:      logger,
		CallbackURL: callbackURL,
	})
	orderService := service.NewOrderService(store)
	adminService := service.NewAdminOrderService(store, ledger, checkoutService, notifier, logger)

	// Email delivery for the worker
	var sender email.Sender = &email.LogSender{Logger: logger}
	if cfg.Email.Host != "" {
		sender = email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	} else {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
	}
	emailService, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	verifier := middleware.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	metrics := middleware.NewMetrics("mercato", nil)

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0
	}

	rateConfig := middleware.DefaultRateLimiterConfig()
	rateConfig.RequestsPerSecond = cfg.RateLimit.RPS
	rateConfig.BurstSize = cfg.RateLimit.Burst
	defaultRateLimiter := middleware.NewRateLimiter(rateConfig)
	defer defaultRateLimiter.Stop()
	strictRateLimiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())
	defer strictRateLimiter.Stop()

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		telemetry.SentryMiddleware(),
		router.Logger(logger),
		metrics.Middleware,
		router.Recovery(logger),
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		defaultRateLimiter.Middleware,
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		HealthHandler:  api.NewHealthHandler(health),
		MetricsHandler: metrics.Handler(),
	})
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		Verifier:        verifier,
		StrictLimiter:   strictRateLimiter,
		CartHandler:     api.NewCartHandler(cartService),
		CheckoutHandler: api.NewCheckoutHandler(checkoutService, callbackURL),
		OrderHandler:    api.NewOrderHandler(orderService, checkoutService),
		PaymentHandler:  api.NewPaymentHandler(checkoutService),
	})
	routes.RegisterAdminRoutes(r, routes.AdminDeps{
		Verifier:     verifier,
		OrderHandler: api.NewAdminOrderHandler(adminService),
	})
	routes.RegisterWebhookRoutes(r, hooks.deps(checkoutService))

	// ==========================================================================
	// Start worker and server
	// ==========================================================================

	w := worker.NewWorker(store, emailService, cartService, worker.Config{
		PollInterval:    cfg.Worker.PollInterval,
		MaxConcurrency:  cfg.Worker.Concurrency,
		CleanupInterval: time.Hour,
		CartIdleTime:    cfg.Checkout.CartAbandonAfter,
	}, logger)
	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Start(ctx) }()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.CORS(cfg.CORSOrigins)(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env, "gateways", gateways.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stop()
		<-workerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := <-workerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", "error", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
