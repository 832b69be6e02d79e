package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/hms-billing/api/routes"
	"github.com/angelmondragon/hms-billing/internal/billing"
	"github.com/angelmondragon/hms-billing/internal/payments"
	"github.com/angelmondragon/hms-billing/internal/reconciler"
	"github.com/angelmondragon/hms-billing/internal/subscriptions"
	"github.com/angelmondragon/hms-billing/internal/usage"
	"github.com/angelmondragon/hms-billing/internal/webhooks"
	"github.com/angelmondragon/hms-billing/pkg/config"
	"github.com/angelmondragon/hms-billing/pkg/db"
	"github.com/angelmondragon/hms-billing/pkg/instance"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/metrics"
	"github.com/angelmondragon/hms-billing/pkg/migrate"
	"github.com/angelmondragon/hms-billing/pkg/outbox"
	"github.com/angelmondragon/hms-billing/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if cfg.Admin.APIKey == "" {
		if cfg.App.IsProd() {
			logg.Error(context.Background(), "admin api key required in prod", errors.New("HMSBILLING_ADMIN_API_KEY is empty"))
			os.Exit(1)
		}
		logg.Warn(context.Background(), "admin api key not set; admin routes will reject every request")
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	ledger := billing.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	invoiceService, err := billing.NewService(billing.ServiceParams{Repo: ledger, Outbox: emitter})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}
	usageService, err := usage.NewService(usage.NewRepository(dbClient.DB()), ledger, logg, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              ledger,
		Invoices:          invoiceService,
		Meters:            usageService,
		Outbox:            emitter,
		TransactionRunner: dbClient,
		Logger:            logg,
		GracePeriod:       cfg.Billing.GracePeriod(),
		TrialDays:         cfg.Billing.TrialDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}
	reconcilerService, err := reconciler.NewService(reconciler.ServiceParams{
		Repo:              ledger,
		Subscriptions:     subscriptionService,
		Outbox:            emitter,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	adapters, err := buildPaymentRegistry(context.Background(), cfg, billingMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to configure payment providers", err)
		os.Exit(1)
	}
	paymentService, err := payments.NewService(payments.ServiceParams{
		Invoices:    ledger,
		Registry:    adapters,
		Logger:      logg,
		Limiter:     redisClient,
		LimitPerMin: cfg.Billing.InitiateLimitPerMin,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}
	guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Billing.WebhookIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}
	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		Adapters:   adapters,
		Reconciler: reconcilerService,
		Logs:       ledger,
		Guard:      guard,
		Metrics:    billingMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"instance":  instance.GetID(),
		"providers": adapters.Providers(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Gatherer:      prometheus.DefaultGatherer,
			Webhooks:      webhookService,
			Payments:      paymentService,
			Subscriptions: subscriptionService,
			Usage:         usageService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logg.Info(ctx, "api server shutting down gracefully")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
