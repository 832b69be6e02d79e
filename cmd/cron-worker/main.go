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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/hms-billing/internal/billing"
	"github.com/angelmondragon/hms-billing/internal/cron"
	"github.com/angelmondragon/hms-billing/internal/subscriptions"
	"github.com/angelmondragon/hms-billing/internal/usage"
	"github.com/angelmondragon/hms-billing/pkg/config"
	"github.com/angelmondragon/hms-billing/pkg/db"
	"github.com/angelmondragon/hms-billing/pkg/instance"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/metrics"
	"github.com/angelmondragon/hms-billing/pkg/migrate"
	"github.com/angelmondragon/hms-billing/pkg/outbox"
	"github.com/angelmondragon/hms-billing/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Scheduler.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	metricsServer := serveMetrics(ctx, cfg.Metrics.Addr, logg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	ledger := billing.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outboxRepo, logg)

	invoices, err := billing.NewService(billing.ServiceParams{Repo: ledger, Outbox: emitter})
	if err != nil {
		return nil, err
	}
	usageService, err := usage.NewService(usage.NewRepository(dbClient.DB()), ledger, logg, nil)
	if err != nil {
		return nil, err
	}
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              ledger,
		Invoices:          invoices,
		Meters:            usageService,
		Outbox:            emitter,
		TransactionRunner: dbClient,
		Logger:            logg,
		GracePeriod:       cfg.Billing.GracePeriod(),
		TrialDays:         cfg.Billing.TrialDays,
	})
	if err != nil {
		return nil, err
	}

	enforcer, err := cron.NewSubscriptionEnforcerJob(cron.SubscriptionEnforcerJobParams{
		Logger:        logg,
		Subscriptions: ledger,
		Enforcer:      subscriptionService,
	})
	if err != nil {
		return nil, err
	}
	generator, err := cron.NewChargeGeneratorJob(cron.ChargeGeneratorJobParams{
		Logger:     logg,
		DB:         dbClient,
		Admissions: ledger,
		Invoices:   invoices,
		Currency:   cfg.Billing.DefaultCurrency,
		DueIn:      time.Duration(cfg.Billing.InvoiceDueDays) * 24 * time.Hour,
		BatchSize:  cfg.Billing.GeneratorBatchSize,
	})
	if err != nil {
		return nil, err
	}
	overdue, err := cron.NewOverdueInvoiceJob(cron.OverdueInvoiceJobParams{
		Logger:   logg,
		DB:       dbClient,
		Invoices: ledger,
		Marker:   invoices,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   cfg.Scheduler.OutboxRetentionDays,
		MinAttempts: cfg.Scheduler.OutboxRetentionAttempts,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	sched := cfg.Scheduler
	for _, item := range []struct {
		job      cron.Job
		schedule cron.Schedule
	}{
		{enforcer, cron.Schedule{Interval: sched.EnforcerInterval, InitialDelay: sched.EnforcerInitialDelay}},
		{generator, cron.Schedule{Interval: sched.GeneratorInterval, InitialDelay: sched.GeneratorInitialDelay}},
		{overdue, cron.Schedule{Interval: sched.OverdueInterval, InitialDelay: sched.EnforcerInitialDelay}},
		{retention, cron.Schedule{Interval: sched.OutboxRetentionInterval, InitialDelay: time.Minute}},
	} {
		if err := registry.Register(item.job, item.schedule); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func serveMetrics(ctx context.Context, addr string, logg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	return server
}
