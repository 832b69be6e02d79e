package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/hms-billing/api/controllers"
	admincontrollers "github.com/angelmondragon/hms-billing/api/controllers/admin"
	billingcontrollers "github.com/angelmondragon/hms-billing/api/controllers/billing"
	webhookcontrollers "github.com/angelmondragon/hms-billing/api/controllers/webhooks"
	"github.com/angelmondragon/hms-billing/api/middleware"
	"github.com/angelmondragon/hms-billing/internal/payments"
	webhooksvc "github.com/angelmondragon/hms-billing/internal/webhooks"
	"github.com/angelmondragon/hms-billing/pkg/config"
	"github.com/angelmondragon/hms-billing/pkg/db"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/redis"
)

type webhookHandler interface {
	Handle(ctx context.Context, provider enums.PaymentProvider, req payments.WebhookRequest) (*webhooksvc.Result, error)
}

// RouterParams carries everything the HTTP surface is built from. Nil
// services still mount their routes and answer INTERNAL_ERROR.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	Webhooks      webhookHandler
	Payments      billingcontrollers.PaymentInitiator
	Subscriptions admincontrollers.SubscriptionAdmin
	Usage         admincontrollers.UsageMeter
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var redisPinger interface{ Ping(context.Context) error }
	if p.Redis != nil {
		redisPinger = p.Redis
	}
	var dbPinger interface{ Ping(context.Context) error }
	if p.DB != nil {
		dbPinger = p.DB
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/{provider}", webhookcontrollers.PaymentWebhook(p.Webhooks, logg))

		initiate := r.With()
		if p.Redis != nil {
			policy := middleware.NewRateLimitPolicy("initiate", time.Minute, cfg.Billing.InitiateIPLimitPerMin)
			initiate = r.With(middleware.RateLimit(policy, p.Redis, logg))
		}
		initiate.Post("/invoices/{invoiceId}/payments", billingcontrollers.InitiatePayment(p.Payments, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminKey(cfg.Admin.APIKey, logg))
		r.Post("/tenants", admincontrollers.ProvisionTenant(p.Subscriptions, logg))
		r.Route("/tenants/{tenantId}", func(r chi.Router) {
			r.Get("/grace-period", admincontrollers.GracePeriod(p.Subscriptions, logg))
			r.Post("/subscriptions/{subscriptionId}/reactivate", admincontrollers.ReactivateSubscription(p.Subscriptions, logg))
			r.Post("/subscription/cancel", admincontrollers.CancelSubscription(p.Subscriptions, logg))
			r.Post("/subscription/change-plan", admincontrollers.ChangePlan(p.Subscriptions, logg))
			r.Get("/usage", admincontrollers.ListUsage(p.Usage, logg))
			r.Post("/usage", admincontrollers.RecordUsage(p.Usage, logg))
			r.Get("/usage/{metric}", admincontrollers.CheckUsage(p.Usage, logg))
		})
	})

	return r
}
