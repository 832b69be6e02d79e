package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/hms-billing/api/responses"
	"github.com/angelmondragon/hms-billing/pkg/config"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

const (
	readinessTimeout = 2 * time.Second
	envHeader        = "X-HMS-Billing-Env"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the ledger database and Redis. Redis is reported but does
// not fail readiness; webhook intake and the scheduler degrade without it.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		if db == nil {
			checks["database"] = "not configured"
		} else if err := db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable").WithDetails(checks))
			return
		}
		if redis == nil {
			checks["redis"] = "not configured"
		} else if err := redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			if logg != nil {
				logg.Warn(r.Context(), "readiness: redis unavailable")
			}
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
