package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/api/responses"
	"github.com/angelmondragon/hms-billing/api/validators"
	"github.com/angelmondragon/hms-billing/internal/usage"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

type UsageMeter interface {
	RecordUsage(ctx context.Context, tenantID uuid.UUID, metric enums.MetricType, delta int64) (*models.UsageMeter, error)
	CheckResourceLimit(ctx context.Context, tenantID uuid.UUID, metric enums.MetricType) (usage.LimitCheck, error)
	ListUsage(ctx context.Context, tenantID uuid.UUID) ([]models.UsageMeter, error)
}

type recordUsageRequest struct {
	Metric string `json:"metric" validate:"required"`
	Delta  int64  `json:"delta" validate:"required"`
}

// RecordUsage adjusts a tenant's counter for the current period. Negative
// deltas release capacity, for example when a user is removed.
func RecordUsage(svc UsageMeter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload recordUsageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		metric, err := enums.ParseMetricType(payload.Metric)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid metric"))
			return
		}

		meter, err := svc.RecordUsage(ctx, tenantID, metric, payload.Delta)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toUsageMeterDTO(*meter))
	}
}

func CheckUsage(svc UsageMeter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		metric, err := validators.ParseMetricParam(r, "metric")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		check, err := svc.CheckResourceLimit(ctx, tenantID, metric)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, check)
	}
}

func ListUsage(svc UsageMeter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		meters, err := svc.ListUsage(ctx, tenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]usageMeterDTO, 0, len(meters))
		for _, m := range meters {
			out = append(out, toUsageMeterDTO(m))
		}
		responses.WriteSuccess(w, out)
	}
}
