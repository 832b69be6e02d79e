package admin

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/api/responses"
	"github.com/angelmondragon/hms-billing/api/validators"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

type cancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"atPeriodEnd"`
}

type changePlanRequest struct {
	PlanID string `json:"planId" validate:"required,uuid"`
}

// CancelSubscription cancels the tenant's current subscription. The body is
// optional; without it the cancellation is immediate.
func CancelSubscription(svc SubscriptionAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload cancelSubscriptionRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		sub, err := svc.Cancel(ctx, tenantID, payload.AtPeriodEnd)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(sub))
	}
}

func ChangePlan(svc SubscriptionAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload changePlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		planID, err := uuid.Parse(payload.PlanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid planId"))
			return
		}

		sub, err := svc.ChangePlan(ctx, tenantID, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(sub))
	}
}
