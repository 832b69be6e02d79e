package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/api/responses"
	"github.com/angelmondragon/hms-billing/api/validators"
	"github.com/angelmondragon/hms-billing/internal/subscriptions"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

// SubscriptionAdmin is the slice of the subscription service the admin API drives.
type SubscriptionAdmin interface {
	ProvisionTenant(ctx context.Context, input subscriptions.ProvisionInput) (*subscriptions.ProvisionResult, error)
	Reactivate(ctx context.Context, tenantID, subscriptionID uuid.UUID) (*models.Subscription, error)
	GracePeriodStatus(ctx context.Context, tenantID uuid.UUID) (*subscriptions.GraceStatus, error)
	Cancel(ctx context.Context, tenantID uuid.UUID, atPeriodEnd bool) (*models.Subscription, error)
	ChangePlan(ctx context.Context, tenantID, planID uuid.UUID) (*models.Subscription, error)
}

type provisionTenantRequest struct {
	Name      string `json:"name" validate:"required"`
	PlanID    string `json:"planId" validate:"required,uuid"`
	TrialDays *int   `json:"trialDays,omitempty" validate:"omitempty,gte=0"`
}

type provisionTenantResponse struct {
	Tenant       *tenantDTO       `json:"tenant"`
	Subscription *subscriptionDTO `json:"subscription"`
}

func ProvisionTenant(svc SubscriptionAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var payload provisionTenantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		planID, err := uuid.Parse(payload.PlanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid planId"))
			return
		}

		result, err := svc.ProvisionTenant(ctx, subscriptions.ProvisionInput{
			Name:      validators.SanitizeString(payload.Name, 200),
			PlanID:    planID,
			TrialDays: payload.TrialDays,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, provisionTenantResponse{
			Tenant:       toTenantDTO(result.Tenant),
			Subscription: toSubscriptionDTO(result.Subscription),
		})
	}
}

// ReactivateSubscription restores a SUSPENDED subscription after an operator
// confirms payment out of band.
func ReactivateSubscription(svc SubscriptionAdmin, logg *logger.Logger) http.HandlerFunc {
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
		subscriptionID, err := validators.ParseUUIDParam(r, "subscriptionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Reactivate(ctx, tenantID, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(sub))
	}
}

func GracePeriod(svc SubscriptionAdmin, logg *logger.Logger) http.HandlerFunc {
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
		status, err := svc.GracePeriodStatus(ctx, tenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
