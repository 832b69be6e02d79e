package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
)

// ParseUUIDParam reads a chi path parameter as a uuid.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid path parameter").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// ParseProviderParam reads a provider path segment such as "paystack" or "mtn_momo".
func ParseProviderParam(r *http.Request, name string) (enums.PaymentProvider, error) {
	provider, err := enums.ParsePaymentProvider(chi.URLParam(r, name))
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment provider").WithDetails(map[string]any{"provider": chi.URLParam(r, name)})
	}
	return provider, nil
}

// ParseMetricParam reads a usage metric path segment.
func ParseMetricParam(r *http.Request, name string) (enums.MetricType, error) {
	metric, err := enums.ParseMetricType(chi.URLParam(r, name))
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown usage metric").WithDetails(map[string]any{"field": name})
	}
	return metric, nil
}
