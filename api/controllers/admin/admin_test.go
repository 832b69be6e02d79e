package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/internal/subscriptions"
	"github.com/angelmondragon/hms-billing/internal/usage"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

type stubSubscriptionAdmin struct {
	provisionInput subscriptions.ProvisionInput
	provisioned    *subscriptions.ProvisionResult
	reactivated    *models.Subscription
	grace          *subscriptions.GraceStatus
	changed        *models.Subscription
	atPeriodEnd    bool
	planID         uuid.UUID
	err            error
}

func (s *stubSubscriptionAdmin) ProvisionTenant(ctx context.Context, input subscriptions.ProvisionInput) (*subscriptions.ProvisionResult, error) {
	s.provisionInput = input
	return s.provisioned, s.err
}

func (s *stubSubscriptionAdmin) Reactivate(ctx context.Context, tenantID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	return s.reactivated, s.err
}

func (s *stubSubscriptionAdmin) GracePeriodStatus(ctx context.Context, tenantID uuid.UUID) (*subscriptions.GraceStatus, error) {
	return s.grace, s.err
}

func (s *stubSubscriptionAdmin) Cancel(ctx context.Context, tenantID uuid.UUID, atPeriodEnd bool) (*models.Subscription, error) {
	s.atPeriodEnd = atPeriodEnd
	return s.changed, s.err
}

func (s *stubSubscriptionAdmin) ChangePlan(ctx context.Context, tenantID, planID uuid.UUID) (*models.Subscription, error) {
	s.planID = planID
	return s.changed, s.err
}

type stubUsageMeter struct {
	lastMetric enums.MetricType
	lastDelta  int64
	meter      *models.UsageMeter
	check      usage.LimitCheck
	err        error
}

func (s *stubUsageMeter) RecordUsage(ctx context.Context, tenantID uuid.UUID, metric enums.MetricType, delta int64) (*models.UsageMeter, error) {
	s.lastMetric = metric
	s.lastDelta = delta
	return s.meter, s.err
}

func (s *stubUsageMeter) CheckResourceLimit(ctx context.Context, tenantID uuid.UUID, metric enums.MetricType) (usage.LimitCheck, error) {
	s.lastMetric = metric
	return s.check, s.err
}

func (s *stubUsageMeter) ListUsage(ctx context.Context, tenantID uuid.UUID) ([]models.UsageMeter, error) {
	if s.meter == nil {
		return nil, s.err
	}
	return []models.UsageMeter{*s.meter}, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestProvisionTenant(t *testing.T) {
	tenantID := uuid.New()
	planID := uuid.New()
	trialEnd := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	svc := &stubSubscriptionAdmin{provisioned: &subscriptions.ProvisionResult{
		Tenant: &models.Tenant{ID: tenantID, Name: "Korle Bu", IsActive: true},
		Subscription: &models.Subscription{
			ID:               uuid.New(),
			TenantID:         tenantID,
			PlanID:           planID,
			Status:           enums.SubscriptionStatusTrial,
			CurrentPeriodEnd: trialEnd,
			TrialEndsAt:      &trialEnd,
			Plan:             &models.Plan{Name: "Clinic"},
		},
	}}

	t.Run("created", func(t *testing.T) {
		body := []byte(`{"name":"  Korle Bu  ","planId":"` + planID.String() + `","trialDays":7}`)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/tenants", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		ProvisionTenant(svc, testLogger()).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.provisionInput.Name != "Korle Bu" {
			t.Fatalf("expected trimmed name, got %q", svc.provisionInput.Name)
		}
		if svc.provisionInput.TrialDays == nil || *svc.provisionInput.TrialDays != 7 {
			t.Fatalf("expected trial days 7, got %v", svc.provisionInput.TrialDays)
		}
		var out provisionTenantResponse
		decodeData(t, rec, &out)
		if out.Tenant == nil || out.Tenant.ID != tenantID {
			t.Fatalf("unexpected tenant: %+v", out.Tenant)
		}
		if out.Subscription == nil || out.Subscription.Status != enums.SubscriptionStatusTrial || out.Subscription.PlanName != "Clinic" {
			t.Fatalf("unexpected subscription: %+v", out.Subscription)
		}
	})

	t.Run("zero trial days", func(t *testing.T) {
		body := []byte(`{"name":"Ridge","planId":"` + planID.String() + `","trialDays":0}`)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/tenants", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		ProvisionTenant(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.provisionInput.TrialDays == nil || *svc.provisionInput.TrialDays != 0 {
			t.Fatalf("expected explicit zero trial days, got %v", svc.provisionInput.TrialDays)
		}
	})

	t.Run("negative trial days", func(t *testing.T) {
		body := []byte(`{"name":"Ridge","planId":"` + planID.String() + `","trialDays":-3}`)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/tenants", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		ProvisionTenant(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("invalid plan id", func(t *testing.T) {
		body := []byte(`{"name":"Ridge","planId":"nope"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/tenants", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		ProvisionTenant(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		body := []byte(`{"name":"Ridge","planId":"` + planID.String() + `","status":"ACTIVE"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/tenants", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		ProvisionTenant(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})
}

func TestReactivateSubscription(t *testing.T) {
	tenantID := uuid.New()
	subID := uuid.New()
	params := map[string]string{"tenantId": tenantID.String(), "subscriptionId": subID.String()}

	t.Run("active again", func(t *testing.T) {
		svc := &stubSubscriptionAdmin{reactivated: &models.Subscription{ID: subID, TenantID: tenantID, Status: enums.SubscriptionStatusActive}}
		req := withParams(httptest.NewRequest(http.MethodPost, "/reactivate", nil), params)
		rec := httptest.NewRecorder()
		ReactivateSubscription(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		var out subscriptionDTO
		decodeData(t, rec, &out)
		if out.Status != enums.SubscriptionStatusActive {
			t.Fatalf("expected ACTIVE got %s", out.Status)
		}
	})

	t.Run("not suspended", func(t *testing.T) {
		svc := &stubSubscriptionAdmin{err: pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is ACTIVE, only SUSPENDED can be reactivated")}
		req := withParams(httptest.NewRequest(http.MethodPost, "/reactivate", nil), params)
		rec := httptest.NewRecorder()
		ReactivateSubscription(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 got %d", rec.Code)
		}
	})

	t.Run("bad tenant id", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodPost, "/reactivate", nil), map[string]string{"tenantId": "x", "subscriptionId": subID.String()})
		rec := httptest.NewRecorder()
		ReactivateSubscription(&stubSubscriptionAdmin{}, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})
}

func TestGracePeriod(t *testing.T) {
	svc := &stubSubscriptionAdmin{grace: &subscriptions.GraceStatus{Status: "PAST_DUE", GracePeriodDays: 3, DaysRemaining: 1, IsPastDue: true}}
	req := withParams(httptest.NewRequest(http.MethodGet, "/grace-period", nil), map[string]string{"tenantId": uuid.NewString()})
	rec := httptest.NewRecorder()
	GracePeriod(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var out subscriptions.GraceStatus
	decodeData(t, rec, &out)
	if !out.IsPastDue || out.DaysRemaining != 1 {
		t.Fatalf("unexpected grace status: %+v", out)
	}
}

func TestRecordUsage(t *testing.T) {
	limit := int64(10)
	params := map[string]string{"tenantId": uuid.NewString()}

	t.Run("recorded", func(t *testing.T) {
		svc := &stubUsageMeter{meter: &models.UsageMeter{MetricType: enums.MetricUsers, CurrentValue: 4, LimitValue: &limit}}
		req := withParams(httptest.NewRequest(http.MethodPost, "/usage", bytes.NewReader([]byte(`{"metric":"users","delta":-1}`))), params)
		rec := httptest.NewRecorder()
		RecordUsage(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.lastMetric != enums.MetricUsers || svc.lastDelta != -1 {
			t.Fatalf("unexpected call: %s %d", svc.lastMetric, svc.lastDelta)
		}
		var out usageMeterDTO
		decodeData(t, rec, &out)
		if out.CurrentValue != 4 || out.LimitValue == nil || *out.LimitValue != 10 {
			t.Fatalf("unexpected meter: %+v", out)
		}
	})

	t.Run("limit exceeded", func(t *testing.T) {
		svc := &stubUsageMeter{err: pkgerrors.New(pkgerrors.CodeStateConflict, "users limit reached")}
		req := withParams(httptest.NewRequest(http.MethodPost, "/usage", bytes.NewReader([]byte(`{"metric":"users","delta":1}`))), params)
		rec := httptest.NewRecorder()
		RecordUsage(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 got %d", rec.Code)
		}
	})

	t.Run("unknown metric", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodPost, "/usage", bytes.NewReader([]byte(`{"metric":"beds","delta":1}`))), params)
		rec := httptest.NewRecorder()
		RecordUsage(&stubUsageMeter{}, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})
}

func TestCheckUsage(t *testing.T) {
	svc := &stubUsageMeter{check: usage.LimitCheck{Allowed: true, Current: 2}}
	req := withParams(httptest.NewRequest(http.MethodGet, "/usage/sms", nil), map[string]string{"tenantId": uuid.NewString(), "metric": "sms"})
	rec := httptest.NewRecorder()
	CheckUsage(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastMetric != enums.MetricSMS {
		t.Fatalf("expected sms metric, got %s", svc.lastMetric)
	}
	var out usage.LimitCheck
	decodeData(t, rec, &out)
	if !out.Allowed || out.Limit != nil {
		t.Fatalf("expected unlimited allowance, got %+v", out)
	}
}

func TestCancelSubscription(t *testing.T) {
	tenantID := uuid.New()
	params := map[string]string{"tenantId": tenantID.String()}

	t.Run("immediate without body", func(t *testing.T) {
		svc := &stubSubscriptionAdmin{changed: &models.Subscription{ID: uuid.New(), TenantID: tenantID, Status: enums.SubscriptionStatusCancelled}}
		req := withParams(httptest.NewRequest(http.MethodPost, "/subscription/cancel", nil), params)
		rec := httptest.NewRecorder()
		CancelSubscription(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.atPeriodEnd {
			t.Fatalf("expected immediate cancellation")
		}
		var out subscriptionDTO
		decodeData(t, rec, &out)
		if out.Status != enums.SubscriptionStatusCancelled {
			t.Fatalf("expected CANCELLED got %s", out.Status)
		}
	})

	t.Run("at period end", func(t *testing.T) {
		svc := &stubSubscriptionAdmin{changed: &models.Subscription{ID: uuid.New(), TenantID: tenantID, Status: enums.SubscriptionStatusActive, CancelAtPeriodEnd: true}}
		body := []byte(`{"atPeriodEnd":true}`)
		req := withParams(httptest.NewRequest(http.MethodPost, "/subscription/cancel", bytes.NewReader(body)), params)
		rec := httptest.NewRecorder()
		CancelSubscription(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		if !svc.atPeriodEnd {
			t.Fatalf("expected atPeriodEnd to reach the service")
		}
		var out subscriptionDTO
		decodeData(t, rec, &out)
		if !out.CancelAtPeriodEnd {
			t.Fatalf("expected cancelAtPeriodEnd in response: %+v", out)
		}
	})

	t.Run("no subscription", func(t *testing.T) {
		svc := &stubSubscriptionAdmin{err: pkgerrors.New(pkgerrors.CodeNotFound, "no subscription for tenant")}
		req := withParams(httptest.NewRequest(http.MethodPost, "/subscription/cancel", nil), params)
		rec := httptest.NewRecorder()
		CancelSubscription(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 got %d", rec.Code)
		}
	})
}

func TestChangePlan(t *testing.T) {
	tenantID := uuid.New()
	planID := uuid.New()
	params := map[string]string{"tenantId": tenantID.String()}

	t.Run("changed", func(t *testing.T) {
		svc := &stubSubscriptionAdmin{changed: &models.Subscription{ID: uuid.New(), TenantID: tenantID, PlanID: planID, Status: enums.SubscriptionStatusActive}}
		body := []byte(`{"planId":"` + planID.String() + `"}`)
		req := withParams(httptest.NewRequest(http.MethodPost, "/subscription/change-plan", bytes.NewReader(body)), params)
		rec := httptest.NewRecorder()
		ChangePlan(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.planID != planID {
			t.Fatalf("expected plan %s got %s", planID, svc.planID)
		}
		var out subscriptionDTO
		decodeData(t, rec, &out)
		if out.PlanID != planID {
			t.Fatalf("unexpected plan in response: %s", out.PlanID)
		}
	})

	t.Run("missing plan id", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodPost, "/subscription/change-plan", bytes.NewReader([]byte(`{}`))), params)
		rec := httptest.NewRecorder()
		ChangePlan(&stubSubscriptionAdmin{}, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("cancelled subscription", func(t *testing.T) {
		svc := &stubSubscriptionAdmin{err: pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is CANCELLED")}
		body := []byte(`{"planId":"` + planID.String() + `"}`)
		req := withParams(httptest.NewRequest(http.MethodPost, "/subscription/change-plan", bytes.NewReader(body)), params)
		rec := httptest.NewRecorder()
		ChangePlan(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 got %d", rec.Code)
		}
	})
}
