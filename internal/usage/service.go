package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

type subscriptionFinder interface {
	FindCurrentSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
}

// LimitCheck answers whether a tenant may consume more of a metric. A nil
// Limit means unlimited.
type LimitCheck struct {
	Allowed bool   `json:"allowed"`
	Current int64  `json:"current"`
	Limit   *int64 `json:"limit"`
}

// Service meters tenant consumption per calendar month.
type Service struct {
	repo          *Repository
	subscriptions subscriptionFinder
	logg          *logger.Logger
	now           func() time.Time
}

// NewService builds the usage meter.
func NewService(repo *Repository, subscriptions subscriptionFinder, logg *logger.Logger, now func() time.Time) (*Service, error) {
	if repo == nil {
		return nil, errors.New("usage repo required")
	}
	if subscriptions == nil {
		return nil, errors.New("subscription finder required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, subscriptions: subscriptions, logg: logg, now: now}, nil
}

// Period returns the UTC calendar month containing t. End is the last second of the month.
func Period(t time.Time) (start, end time.Time) {
	u := t.UTC()
	start = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// RecordUsage adds delta to the tenant's counter for the current period. A
// new period row copies its limit from the tenant's current plan.
func (s *Service) RecordUsage(ctx context.Context, tenantID uuid.UUID, metric enums.MetricType, delta int64) (*models.UsageMeter, error) {
	if !metric.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown metric %q", metric)
	}
	if delta <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be positive")
	}

	sub, err := s.subscriptions.FindCurrentSubscription(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	var limit *int64
	if sub != nil && sub.Plan != nil {
		limit = sub.Plan.LimitFor(metric)
	}

	start, end := Period(s.now())
	meter := &models.UsageMeter{
		ID:           uuid.New(),
		TenantID:     tenantID,
		MetricType:   metric,
		PeriodStart:  start,
		PeriodEnd:    end,
		CurrentValue: delta,
		LimitValue:   limit,
	}
	if err := s.repo.Increment(ctx, meter, delta); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record usage")
	}

	stored, err := s.repo.Find(ctx, tenantID, metric, start)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload usage")
	}
	if stored != nil && stored.LimitValue != nil && stored.CurrentValue > *stored.LimitValue {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"tenant_id": tenantID.String(),
			"metric":    metric.String(),
			"current":   stored.CurrentValue,
			"limit":     *stored.LimitValue,
		}), "usage above plan limit")
	}
	return stored, nil
}

// CheckResourceLimit reports the tenant's standing for metric in the current
// period. Tenants without a subscription are never allowed.
func (s *Service) CheckResourceLimit(ctx context.Context, tenantID uuid.UUID, metric enums.MetricType) (LimitCheck, error) {
	if !metric.IsValid() {
		return LimitCheck{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown metric %q", metric)
	}
	sub, err := s.subscriptions.FindCurrentSubscription(ctx, tenantID)
	if err != nil {
		return LimitCheck{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		zero := int64(0)
		return LimitCheck{Allowed: false, Current: 0, Limit: &zero}, nil
	}

	start, _ := Period(s.now())
	meter, err := s.repo.Find(ctx, tenantID, metric, start)
	if err != nil {
		return LimitCheck{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load usage")
	}

	var current int64
	var limit *int64
	if meter != nil {
		current = meter.CurrentValue
		limit = meter.LimitValue
	}
	if limit == nil && sub.Plan != nil {
		limit = sub.Plan.LimitFor(metric)
	}
	return LimitCheck{
		Allowed: limit == nil || current < *limit,
		Current: current,
		Limit:   limit,
	}, nil
}

// ListUsage returns the tenant's counters for the current period.
func (s *Service) ListUsage(ctx context.Context, tenantID uuid.UUID) ([]models.UsageMeter, error) {
	start, _ := Period(s.now())
	meters, err := s.repo.List(ctx, tenantID, start)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list usage")
	}
	return meters, nil
}

// SeedMeters opens zeroed counters for metrics at provisioning time, copying
// limits from plan. It runs inside the provisioning transaction.
func (s *Service) SeedMeters(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, plan models.Plan, metrics []enums.MetricType) error {
	start, end := Period(s.now())
	ledger := s.repo.WithTx(tx)
	for _, metric := range metrics {
		meter := &models.UsageMeter{
			ID:          uuid.New(),
			TenantID:    tenantID,
			MetricType:  metric,
			PeriodStart: start,
			PeriodEnd:   end,
			LimitValue:  plan.LimitFor(metric),
		}
		if err := ledger.Seed(ctx, meter); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPlanLimits rewrites the current period limits for metrics from plan.
// Counters keep their values; a tenant already above a lower limit is reported
// by CheckResourceLimit, not reset.
func (s *Service) ApplyPlanLimits(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, plan models.Plan, metrics []enums.MetricType) error {
	start, end := Period(s.now())
	ledger := s.repo.WithTx(tx)
	for _, metric := range metrics {
		meter := &models.UsageMeter{
			ID:          uuid.New(),
			TenantID:    tenantID,
			MetricType:  metric,
			PeriodStart: start,
			PeriodEnd:   end,
			LimitValue:  plan.LimitFor(metric),
		}
		if err := ledger.SetLimit(ctx, meter); err != nil {
			return err
		}
	}
	return nil
}
