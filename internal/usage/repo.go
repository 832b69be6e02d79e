package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/hms-billing/internal/repo"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
)

var meterKey = []clause.Column{{Name: "tenant_id"}, {Name: "metric_type"}, {Name: "period_start"}}

// Repository persists period-keyed usage counters.
type Repository struct {
	base repo.Base
}

// NewRepository binds the usage repository to a database handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{base: r.base.Bind(tx)}
}

// Increment adds delta to the counter for meter's period, inserting meter on
// first use. LimitValue is only written on insert.
func (r *Repository) Increment(ctx context.Context, meter *models.UsageMeter, delta int64) error {
	now := time.Now().UTC()
	return r.base.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: meterKey,
			DoUpdates: clause.Assignments(map[string]any{
				"current_value": gorm.Expr("usage_meters.current_value + ?", delta),
				"updated_at":    now,
			}),
		}).
		Create(meter).Error
}

// Seed inserts meter unless a row for its period already exists.
func (r *Repository) Seed(ctx context.Context, meter *models.UsageMeter) error {
	return r.base.DB(ctx).
		Clauses(clause.OnConflict{Columns: meterKey, DoNothing: true}).
		Create(meter).Error
}

// SetLimit writes meter's limit onto its period row, inserting a zeroed row
// when none exists. CurrentValue is left untouched.
func (r *Repository) SetLimit(ctx context.Context, meter *models.UsageMeter) error {
	return r.base.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: meterKey,
			DoUpdates: clause.Assignments(map[string]any{
				"limit_value": meter.LimitValue,
				"updated_at":  time.Now().UTC(),
			}),
		}).
		Create(meter).Error
}

// Find returns the counter for one metric and period, nil when absent.
func (r *Repository) Find(ctx context.Context, tenantID uuid.UUID, metric enums.MetricType, periodStart time.Time) (*models.UsageMeter, error) {
	var meter models.UsageMeter
	err := r.base.DB(ctx).
		Where("tenant_id = ? AND metric_type = ? AND period_start = ?", tenantID, metric, periodStart).
		First(&meter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meter, nil
}

// List returns every counter of a tenant for one period, ordered by metric.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) ([]models.UsageMeter, error) {
	var meters []models.UsageMeter
	err := r.base.DB(ctx).
		Where("tenant_id = ? AND period_start = ?", tenantID, periodStart).
		Order("metric_type ASC").
		Find(&meters).Error
	return meters, err
}
