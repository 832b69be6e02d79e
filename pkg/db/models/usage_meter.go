package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// UsageMeter counts one metric for one tenant over one billing period.
type UsageMeter struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID     uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_usage_meters_period"`
	MetricType   enums.MetricType `gorm:"column:metric_type;not null;uniqueIndex:ux_usage_meters_period"`
	PeriodStart  time.Time        `gorm:"column:period_start;not null;uniqueIndex:ux_usage_meters_period"`
	PeriodEnd    time.Time        `gorm:"column:period_end;not null"`
	CurrentValue int64            `gorm:"column:current_value;not null;default:0"`
	LimitValue   *int64           `gorm:"column:limit_value"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
