package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// Plan is a catalog entry. Limits left nil are unlimited.
type Plan struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string             `gorm:"column:name;not null"`
	BillingCycle enums.BillingCycle `gorm:"column:billing_cycle;type:billing_cycle;not null"`
	Price        decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Currency     string             `gorm:"column:currency;not null;default:'GHS'"`
	MaxUsers     *int64             `gorm:"column:max_users"`
	MaxBranches  *int64             `gorm:"column:max_branches"`
	MaxPatients  *int64             `gorm:"column:max_patients"`
	StorageGB    *int64             `gorm:"column:storage_gb"`
	SMSPerMonth  *int64             `gorm:"column:sms_per_month"`
	Features     pq.StringArray     `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	IsActive     bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// LimitFor returns the plan ceiling for a metric, nil when unlimited.
func (p Plan) LimitFor(metric enums.MetricType) *int64 {
	switch metric {
	case enums.MetricUsers:
		return p.MaxUsers
	case enums.MetricBranches:
		return p.MaxBranches
	case enums.MetricPatients:
		return p.MaxPatients
	case enums.MetricStorageGB:
		return p.StorageGB
	case enums.MetricSMS:
		return p.SMSPerMonth
	default:
		return nil
	}
}
