package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// Subscription is a tenant's billing lineage. Rows are never deleted.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID           uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;index"`
	PlanID             uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'TRIAL'"`
	CurrentPeriodStart time.Time                `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd   time.Time                `gorm:"column:current_period_end;not null"`
	TrialEndsAt        *time.Time               `gorm:"column:trial_ends_at"`
	CancelAtPeriodEnd  bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	PastDueAt          *time.Time               `gorm:"column:past_due_at"`
	SuspendedAt        *time.Time               `gorm:"column:suspended_at"`
	CancelledAt        *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	Plan *Plan `gorm:"foreignKey:PlanID"`
}
