package admin

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
)

type tenantDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type subscriptionDTO struct {
	ID                 uuid.UUID                `json:"id"`
	TenantID           uuid.UUID                `json:"tenantId"`
	PlanID             uuid.UUID                `json:"planId"`
	PlanName           string                   `json:"planName,omitempty"`
	Status             enums.SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time                `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time                `json:"currentPeriodEnd"`
	TrialEndsAt        *time.Time               `json:"trialEndsAt,omitempty"`
	PastDueAt          *time.Time               `json:"pastDueAt,omitempty"`
	SuspendedAt        *time.Time               `json:"suspendedAt,omitempty"`
	CancelAtPeriodEnd  bool                     `json:"cancelAtPeriodEnd"`
	CancelledAt        *time.Time               `json:"cancelledAt,omitempty"`
}

type usageMeterDTO struct {
	Metric       enums.MetricType `json:"metric"`
	PeriodStart  time.Time        `json:"periodStart"`
	PeriodEnd    time.Time        `json:"periodEnd"`
	CurrentValue int64            `json:"currentValue"`
	LimitValue   *int64           `json:"limitValue"`
}

func toTenantDTO(t *models.Tenant) *tenantDTO {
	if t == nil {
		return nil
	}
	return &tenantDTO{ID: t.ID, Name: t.Name, IsActive: t.IsActive, CreatedAt: t.CreatedAt}
}

func toSubscriptionDTO(s *models.Subscription) *subscriptionDTO {
	if s == nil {
		return nil
	}
	dto := &subscriptionDTO{
		ID:                 s.ID,
		TenantID:           s.TenantID,
		PlanID:             s.PlanID,
		Status:             s.Status,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		TrialEndsAt:        s.TrialEndsAt,
		PastDueAt:          s.PastDueAt,
		SuspendedAt:        s.SuspendedAt,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CancelledAt:        s.CancelledAt,
	}
	if s.Plan != nil {
		dto.PlanName = s.Plan.Name
	}
	return dto
}

func toUsageMeterDTO(m models.UsageMeter) usageMeterDTO {
	return usageMeterDTO{
		Metric:       m.MetricType,
		PeriodStart:  m.PeriodStart,
		PeriodEnd:    m.PeriodEnd,
		CurrentValue: m.CurrentValue,
		LimitValue:   m.LimitValue,
	}
}
