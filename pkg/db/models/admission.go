package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// Ward carries the daily occupancy rate billed to inpatients.
type Ward struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name;not null"`
	DailyRate decimal.Decimal `gorm:"column:daily_rate;type:numeric(12,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Admission is an inpatient stay. An open admission is a recurring daily obligation.
type Admission struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID     uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;index"`
	PatientID    uuid.UUID             `gorm:"column:patient_id;type:uuid;not null"`
	WardID       uuid.UUID             `gorm:"column:ward_id;type:uuid;not null"`
	Status       enums.AdmissionStatus `gorm:"column:status;not null;default:'ADMITTED'"`
	AdmittedAt   time.Time             `gorm:"column:admitted_at;not null"`
	DischargedAt *time.Time            `gorm:"column:discharged_at"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}
