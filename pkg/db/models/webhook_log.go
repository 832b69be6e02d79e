package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// WebhookLog is the audit trail of inbound provider notifications.
type WebhookLog struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider    enums.PaymentProvider `gorm:"column:provider;not null"`
	EventType   string                `gorm:"column:event_type"`
	Reference   *string               `gorm:"column:reference"`
	ProviderRef *string               `gorm:"column:provider_ref;index"`
	Outcome     enums.WebhookOutcome  `gorm:"column:outcome;not null"`
	Detail      *string               `gorm:"column:detail"`
	Payload     json.RawMessage       `gorm:"column:payload;type:jsonb"`
	ReceivedAt  time.Time             `gorm:"column:received_at;not null"`
}
