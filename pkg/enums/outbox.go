package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateInvoice      OutboxAggregateType = "invoice"
	AggregatePayment      OutboxAggregateType = "payment"
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateTenant       OutboxAggregateType = "tenant"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateInvoice,
	AggregatePayment,
	AggregateSubscription,
	AggregateTenant,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventInvoiceGenerated          OutboxEventType = "invoice.generated"
	EventInvoiceOverdue            OutboxEventType = "invoice.overdue"
	EventPaymentSettled            OutboxEventType = "payment.settled"
	EventSubscriptionStatusChanged OutboxEventType = "subscription.status_changed"
	EventSubscriptionPlanChanged   OutboxEventType = "subscription.plan_changed"
	EventTenantSuspended           OutboxEventType = "tenant.suspended"
	EventTenantReactivated         OutboxEventType = "tenant.reactivated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInvoiceGenerated,
	EventInvoiceOverdue,
	EventPaymentSettled,
	EventSubscriptionStatusChanged,
	EventSubscriptionPlanChanged,
	EventTenantSuspended,
	EventTenantReactivated,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
