package subscriptions

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// ErrInvalidTransition is returned for any edge outside the lifecycle graph.
var ErrInvalidTransition = errors.New("invalid subscription transition")

// Transition reasons recorded on outbox events and logs.
const (
	ReasonPeriodElapsed      = "period_elapsed"
	ReasonCancelAtPeriodEnd  = "cancel_at_period_end"
	ReasonGracePeriodExpired = "grace_period_expired"
	ReasonTrialEnded         = "trial_ended"
	ReasonPaymentSettled     = "payment_settled"
	ReasonReactivated        = "reactivated"
	ReasonCancelled          = "cancelled"
)

// Transition is one lifecycle move the enforcer wants to apply.
type Transition struct {
	From          enums.SubscriptionStatus
	To            enums.SubscriptionStatus
	Reason        string
	SuspendTenant bool
}

var allowedTransitions = map[enums.SubscriptionStatus][]enums.SubscriptionStatus{
	enums.SubscriptionStatusTrial:     {enums.SubscriptionStatusPastDue, enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled},
	enums.SubscriptionStatusActive:    {enums.SubscriptionStatusPastDue, enums.SubscriptionStatusCancelled},
	enums.SubscriptionStatusPastDue:   {enums.SubscriptionStatusSuspended, enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled},
	enums.SubscriptionStatusSuspended: {enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled},
}

// ValidateTransition reports whether from -> to is an edge of the lifecycle graph.
func ValidateTransition(from, to enums.SubscriptionStatus) error {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Evaluate applies the time-driven rules to sub at now. It returns false when
// nothing is due. It never reads the clock.
func Evaluate(sub models.Subscription, now time.Time, grace time.Duration) (Transition, bool) {
	switch sub.Status {
	case enums.SubscriptionStatusActive:
		if !sub.CurrentPeriodEnd.Before(now) {
			return Transition{}, false
		}
		if sub.CancelAtPeriodEnd {
			return Transition{From: sub.Status, To: enums.SubscriptionStatusCancelled, Reason: ReasonCancelAtPeriodEnd}, true
		}
		return Transition{From: sub.Status, To: enums.SubscriptionStatusPastDue, Reason: ReasonPeriodElapsed}, true

	case enums.SubscriptionStatusPastDue:
		if !now.After(sub.CurrentPeriodEnd.Add(grace)) {
			return Transition{}, false
		}
		// a subscription demoted late still gets its full grace window
		if sub.PastDueAt != nil && now.Before(sub.PastDueAt.Add(grace)) {
			return Transition{}, false
		}
		return Transition{
			From:          sub.Status,
			To:            enums.SubscriptionStatusSuspended,
			Reason:        ReasonGracePeriodExpired,
			SuspendTenant: true,
		}, true

	case enums.SubscriptionStatusTrial:
		end := sub.CurrentPeriodEnd
		if sub.TrialEndsAt != nil {
			end = *sub.TrialEndsAt
		}
		if !end.Before(now) {
			return Transition{}, false
		}
		if sub.CancelAtPeriodEnd {
			return Transition{From: sub.Status, To: enums.SubscriptionStatusCancelled, Reason: ReasonCancelAtPeriodEnd}, true
		}
		return Transition{From: sub.Status, To: enums.SubscriptionStatusPastDue, Reason: ReasonTrialEnded}, true
	}
	return Transition{}, false
}

// NextPeriod returns the end of a billing period starting at start.
func NextPeriod(start time.Time, cycle enums.BillingCycle) time.Time {
	if cycle == enums.BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// columns returns the row updates that accompany a transition.
func (t Transition) columns(now time.Time) map[string]any {
	updates := map[string]any{"status": t.To}
	switch t.To {
	case enums.SubscriptionStatusPastDue:
		updates["past_due_at"] = now
	case enums.SubscriptionStatusSuspended:
		updates["suspended_at"] = now
	case enums.SubscriptionStatusCancelled:
		updates["cancelled_at"] = now
	}
	return updates
}
