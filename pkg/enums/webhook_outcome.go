package enums

// WebhookOutcome records what intake did with a provider notification.
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeRejected  WebhookOutcome = "rejected"
	WebhookOutcomeFailed    WebhookOutcome = "failed"

	// WebhookOutcomeUnauthorized marks a notification whose signature or
	// shared secret did not verify.
	WebhookOutcomeUnauthorized WebhookOutcome = "unauthorized"
)

// String implements fmt.Stringer.
func (w WebhookOutcome) String() string {
	return string(w)
}
