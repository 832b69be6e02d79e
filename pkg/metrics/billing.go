package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics covers inbound webhooks and outbound provider calls.
type BillingMetrics struct {
	webhooks      *prometheus.CounterVec
	providerCalls *prometheus.HistogramVec
}

// NewBillingMetrics registers the billing metrics on reg. A nil reg yields a no-op recorder.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhooks_total",
		Help:      "Provider notifications by provider and intake outcome.",
	}, []string{"provider", "outcome"})
	providerCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_call_seconds",
		Help:      "Latency of outbound payment provider calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
	}, []string{"provider", "operation", "result"})
	reg.MustRegister(webhooks, providerCalls)
	return &BillingMetrics{webhooks: webhooks, providerCalls: providerCalls}
}

// IncWebhook counts one notification.
func (m *BillingMetrics) IncWebhook(provider, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObserveProviderCall records one outbound call; result is "ok" or "error".
func (m *BillingMetrics) ObserveProviderCall(provider, operation string, err error, duration time.Duration) {
	if m == nil || m.providerCalls == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation), result).Observe(duration.Seconds())
}
