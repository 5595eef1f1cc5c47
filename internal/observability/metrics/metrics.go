// Package metrics exposes the gateway's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the gateway-level instruments.
type Metrics struct {
	admissions    *prometheus.CounterVec
	denials       *prometheus.CounterVec
	tokensCharged prometheus.Counter
	webhookEvents *prometheus.CounterVec
}

// New registers the gateway instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		admissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "admissions_total",
			Help:      "Requests admitted through the usage gate.",
		}, []string{"operation"}),
		denials: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "denials_total",
			Help:      "Requests denied by the usage gate, by reason.",
		}, []string{"operation", "reason"}),
		tokensCharged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "usage_tokens_charged_total",
			Help:      "Estimated token cost charged against subscriptions.",
		}),
		webhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "billing_webhook_events_total",
			Help:      "Billing webhook events processed, by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

// RecordAdmission counts a request admitted for the operation.
func (m *Metrics) RecordAdmission(operation string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(operation).Inc()
}

// RecordDenial counts a gate denial for the operation with its reason.
func (m *Metrics) RecordDenial(operation, reason string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(operation, reason).Inc()
}

// RecordTokensCharged adds the charged usage cost.
func (m *Metrics) RecordTokensCharged(tokens int64) {
	if m == nil || tokens <= 0 {
		return
	}
	m.tokensCharged.Add(float64(tokens))
}

// RecordWebhookEvent counts a processed billing event.
func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}
