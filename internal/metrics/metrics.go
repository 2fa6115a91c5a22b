// Package metrics provides Prometheus metrics for the bot service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec

	// Provider metrics (chat, image, search, transcribe, translate)
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderDurationSeconds *prometheus.HistogramVec

	// Outbound delivery metrics
	DeliveriesTotal   *prometheus.CounterVec
	QuotaNoticesTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	return &Metrics{
		WebhookRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "goudan_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: received, success, error, delivery_error
		),

		WebhookDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goudan_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"event_type"},
		),

		ProviderRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "goudan_provider_requests_total",
				Help: "Total number of upstream provider calls by provider and status",
			},
			[]string{"provider", "status"}, // provider: chat, image, search, transcribe, translate
		),

		ProviderDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goudan_provider_duration_seconds",
				Help:    "Upstream provider call duration in seconds by provider",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		DeliveriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "goudan_deliveries_total",
				Help: "Total outbound message deliveries by mode and status",
			},
			[]string{"mode", "status"}, // mode: reply, push; status: success, error
		),

		QuotaNoticesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "goudan_quota_notices_total",
				Help: "Quota-exceeded notice pushes by outcome",
			},
			[]string{"outcome"}, // outcome: delivered, failed, skipped
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "goudan_rate_limiter_dropped_total",
				Help: "Requests dropped by rate limiters",
			},
			[]string{"limiter"}, // limiter: global, chat
		),
	}
}

// RecordWebhook records a webhook event outcome.
func (m *Metrics) RecordWebhook(eventType, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	if durationSeconds > 0 {
		m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(durationSeconds)
	}
}

// RecordProvider records an upstream provider call outcome.
func (m *Metrics) RecordProvider(provider, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
	if durationSeconds > 0 {
		m.ProviderDurationSeconds.WithLabelValues(provider).Observe(durationSeconds)
	}
}

// RecordDelivery records an outbound delivery outcome.
func (m *Metrics) RecordDelivery(mode, status string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(mode, status).Inc()
}

// RecordQuotaNotice records the outcome of a quota-exceeded notice push.
func (m *Metrics) RecordQuotaNotice(outcome string) {
	if m == nil {
		return
	}
	m.QuotaNoticesTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimiterDrop records a dropped request for the given limiter.
func (m *Metrics) RecordRateLimiterDrop(limiter string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiter).Inc()
}
