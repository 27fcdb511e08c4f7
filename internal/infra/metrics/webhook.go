package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookRequests,
		WebhookDuration,
	)
}

var (
	// result: ok|rejected|ignored
	// reason: signature|malformed|unknown_order|duplicate|unhandled_type|internal|none
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_webhook_requests_total",
			Help: "Payment notifications by result and reason.",
		},
		[]string{"result", "reason"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_webhook_duration_seconds",
			Help:    "Duration of payment notification handling in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"result"},
	)
)

func IncWebhook(result, reason string) {
	WebhookRequests.WithLabelValues(
		bounded(result, "ok", "rejected", "ignored"),
		bounded(reason, "signature", "malformed", "unknown_order", "duplicate", "unhandled_type", "internal", "none"),
	).Inc()
}

func ObserveWebhook(result string, seconds float64) {
	WebhookDuration.WithLabelValues(bounded(result, "ok", "rejected", "ignored")).Observe(seconds)
}
