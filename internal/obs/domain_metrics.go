package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentOrderTotal counts provider order-creation outcomes.
	PaymentOrderTotal *prometheus.CounterVec
	// PaymentOrderLatency records provider order-creation latency in milliseconds.
	PaymentOrderLatency *prometheus.HistogramVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// CheckoutRejectedTotal counts order requests rejected before reaching the provider.
	CheckoutRejectedTotal *prometheus.CounterVec
	// EventsPublishedTotal counts payment events fanned out to notifiers.
	EventsPublishedTotal *prometheus.CounterVec
	// RateLimitRejectedTotal counts requests refused with 429.
	RateLimitRejectedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentOrderTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_order_total",
			Help:      "Count of provider order creation outcomes.",
		}, []string{"provider", "result"}))
		PaymentOrderLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_order_duration_ms",
			Help:      "Latency of provider order creation in milliseconds, retries included.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"provider", "result"}))
		PaymentWebhookTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by event type and outcome.",
		}, []string{"provider", "event", "result"}))
		CheckoutRejectedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_rejected_total",
			Help:      "Count of checkout requests rejected by validation.",
		}, []string{"code"}))
		EventsPublishedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_events_published_total",
			Help:      "Count of payment events delivered to notifiers.",
		}, []string{"topic", "notifier", "result"}))
		RateLimitRejectedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejected_total",
			Help:      "Count of requests rejected by the rate limiter.",
		}, []string{"scope"}))
	})
}
