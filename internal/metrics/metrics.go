// Package metrics holds the Prometheus collectors of the storefront process.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry            *prometheus.Registry
	remoteRequests      *prometheus.CounterVec
	remoteLatency       *prometheus.HistogramVec
	checkoutTransitions *prometheus.CounterVec
	cartSnapshots       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "remote_requests_total",
			Help:      "Calls to external services by outcome.",
		}, []string{"service", "operation", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of calls to external services.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		checkoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_transitions_total",
			Help:      "Checkout state machine transitions by target state.",
		}, []string{"to"}),
		cartSnapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cart_snapshots_total",
			Help:      "Server cart snapshots by how they were handled.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.remoteRequests,
		m.remoteLatency,
		m.checkoutTransitions,
		m.cartSnapshots,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveRemote(service, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(service, operation, outcome).Inc()
	m.remoteLatency.WithLabelValues(service, operation).Observe(elapsed.Seconds())
}

func (m *Metrics) CheckoutTransition(to string) {
	if m == nil {
		return
	}
	m.checkoutTransitions.WithLabelValues(to).Inc()
}

// CartSnapshot counts snapshots that were applied, dropped as stale or served
// from the fallback cache.
func (m *Metrics) CartSnapshot(result string) {
	if m == nil {
		return
	}
	m.cartSnapshots.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
