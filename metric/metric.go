// Package metric exposes Prometheus instrumentation for the pipeline
// library: retry attempts and exhaustions per stage, notification
// deliveries per channel, and status-store writes per backend.
//
// Metrics hang off a private registry so two services linking the
// library never fight over the default registerer. Services mount
// Handler() next to their health endpoint.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/svidal-nlive/karaoke-shared/retry"
)

const namespace = "karaoke"

// Metrics holds the library's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	retryAttempts    *prometheus.CounterVec
	retryExhaustions *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	statusWrites     *prometheus.CounterVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		retryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Stage attempts executed, including the first try.",
		}, []string{"stage"}),
		retryExhaustions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_exhaustions_total",
			Help:      "Stage runs that failed every attempt.",
		}, []string{"stage"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
		statusWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_writes_total",
			Help:      "Status store writes by backend.",
		}, []string{"backend"}),
	}
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so services can register
// their own collectors alongside the library's.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RetryObserver adapts the stage counter to retry.Policy.OnAttempt.
func (m *Metrics) RetryObserver(stage string) func(retry.Attempt) {
	return func(retry.Attempt) {
		m.retryAttempts.WithLabelValues(stage).Inc()
	}
}

// ObserveExhaustion records a stage run that ran out of attempts.
func (m *Metrics) ObserveExhaustion(stage string) {
	m.retryExhaustions.WithLabelValues(stage).Inc()
}

// NotifyObserver adapts the delivery counter to notify.Multi's
// per-channel result hook.
func (m *Metrics) NotifyObserver() func(channel string, err error) {
	return func(channel string, err error) {
		outcome := "sent"
		if err != nil {
			outcome = "failed"
		}
		m.notifications.WithLabelValues(channel, outcome).Inc()
	}
}

// ObserveStatusWrite records one write against a status backend.
func (m *Metrics) ObserveStatusWrite(backend string) {
	m.statusWrites.WithLabelValues(backend).Inc()
}
