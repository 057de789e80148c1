// Package metrics provides Prometheus metrics for the portal.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the portal.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ItemsCreated      prometheus.Counter
	ItemsActive       prometheus.Gauge
	AutomationFired   *prometheus.CounterVec
	ChatMessagesTotal *prometheus.CounterVec
	DenialsTotal      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_requests_total",
				Help: "Total number of API requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_request_duration_seconds",
				Help:    "Request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ItemsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_work_items_created_total",
				Help: "Total number of work items created.",
			},
		),
		ItemsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_work_items_active",
				Help: "Number of work items currently stored.",
			},
		),
		AutomationFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_automation_rules_fired_total",
				Help: "Total automation rules fired by action type.",
			},
			[]string{"action"},
		),
		ChatMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_chat_messages_total",
				Help: "Total chat messages posted by session type.",
			},
			[]string{"type"},
		),
		DenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_permission_denials_total",
				Help: "Total denied operations by operation.",
			},
			[]string{"operation"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.ItemsCreated)
	reg.MustRegister(m.ItemsActive)
	reg.MustRegister(m.AutomationFired)
	reg.MustRegister(m.ChatMessagesTotal)
	reg.MustRegister(m.DenialsTotal)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// ObserveDuration records request duration.
func (m *Metrics) ObserveDuration(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordItemCreated increments the created-items counter.
func (m *Metrics) RecordItemCreated() {
	m.ItemsCreated.Inc()
}

// SetItemsActive sets the stored-items gauge.
func (m *Metrics) SetItemsActive(count float64) {
	m.ItemsActive.Set(count)
}

// RecordAutomation increments the fired-rules counter.
func (m *Metrics) RecordAutomation(action string) {
	m.AutomationFired.WithLabelValues(action).Inc()
}

// RecordChatMessage increments the chat message counter.
func (m *Metrics) RecordChatMessage(sessionType string) {
	m.ChatMessagesTotal.WithLabelValues(sessionType).Inc()
}

// RecordDenial increments the permission-denial counter.
func (m *Metrics) RecordDenial(operation string) {
	m.DenialsTotal.WithLabelValues(operation).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
