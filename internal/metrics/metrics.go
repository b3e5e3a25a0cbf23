// Package metrics holds the Prometheus collectors of the access engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	MalformedRules   *prometheus.CounterVec
	StorageErrors    *prometheus.CounterVec
	RuleCacheHits    prometheus.Counter
	RuleCacheMisses  prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry with the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_access_decisions_total",
				Help: "Access decisions by kind, operation and result",
			},
			[]string{"kind", "operation", "result"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erp_access_decision_duration_seconds",
				Help:    "Time spent producing an access decision",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"kind"},
		),
		MalformedRules: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_access_malformed_rules_total",
				Help: "Record rules skipped or failed closed because their domain was malformed",
			},
			[]string{"model", "operation", "scope"},
		),
		StorageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_access_storage_errors_total",
				Help: "Persistence failures during access decisions",
			},
			[]string{"operation"},
		),
		RuleCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erp_access_rule_cache_hits_total",
			Help: "Rule set lookups served from the shared cache",
		}),
		RuleCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erp_access_rule_cache_misses_total",
			Help: "Rule set lookups that loaded from storage",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_access_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(
		m.DecisionsTotal,
		m.DecisionDuration,
		m.MalformedRules,
		m.StorageErrors,
		m.RuleCacheHits,
		m.RuleCacheMisses,
		m.HTTPRequests,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveDecision counts one decision. Model names come from callers and are
// left out of the labels.
func (m *Metrics) ObserveDecision(kind, operation string, allowed bool, started time.Time) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.DecisionsTotal.WithLabelValues(kind, operation, result).Inc()
	m.DecisionDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func (m *Metrics) MalformedRule(model, operation string, global bool) {
	if m == nil {
		return
	}
	scope := "scoped"
	if global {
		scope = "global"
	}
	m.MalformedRules.WithLabelValues(model, operation, scope).Inc()
}

func (m *Metrics) StorageError(operation string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.RuleCacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.RuleCacheMisses.Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
}
