// Package metrics exposes the Prometheus collectors of the routing engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fogroute"

type Metrics struct {
	registry *prometheus.Registry

	routeOps         *prometheus.CounterVec
	routeOpDuration  *prometheus.HistogramVec
	satelliteCalls   *prometheus.HistogramVec
	pendingReleased  *prometheus.CounterVec
	catalogReloads   *prometheus.CounterVec
	catalogInstances prometheus.Gauge
}

// New registers every collector on a private registry together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		routeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_operations_total",
			Help:      "Route mutations by operation, outcome and the stage they ended in.",
		}, []string{"op", "outcome", "stage"}),
		routeOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_operation_duration_seconds",
			Help:      "Duration of route mutations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		satelliteCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "satellite_request_duration_seconds",
			Help:      "Satellite API calls by operation and outcome.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "outcome"}),
		pendingReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_allocations_released_total",
			Help:      "Pending allocations released, by who released them and the outcome.",
		}, []string{"by", "outcome"}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog reload attempts by outcome.",
		}, []string{"outcome"}),
		catalogInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_instances",
			Help:      "Instances in the current catalog snapshot.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.routeOps,
		m.routeOpDuration,
		m.satelliteCalls,
		m.pendingReleased,
		m.catalogReloads,
		m.catalogInstances,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRouteOp records one create or delete.
func (m *Metrics) ObserveRouteOp(op, stage string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.routeOps.WithLabelValues(op, outcome(err), stage).Inc()
	m.routeOpDuration.WithLabelValues(op).Observe(took.Seconds())
}

// ObserveSatelliteCall records one satellite API call.
func (m *Metrics) ObserveSatelliteCall(op string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.satelliteCalls.WithLabelValues(op, outcome(err)).Observe(took.Seconds())
}

// PendingReleased counts a pending allocation release attempt.
func (m *Metrics) PendingReleased(by string, err error) {
	if m == nil {
		return
	}
	m.pendingReleased.WithLabelValues(by, outcome(err)).Inc()
}

// CatalogReloaded records a reload attempt and, on success, the instance count.
func (m *Metrics) CatalogReloaded(instances int, err error) {
	if m == nil {
		return
	}
	m.catalogReloads.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.catalogInstances.Set(float64(instances))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
