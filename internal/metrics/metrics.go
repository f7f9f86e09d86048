// Package metrics exposes Prometheus collectors for the runtime API and the
// learning session built on it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "scorm"

// Collector owns a private registry. A nil *Collector is valid and records
// nothing.
type Collector struct {
	registry *prometheus.Registry

	runtimeCalls *prometheus.CounterVec
	sessionOps   *prometheus.CounterVec
	diagnostics  *prometheus.CounterVec
	connected    prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		runtimeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_calls_total",
			Help:      "Calls made into the LMS runtime API, by call and outcome.",
		}, []string{"call", "outcome"}),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session operations, by operation and result.",
		}, []string{"operation", "result"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics emitted by the session, by kind.",
		}, []string{"kind"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_connected",
			Help:      "1 while the session holds an open runtime API connection.",
		}),
	}

	c.registry.MustRegister(c.runtimeCalls, c.sessionOps, c.diagnostics, c.connected)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RuntimeCall(call string, ok bool) {
	if c == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	c.runtimeCalls.WithLabelValues(call, outcome).Inc()
}

func (c *Collector) SessionOperation(operation, result string) {
	if c == nil {
		return
	}
	c.sessionOps.WithLabelValues(operation, result).Inc()
}

func (c *Collector) Diagnostic(kind string) {
	if c == nil {
		return
	}
	c.diagnostics.WithLabelValues(kind).Inc()
}

func (c *Collector) SetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}
