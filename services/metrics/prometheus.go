// Package metricsvc exposes the domain and HTTP metrics to Prometheus.
package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/kinerja/core"
)

const namespace = "kinerja"

// Recorder owns its registry so several instances can coexist (tests).
type Recorder struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	requests    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

var _ core.Recorder = (*Recorder)(nil)

func counterVec(reg prometheus.Registerer, component, name, help string, labelNames ...string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	}, labelNames)
	reg.MustRegister(m)
	return m
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(durations)

	return &Recorder{
		registry:    reg,
		transitions: counterVec(reg, "workflow", "transitions_total", "Workflow state changes.", "entity", "from", "to"),
		outcomes:    counterVec(reg, "batch", "outcomes_total", "Outcomes of batch operations.", "op", "outcome"),
		requests:    counterVec(reg, "http", "requests_total", "HTTP requests by status code.", "method", "route", "code"),
		durations:   durations,
	}
}

func (r *Recorder) RecordTransition(entity, from, to string) {
	r.transitions.WithLabelValues(entity, from, to).Inc()
}

func (r *Recorder) RecordOutcome(op, outcome string, n int) {
	if n <= 0 {
		return
	}
	r.outcomes.WithLabelValues(op, outcome).Add(float64(n))
}

// ObserveRequest records a served HTTP request. route is the route pattern, not the raw path.
func (r *Recorder) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.durations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer is used by tests to read the collected metrics.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }
