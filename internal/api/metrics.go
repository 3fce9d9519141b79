package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/undo"
)

// Metrics holds the collectors served at /metrics. Each Metrics has its own
// registry so servers in tests do not collide.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	batches  prometheus.Counter
	files    *prometheus.CounterVec
	undos    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jellyrename_http_requests_total",
			Help: "API requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jellyrename_http_request_duration_seconds",
			Help:    "API request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jellyrename_batches_executed_total",
			Help: "Batches executed, including partial ones.",
		}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jellyrename_files_total",
			Help: "Files handled by executed batches by result.",
		}, []string{"result"}),
		undos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jellyrename_undo_total",
			Help: "Undo runs by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.batches, m.files, m.undos)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry so callers can add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBatch counts one executed batch.
func (m *Metrics) ObserveBatch(res *executor.Result) {
	if res == nil {
		return
	}
	m.batches.Inc()
	m.files.WithLabelValues("renamed").Add(float64(len(res.Applied)))
	m.files.WithLabelValues("failed").Add(float64(len(res.Failed)))
}

// ObserveUndo counts one undo run.
func (m *Metrics) ObserveUndo(res *undo.Result) {
	if res == nil {
		return
	}
	result := "complete"
	if len(res.Failed) > 0 {
		result = "partial"
	}
	m.undos.WithLabelValues(result).Inc()
}

func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
