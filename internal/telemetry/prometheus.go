package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors scraped on /metrics.
type Registry struct {
	reg *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	events          *prometheus.CounterVec
	backendOutcomes *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	deliveries      *prometheus.CounterVec
	queueDepth      prometheus.Gauge
}

// NewRegistry creates a registry with the Go runtime and process collectors
// plus the sync collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Inbound HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Inbound HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_events_total",
			Help: "Processed call events by overall status.",
		}, []string{"status"}),
		backendOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_backend_outcomes_total",
			Help: "Per-backend sync outcomes by final state and error kind.",
		}, []string{"backend", "state", "error_kind"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_backend_duration_seconds",
			Help:    "Time spent syncing one event to one backend.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"backend"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_refreshes_total",
			Help: "Credential refresh attempts by backend and result.",
		}, []string{"backend", "result"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credential_refresh_duration_seconds",
			Help:    "Duration of credential refresh calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook deliveries by intake result (accepted, duplicate, invalid, queue_full, shutting_down).",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sync_queue_depth",
			Help: "Events waiting for a worker.",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.events,
		r.backendOutcomes,
		r.backendDuration,
		r.refreshes,
		r.refreshDuration,
		r.deliveries,
		r.queueDepth,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveHTTP records one inbound request.
func (r *Registry) ObserveHTTP(method, route, status string, d time.Duration) {
	r.httpRequests.WithLabelValues(method, route, status).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordEvent counts one processed event by overall status.
func (r *Registry) RecordEvent(status string) {
	r.events.WithLabelValues(status).Inc()
}

// RecordBackendOutcome counts one backend outcome and its duration.
func (r *Registry) RecordBackendOutcome(backend, state, errorKind string, d time.Duration) {
	r.backendOutcomes.WithLabelValues(backend, state, errorKind).Inc()
	r.backendDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordRefresh implements credential.RefreshRecorder.
func (r *Registry) RecordRefresh(backend string, success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.refreshes.WithLabelValues(backend, result).Inc()
	r.refreshDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordDelivery counts one webhook intake decision.
func (r *Registry) RecordDelivery(result string) {
	r.deliveries.WithLabelValues(result).Inc()
}

// SetQueueDepth reports the number of queued events.
func (r *Registry) SetQueueDepth(n int) {
	r.queueDepth.Set(float64(n))
}
