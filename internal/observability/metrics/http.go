package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

// HTTPServerMetrics instruments the tool API and doubles as the search and
// tool-call observer of the API process.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	retrieval retrievalCollectors
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &HTTPServerMetrics{
		registry: registry,
		service:  service,
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		requestInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control.",
		}, []string{"service", "reason"}),
		retrieval: newRetrievalCollectors(registry),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()
		next.ServeHTTP(recorder, r)

		path := routeLabel(r.URL.Path)
		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeLabel keeps the path label bounded: tool names collapse into one
// route and unknown paths into "other".
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/tools/"):
		return "/v1/tools/{name}"
	case path == "/v1/tools", path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

// RecordRejected counts a request refused before reaching a handler
// ("rate_limited", "overloaded" or "unauthorized").
func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(m.service, reason).Inc()
}

func (m *HTTPServerMetrics) ObserveToolCall(tool string, duration time.Duration, err error) {
	m.retrieval.recordToolCall(m.service, tool, callStatus(err), duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveSearch(corpus string, requested, used domain.SearchMode) {
	m.retrieval.observeSearch(m.service, corpus, requested, used)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
