package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

// WorkerMetrics covers the NATS tool responder.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestInFlight prometheus.Gauge
	replyBytes      *prometheus.HistogramVec

	retrieval retrievalCollectors
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "requests_total",
			Help:      "Total bus requests handled by status.",
		},
		[]string{"service", "status"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "requests_in_flight",
			Help:      "Number of bus requests being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	replyBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "reply_bytes",
			Help:      "Size of reply payloads.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"service"},
	)

	registry.MustRegister(requestTotal, requestInFlight, replyBytes)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestInFlight: requestInFlight,
		replyBytes:      replyBytes,
		retrieval:       newRetrievalCollectors(registry),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRequest() {
	m.requestInFlight.Inc()
}

func (m *WorkerMetrics) FinishRequest(replySize int, err error) {
	m.requestInFlight.Dec()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requestTotal.WithLabelValues(m.service, status).Inc()
	if replySize > 0 {
		m.replyBytes.WithLabelValues(m.service).Observe(float64(replySize))
	}
}

func (m *WorkerMetrics) ObserveToolCall(tool string, duration time.Duration, err error) {
	m.retrieval.recordToolCall(m.service, tool, callStatus(err), duration.Seconds())
}

func (m *WorkerMetrics) ObserveSearch(corpus string, requested, used domain.SearchMode) {
	m.retrieval.observeSearch(m.service, corpus, requested, used)
}
