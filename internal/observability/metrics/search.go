package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

const namespace = "isakb"

// retrievalCollectors counts tool calls and search modes. Both binaries that
// serve tools register the same set on their own registry.
type retrievalCollectors struct {
	toolCallsTotal    *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec
	searchModeTotal   *prometheus.CounterVec
	searchDegradTotal *prometheus.CounterVec
}

func newRetrievalCollectors(registry *prometheus.Registry) retrievalCollectors {
	c := retrievalCollectors{
		toolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "calls_total",
				Help:      "Total tool calls by status.",
			},
			[]string{"service", "tool", "status"},
		),
		toolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "call_duration_seconds",
				Help:      "Tool call duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "tool"},
		),
		searchModeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "mode_total",
				Help:      "Searches by corpus and the mode actually used.",
			},
			[]string{"service", "corpus", "mode"},
		),
		searchDegradTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "degraded_total",
				Help:      "Searches that ran in a different mode than requested.",
			},
			[]string{"service", "corpus", "requested", "used"},
		),
	}
	registry.MustRegister(c.toolCallsTotal, c.toolCallDuration, c.searchModeTotal, c.searchDegradTotal)
	return c
}

func (c retrievalCollectors) recordToolCall(service, tool, status string, seconds float64) {
	if tool == "" {
		tool = "unknown"
	}
	c.toolCallsTotal.WithLabelValues(service, tool, status).Inc()
	c.toolCallDuration.WithLabelValues(service, tool).Observe(seconds)
}

func (c retrievalCollectors) observeSearch(service, corpus string, requested, used domain.SearchMode) {
	c.searchModeTotal.WithLabelValues(service, corpus, string(used)).Inc()
	if requested != used {
		c.searchDegradTotal.WithLabelValues(service, corpus, string(requested), string(used)).Inc()
	}
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}
