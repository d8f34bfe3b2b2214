package session

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	sessionsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	rowsTotal        *prometheus.CounterVec
	matchesTotal     *prometheus.CounterVec

	previewLatency *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		sessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartimport",
			Name:      "sessions_total",
			Help:      "Total number of import sessions created, by result.",
		}, []string{"result"}),
		transitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartimport",
			Name:      "session_transitions_total",
			Help:      "Total number of session state transitions.",
		}, []string{"to"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartimport",
			Name:      "rows_evaluated_total",
			Help:      "Total number of rows evaluated, by phase and validation status.",
		}, []string{"phase", "status"}),
		matchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartimport",
			Name:      "row_matches_total",
			Help:      "Total number of matched rows, by method and confidence tier.",
		}, []string{"method", "confidence"}),
		previewLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smartimport",
			Name:      "evaluation_latency_seconds",
			Help:      "Latency distribution for evaluating a session's rows.",
			Buckets: []float64{
				0.005, 0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10, 30,
			},
		}, []string{"phase"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
