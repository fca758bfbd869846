package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEvalMetrics() {
	r.EvaluationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodegraph_evaluations_total",
			Help: "Total number of evaluation passes",
		},
		[]string{"status"},
	)

	r.EvaluationDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodegraph_evaluation_duration_seconds",
			Help:    "Evaluation pass duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.NodeEvaluationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodegraph_node_evaluations_total",
			Help: "Node visits by operation and result (computed, cached, reused, failed)",
		},
		[]string{"operation", "result"},
	)

	r.NodeDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nodegraph_node_duration_seconds",
			Help:    "Time spent computing a single node in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0},
		},
		[]string{"operation"},
	)

	r.InvalidationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "nodegraph_invalidations_total",
			Help: "Total number of node generation bumps",
		},
	)
}
