package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initParallelMetrics() {
	r.ParallelDispatchesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "nodegraph_parallel_dispatches_total",
			Help: "Total number of elementwise list dispatches run on the worker pool",
		},
	)

	r.ParallelChunksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "nodegraph_parallel_chunks_total",
			Help: "Total number of chunks submitted to the worker pool",
		},
	)

	r.ParallelItems = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodegraph_parallel_items",
			Help:    "Number of list items per elementwise dispatch",
			Buckets: prometheus.ExponentialBuckets(2, 4, 8),
		},
	)
}
