package metrics

import (
	"time"
)

// Node visit results
const (
	ResultComputed = "computed"
	ResultCached   = "cached"
	ResultReused   = "reused"
	ResultFailed   = "failed"
)

// RecordEvaluation records a completed evaluation pass
func (r *Registry) RecordEvaluation(status string, duration time.Duration) {
	r.EvaluationsTotal.WithLabelValues(status).Inc()
	r.EvaluationDuration.Observe(duration.Seconds())
}

// RecordNode records a node visit. Duration is only observed for computed nodes.
func (r *Registry) RecordNode(operation, result string, duration time.Duration) {
	r.NodeEvaluationsTotal.WithLabelValues(operation, result).Inc()
	if result == ResultComputed {
		r.NodeDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordInvalidations records n generation bumps
func (r *Registry) RecordInvalidations(n int) {
	r.InvalidationsTotal.Add(float64(n))
}

// RecordDispatch records an elementwise dispatch that ran on the worker pool
func (r *Registry) RecordDispatch(items, chunks int) {
	r.ParallelDispatchesTotal.Inc()
	r.ParallelChunksTotal.Add(float64(chunks))
	r.ParallelItems.Observe(float64(items))
}

// RecordFailure records a failure by error kind label
func (r *Registry) RecordFailure(kind string) {
	r.ValidationFailuresTotal.WithLabelValues(kind).Inc()
}

// SetRegistryOperations records the size of the operation registry
func (r *Registry) SetRegistryOperations(n int) {
	r.RegistryOperations.Set(float64(n))
}
