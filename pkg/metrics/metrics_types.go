package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the evaluation engine
type Registry struct {
	// Evaluation pass metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// Per-node metrics
	NodeEvaluationsTotal *prometheus.CounterVec
	NodeDuration         *prometheus.HistogramVec
	InvalidationsTotal   prometheus.Counter

	// Parallel dispatch metrics
	ParallelDispatchesTotal prometheus.Counter
	ParallelChunksTotal     prometheus.Counter
	ParallelItems           prometheus.Histogram

	// Graph metrics
	ValidationFailuresTotal *prometheus.CounterVec
	RegistryOperations      prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initEvalMetrics()
	r.initParallelMetrics()
	r.initGraphMetrics()
	r.initSystemMetrics(time.Now())

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
