package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGraphMetrics() {
	r.ValidationFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodegraph_validation_failures_total",
			Help: "Graph validation and evaluation failures by error kind",
		},
		[]string{"kind"},
	)

	r.RegistryOperations = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "nodegraph_registry_operations",
			Help: "Number of operations in the frozen registry",
		},
	)
}
