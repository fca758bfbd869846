package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// initSystemMetrics registers runtime gauges that are sampled at scrape
// time, so a short-lived command reports fresh values without a ticker
func (r *Registry) initSystemMetrics(start time.Time) {
	factory := promauto.With(r.registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nodegraph_uptime_seconds",
		Help: "Time since the metrics registry was created in seconds",
	}, func() float64 {
		return time.Since(start).Seconds()
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nodegraph_goroutines",
		Help: "Number of goroutines, including idle pool workers",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nodegraph_heap_alloc_bytes",
		Help: "Bytes of allocated heap objects",
	}, func() float64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.HeapAlloc)
	})
}
