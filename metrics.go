package primary

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/primary/internal/metrics"
)

// NewPrometheusMetrics creates a MetricsCollector that exports election and
// broadcast metrics to Prometheus.
//
// Metrics are registered with reg on first use. Electors sharing one
// registerer must share one collector.
//
// Parameters:
//   - reg: Prometheus registerer (prometheus.DefaultRegisterer if nil)
//   - namespace: Metric namespace ("primary" if empty)
//
// Returns:
//   - MetricsCollector: Collector for WithMetrics
//
// Example:
//
//	m := primary.NewPrometheusMetrics(prometheus.DefaultRegisterer, "billing")
//	elector, err := primary.New(cfg, store, bus, primary.WithMetrics(m))
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}
