// Package metrics provides MetricsCollector implementations.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/primary/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing
// one is free and never panics on duplicate registration until it records.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	attempts        *prometheus.CounterVec
	attemptLatency  prometheus.Histogram
	roleChanges     *prometheus.CounterVec
	isLeader        prometheus.Gauge
	releases        *prometheus.CounterVec
	abandonSent     *prometheus.CounterVec
	abandonReceived prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "primary" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "primary"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.attempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "attempts_total",
			Help:      "Lease acquisition attempts by outcome (leader,follower,error).",
		}, []string{"outcome"})

		p.attemptLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of lease acquisition transactions in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		})

		p.roleChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "role_changes_total",
			Help:      "Role transitions observed by this process, by new role.",
		}, []string{"leader"})

		p.isLeader = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "is_leader",
			Help:      "Whether this process currently believes it is the leader (1) or not (0).",
		})

		p.releases = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "releases_total",
			Help:      "Voluntary lease releases on shutdown by result (success,failure).",
		}, []string{"result"})

		p.abandonSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "broadcast",
			Name:      "abandon_published_total",
			Help:      "Abandon signals published on teardown by result (success,failure).",
		}, []string{"result"})

		p.abandonReceived = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "broadcast",
			Name:      "abandon_received_total",
			Help:      "Abandon signals received from peers.",
		})

		p.reg.MustRegister(p.attempts)
		p.reg.MustRegister(p.attemptLatency)
		p.reg.MustRegister(p.roleChanges)
		p.reg.MustRegister(p.isLeader)
		p.reg.MustRegister(p.releases)
		p.reg.MustRegister(p.abandonSent)
		p.reg.MustRegister(p.abandonReceived)
	})
}

// ElectionMetrics implementation

// RecordAttempt counts an attempt by outcome and observes its latency.
func (p *PrometheusCollector) RecordAttempt(outcome string, duration float64) {
	p.ensureRegistered()
	p.attempts.WithLabelValues(outcome).Inc()
	p.attemptLatency.Observe(duration)
}

// RecordRoleChange counts a transition and updates the leader gauge.
func (p *PrometheusCollector) RecordRoleChange(isLeader bool) {
	p.ensureRegistered()
	p.roleChanges.WithLabelValues(strconv.FormatBool(isLeader)).Inc()
	if isLeader {
		p.isLeader.Set(1)
	} else {
		p.isLeader.Set(0)
	}
}

// RecordRelease counts a voluntary release.
func (p *PrometheusCollector) RecordRelease(success bool) {
	p.ensureRegistered()
	p.releases.WithLabelValues(result(success)).Inc()
}

// BroadcastMetrics implementation

// RecordAbandonPublished counts an abandon signal sent on teardown.
func (p *PrometheusCollector) RecordAbandonPublished(success bool) {
	p.ensureRegistered()
	p.abandonSent.WithLabelValues(result(success)).Inc()
}

// RecordAbandonReceived counts an abandon signal received from a peer.
func (p *PrometheusCollector) RecordAbandonReceived() {
	p.ensureRegistered()
	p.abandonReceived.Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}
