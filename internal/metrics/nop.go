package metrics

import "github.com/arloliu/primary/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ElectionMetrics implementation

// RecordAttempt discards the attempt metric.
func (n *NopMetrics) RecordAttempt(_ /* outcome */ string, _ /* duration */ float64) {
	// No-op
}

// RecordRoleChange discards the role change metric.
func (n *NopMetrics) RecordRoleChange(_ /* isLeader */ bool) {
	// No-op
}

// RecordRelease discards the release metric.
func (n *NopMetrics) RecordRelease(_ /* success */ bool) {
	// No-op
}

// BroadcastMetrics implementation

// RecordAbandonPublished discards the publish metric.
func (n *NopMetrics) RecordAbandonPublished(_ /* success */ bool) {
	// No-op
}

// RecordAbandonReceived discards the receive metric.
func (n *NopMetrics) RecordAbandonReceived() {
	// No-op
}
