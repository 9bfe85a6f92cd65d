package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Methods may be called from timer and broadcast goroutines and must be
// thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ElectionMetrics
	BroadcastMetrics
}

// ElectionMetrics defines metrics for lease acquisition.
type ElectionMetrics interface {
	// RecordAttempt records a completed acquisition attempt.
	//
	// Parameters:
	//   - outcome: "leader", "follower" or "error"
	//   - duration: Time spent in the store transaction, in seconds
	RecordAttempt(outcome string, duration float64)

	// RecordRoleChange records a transition of the cached role.
	//
	// Parameters:
	//   - isLeader: The new role
	RecordRoleChange(isLeader bool)

	// RecordRelease records a voluntary release on shutdown.
	//
	// Parameters:
	//   - success: true if the release transaction committed
	RecordRelease(success bool)
}

// BroadcastMetrics defines metrics for the cross-process notification channel.
type BroadcastMetrics interface {
	// RecordAbandonPublished records publishing our identity on teardown.
	//
	// Parameters:
	//   - success: true if the publish call succeeded
	RecordAbandonPublished(success bool)

	// RecordAbandonReceived records a handoff signal received from a peer.
	RecordAbandonReceived()
}
