// Package broadcast groups the types.Broadcaster implementations.
//
// A broadcaster carries the "leader abandoned" signal: an elector that shuts
// down publishes its own identity under the configured key, and every other
// elector subscribed to that key immediately attempts acquisition using the
// received identity as a hint. Delivery is best effort; lease expiry remains
// the fallback.
//
// Available implementations:
//   - natsbus: core NATS publish/subscribe across processes and hosts
//   - membus: in-process hub for tests and single-binary deployments
package broadcast
