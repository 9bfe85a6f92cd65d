// Package testing provides test utilities for the primary library.
//
// This package offers helpers for setting up test environments: embedded NATS
// servers with JetStream for the NATS-backed store and broadcaster, a test
// logger, and a manually advanced clock for deterministic renewal timing. It
// follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: types.Logger writing to t.Logf
//   - NewFakeClock: types.Clock and types.Scheduler advanced by hand
//
// Example usage:
//
//	import (
//	    "testing"
//	    primarytest "github.com/arloliu/primary/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := primarytest.StartEmbeddedNATS(t)
//	    kv := primarytest.CreateJetStreamKV(t, nc, "leases")
//	    // Use kv for your tests
//	}
package testing
