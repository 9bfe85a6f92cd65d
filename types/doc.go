// Package types provides core type definitions and interfaces for the primary library.
//
// This package contains the collaborator contracts shared by the root primary
// package and its storage and broadcast backends. Keeping them here avoids
// import cycles between the elector and its implementations.
//
// Key types:
//   - LeaseRecord: The persisted lease (owner identity and expiry)
//   - LeaseStore: Atomic attempt-acquire against a transactional store
//   - Broadcaster: Best-effort cross-process notification channel
//   - Scheduler: One-shot timers used for renewal and retry
//   - IdentityProvider: Per-process identity source
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
