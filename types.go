package primary

import "github.com/arloliu/primary/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. Backends depend on `types` without depending on the root
// `primary` package, while users still get `primary.LeaseStore`,
// `primary.Logger`, etc.
type (
	LeaseRecord = types.LeaseRecord
)

// Re-export interfaces from the internal types package for convenience.
type (
	LeaseStore       = types.LeaseStore
	Broadcaster      = types.Broadcaster
	Subscription     = types.Subscription
	Scheduler        = types.Scheduler
	Timer            = types.Timer
	Clock            = types.Clock
	IdentityProvider = types.IdentityProvider
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
)
