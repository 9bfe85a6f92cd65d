package types

import "time"

// Scheduler arms one-shot timers.
//
// The default implementation wraps time.AfterFunc. Tests substitute a
// manually advanced scheduler to make renewal timing deterministic.
type Scheduler interface {
	// AfterFunc calls fn in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was already stopped.
	Stop() bool
}

// Clock supplies the current wall-clock time.
//
// All participants are assumed to share the same time source.
type Clock interface {
	Now() time.Time
}

// IdentityProvider supplies the identity string of the current process.
type IdentityProvider interface {
	// ID returns the process identity, generating it on first use if needed.
	ID() (string, error)
}
