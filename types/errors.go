package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the primary library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// Backends wrap their underlying failure with the matching sentinel using
// fmt.Errorf("%w: %w", sentinel, err) so callers can classify without
// depending on a specific storage or transport package.

// Elector errors - Public API errors returned by the Elector.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLeaseStoreRequired is returned when no lease store is supplied.
	ErrLeaseStoreRequired = errors.New("lease store is required")

	// ErrBroadcasterRequired is returned when no broadcaster is supplied.
	ErrBroadcasterRequired = errors.New("broadcaster is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("elector already started")

	// ErrIdentityUnavailable is returned when the identity provider cannot produce an ID.
	ErrIdentityUnavailable = errors.New("process identity unavailable")
)

// Store errors - Returned by LeaseStore implementations.
var (
	// ErrStoreUnavailable indicates the transactional store could not be opened
	// or a transaction could not commit. It never means "lost the election".
	ErrStoreUnavailable = errors.New("lease store unavailable")

	// ErrConnectivity indicates a network-level failure reaching the store or
	// the broadcast channel. Always wrapped together with a more specific sentinel.
	ErrConnectivity = errors.New("connectivity issue")

	// ErrCorruptRecord is returned when a stored lease record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt lease record")
)

// Broadcast errors - Returned by Broadcaster implementations.
var (
	// ErrPublishFailed is returned when a broadcast message could not be sent.
	ErrPublishFailed = errors.New("failed to publish broadcast")

	// ErrSubscribeFailed is returned when subscribing to a broadcast key fails.
	ErrSubscribeFailed = errors.New("failed to subscribe to broadcast")

	// ErrBroadcasterClosed is returned when using a closed broadcaster.
	ErrBroadcasterClosed = errors.New("broadcaster closed")
)

// IsStoreUnavailable reports whether err means the election outcome could not
// be determined, as opposed to a completed-but-losing attempt.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if err wraps ErrStoreUnavailable
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsConnectivityError reports whether err was classified as a network fault.
//
// Matches the ErrConnectivity sentinel first and falls back to the common
// dial and timeout messages produced by the standard library.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates a connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "i/o timeout")
}
