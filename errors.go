package primary

import "github.com/arloliu/primary/types"

// Sentinel errors returned by the Elector, re-exported from the types package
// so callers can match them with errors.Is without importing types.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrLeaseStoreRequired is returned when the lease store is nil.
	ErrLeaseStoreRequired = types.ErrLeaseStoreRequired

	// ErrBroadcasterRequired is returned when the broadcaster is nil.
	ErrBroadcasterRequired = types.ErrBroadcasterRequired

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrIdentityUnavailable is returned when no process identity can be resolved.
	ErrIdentityUnavailable = types.ErrIdentityUnavailable

	// ErrStoreUnavailable is returned when an attempt could not complete its
	// store transaction. It never means the attempt lost.
	ErrStoreUnavailable = types.ErrStoreUnavailable

	// ErrConnectivity marks store or broadcast failures caused by the network.
	ErrConnectivity = types.ErrConnectivity

	// ErrPublishFailed is returned (joined) from Destroy when the abandonment
	// signal could not be sent.
	ErrPublishFailed = types.ErrPublishFailed
)
