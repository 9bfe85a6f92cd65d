package types

import (
	"context"
	"time"
)

// LeaseRecord is the persisted claim of leadership for one lock name.
//
// At most one record exists per lock name. Records are only ever read and
// written inside a single store transaction.
type LeaseRecord struct {
	// OwnerID is the identity of the process currently believed to be leader.
	OwnerID string

	// ExpiresAt is the instant after which the lease is stale.
	ExpiresAt time.Time
}

// Expired reports whether the lease is stale at the given instant.
// A lease expiring exactly at now is considered stale.
func (r LeaseRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// LeaseStore performs atomic attempt-acquire operations against a shared
// transactional store.
//
// Implementations must execute TryAcquire as one serializable read-modify-write
// transaction: two processes racing on a stale lease must never both succeed.
//
// Implementations shipped with this module:
//   - store/natskv: NATS JetStream KV (revision-checked updates)
//   - store/boltstore: bbolt database file (file-locked transactions)
//   - store/memstore: in-process map guarded by a mutex
type LeaseStore interface {
	// TryAcquire attempts to take or renew the lease for lockName.
	//
	// Acquisition succeeds, writing {OwnerID: selfID, ExpiresAt: now+ttl}, when
	// no record exists, the record is stale, the record is owned by selfID, or
	// the record is owned by a non-empty previousOwnerHint. Otherwise the record
	// is left untouched and false is returned.
	//
	// A negative ttl writes an already-expired record, which is how a leader
	// voluntarily releases the lease.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - lockName: Logical lock name (one record per name)
	//   - selfID: Identity of the calling process
	//   - ttl: Lease duration
	//   - previousOwnerHint: Identity of a process known to be abandoning leadership (may be empty)
	//
	// Returns:
	//   - bool: true if the caller now holds the lease
	//   - error: Wraps ErrStoreUnavailable when the outcome could not be determined
	TryAcquire(ctx context.Context, lockName, selfID string, ttl time.Duration, previousOwnerHint string) (bool, error)
}
