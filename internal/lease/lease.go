package lease

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arloliu/primary/types"
)

// CanAcquire decides whether selfID may write a new lease over current.
//
// Parameters:
//   - current: Existing record, nil if absent
//   - now: Current wall-clock time
//   - selfID: Identity of the caller
//   - previousOwnerHint: Identity of an abandoning leader, empty if none
//
// Returns:
//   - bool: true if the caller wins the lease
func CanAcquire(current *types.LeaseRecord, now time.Time, selfID, previousOwnerHint string) bool {
	if current == nil {
		return true
	}
	if current.Expired(now) {
		return true
	}
	if current.OwnerID == selfID {
		return true
	}

	return previousOwnerHint != "" && current.OwnerID == previousOwnerHint
}

// Next returns the record written by a successful acquisition.
func Next(now time.Time, selfID string, ttl time.Duration) types.LeaseRecord {
	return types.LeaseRecord{OwnerID: selfID, ExpiresAt: now.Add(ttl)}
}

// wireRecord is the stored JSON form. Expiry is kept as unix milliseconds so
// records written by different backends and languages compare the same way.
type wireRecord struct {
	OwnerID   string `json:"ownerId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Encode serializes a lease record.
func Encode(rec types.LeaseRecord) ([]byte, error) {
	return json.Marshal(wireRecord{OwnerID: rec.OwnerID, ExpiresAt: rec.ExpiresAt.UnixMilli()})
}

// Decode parses a stored lease record.
//
// Returns:
//   - *types.LeaseRecord: Decoded record
//   - error: Wraps types.ErrCorruptRecord if data is not a valid record
func Decode(data []byte) (*types.LeaseRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCorruptRecord, err)
	}

	return &types.LeaseRecord{OwnerID: w.OwnerID, ExpiresAt: time.UnixMilli(w.ExpiresAt)}, nil
}
