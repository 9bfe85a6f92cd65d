package testutil

import (
	"testing"
	"time"

	"github.com/arloliu/primary"
)

// AssertSingleLeader verifies that at most one elector believes it is leader
// and, when a lease record is supplied, that the believed leader owns it.
//
// Parameters:
//   - t: testing handle
//   - electors: electors to inspect (destroyed ones are skipped)
//   - record: current lease record, nil to skip the ownership check
//   - now: time used to decide whether record is still valid
func AssertSingleLeader(t *testing.T, electors []*primary.Elector, record *primary.LeaseRecord, now time.Time) {
	t.Helper()

	var leaders []string
	for _, e := range electors {
		if !e.IsDestroyed() && e.IsLeader() {
			leaders = append(leaders, e.ID())
		}
	}

	if len(leaders) > 1 {
		t.Fatalf("multiple electors believe they are leader: %v", leaders)
	}

	if record == nil || len(leaders) == 0 {
		return
	}
	if !record.Expired(now) && record.OwnerID != leaders[0] {
		t.Fatalf("leader %s does not own the valid lease (owner %s, expires %s)",
			leaders[0], record.OwnerID, record.ExpiresAt)
	}
}
