// Package lease holds the acquisition rule and record encoding shared by
// every LeaseStore backend.
//
// Backends differ only in how they make the read-modify-write atomic; the
// decision of whether a caller may take the lease is made here so that all
// of them apply exactly the same tie-break conditions:
//
//   - no record exists
//   - the record has expired (ExpiresAt <= now)
//   - the record is owned by the caller (renewal)
//   - the record is owned by the previous-owner hint (handoff)
//
// Dropping the renewal case makes a leader lose its own lease every cycle.
package lease
