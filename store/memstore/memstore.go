// Package memstore provides an in-process types.LeaseStore.
//
// All electors sharing one *Store see the same records, which makes it the
// store of choice for tests and for embedding several electors in one
// process. A single mutex serializes transactions.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/primary/internal/clock"
	"github.com/arloliu/primary/internal/lease"
	"github.com/arloliu/primary/types"
)

// Store is a mutex-guarded map of lock name to lease record.
type Store struct {
	mu      sync.Mutex
	clock   types.Clock
	records map[string]types.LeaseRecord
	failure error
}

// Compile-time assertion that Store implements LeaseStore.
var _ types.LeaseStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp and compare expiry.
func WithClock(c types.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// New creates an empty in-memory store.
//
// Example:
//
//	st := memstore.New()
//	a, _ := primary.New(cfg, st, bus)
func New(opts ...Option) *Store {
	s := &Store{
		clock:   clock.System{},
		records: make(map[string]types.LeaseRecord),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TryAcquire implements types.LeaseStore.
func (s *Store) TryAcquire(ctx context.Context, lockName, selfID string, ttl time.Duration, previousOwnerHint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure != nil {
		return false, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, s.failure)
	}

	now := s.clock.Now()

	var current *types.LeaseRecord
	if rec, ok := s.records[lockName]; ok {
		current = &rec
	}

	if !lease.CanAcquire(current, now, selfID, previousOwnerHint) {
		return false, nil
	}

	s.records[lockName] = lease.Next(now, selfID, ttl)

	return true, nil
}

// Get returns a copy of the record for lockName.
func (s *Store) Get(lockName string) (types.LeaseRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[lockName]

	return rec, ok
}

// SetFailure makes every following transaction fail with err wrapped in
// types.ErrStoreUnavailable. Pass nil to recover.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failure = err
}

// Reset removes all records.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.records)
}
