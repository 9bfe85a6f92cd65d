// Package boltstore provides a types.LeaseStore backed by a bbolt database file.
//
// Processes on the same host share leases through one file per store name.
// The database is opened for each transaction and closed right after: bbolt
// holds an exclusive file lock while open, so short-lived handles are what
// lets several processes take turns, and the lock itself serializes their
// read-modify-write transactions.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/arloliu/primary/internal/clock"
	"github.com/arloliu/primary/internal/lease"
	"github.com/arloliu/primary/internal/logging"
	"github.com/arloliu/primary/types"
)

const (
	// DefaultBucket is the bucket holding lease records.
	DefaultBucket = "locks"

	// DefaultLockTimeout bounds how long a transaction waits for the file lock.
	DefaultLockTimeout = 2 * time.Second

	fileMode = 0o600
)

// ErrBucketNotFound is returned when the lease bucket is missing from an
// existing database file.
var ErrBucketNotFound = errors.New("lease bucket not found")

// Config configures a bbolt-backed store.
type Config struct {
	// Dir is the directory holding database files. Created if missing.
	Dir string `yaml:"dir"`

	// StoreName selects the database file (<Dir>/<StoreName>.db).
	StoreName string `yaml:"storeName"`

	// Bucket is the bbolt bucket for lease records (default "locks").
	Bucket string `yaml:"bucket"`

	// LockTimeout bounds the wait for the file lock (default 2s).
	LockTimeout time.Duration `yaml:"lockTimeout"`
}

// Store implements types.LeaseStore on a bbolt file.
type Store struct {
	path        string
	bucket      []byte
	lockTimeout time.Duration
	clock       types.Clock
	logger      types.Logger
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

// WithLogger sets the logger for corrupt-record warnings.
func WithLogger(logger types.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New prepares a store and creates the database file and bucket if needed.
//
// Parameters:
//   - cfg: Store configuration (Dir and StoreName are required)
//   - opts: Optional settings
//
// Returns:
//   - *Store: Ready-to-use store
//   - error: Wraps types.ErrStoreUnavailable if the file cannot be initialized
//
// Example:
//
//	st, err := boltstore.New(boltstore.Config{Dir: os.TempDir(), StoreName: "primary"})
func New(cfg Config, opts ...Option) (*Store, error) {
	if cfg.Dir == "" || cfg.StoreName == "" {
		return nil, fmt.Errorf("%w: dir and store name are required", types.ErrInvalidConfig)
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	s := &Store{
		path:        filepath.Join(cfg.Dir, cfg.StoreName+".db"),
		bucket:      []byte(cfg.Bucket),
		lockTimeout: cfg.LockTimeout,
		clock:       clock.System{},
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	err := s.withDB(context.Background(), func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(s.bucket)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// TryAcquire implements types.LeaseStore inside a single bbolt Update transaction.
func (s *Store) TryAcquire(ctx context.Context, lockName, selfID string, ttl time.Duration, previousOwnerHint string) (bool, error) {
	acquired := false

	err := s.withDB(ctx, func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(s.bucket)
			if b == nil {
				return ErrBucketNotFound
			}

			key := []byte(lockName)
			now := s.clock.Now()

			var current *types.LeaseRecord
			if raw := b.Get(key); raw != nil {
				rec, err := lease.Decode(raw)
				if err != nil {
					// Unreadable records hold no live lease; Put below overwrites it.
					s.logger.Warn("overwriting corrupt lease record", "lock", lockName, "error", err)
				}
				current = rec
			}

			if !lease.CanAcquire(current, now, selfID, previousOwnerHint) {
				return nil
			}

			data, err := lease.Encode(lease.Next(now, selfID, ttl))
			if err != nil {
				return err
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
			acquired = true

			return nil
		})
	})
	if err != nil {
		return false, err
	}

	return acquired, nil
}

// Get reads the current record for lockName.
//
// Returns:
//   - *types.LeaseRecord: The record, nil if absent
//   - error: Wraps types.ErrStoreUnavailable on failure
func (s *Store) Get(ctx context.Context, lockName string) (*types.LeaseRecord, error) {
	var rec *types.LeaseRecord

	err := s.withDB(ctx, func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(s.bucket)
			if b == nil {
				return ErrBucketNotFound
			}
			raw := b.Get([]byte(lockName))
			if raw == nil {
				return nil
			}

			var err error
			rec, err = lease.Decode(raw)

			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// withDB opens the database, runs fn and closes it. The lock wait is bounded
// by the smaller of the configured timeout and the context deadline.
func (s *Store) withDB(ctx context.Context, fn func(db *bolt.DB) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	timeout := s.lockTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, context.DeadlineExceeded)
	}

	db, err := bolt.Open(s.path, fileMode, &bolt.Options{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", types.ErrStoreUnavailable, s.path, err)
	}

	fnErr := fn(db)
	closeErr := db.Close()

	if fnErr != nil {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, fnErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close %s: %w", types.ErrStoreUnavailable, s.path, closeErr)
	}

	return nil
}
