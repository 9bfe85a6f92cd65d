// Package natskv provides a types.LeaseStore backed by a NATS JetStream KV bucket.
//
// JetStream has no multi-key transactions, but every KV key carries a
// revision and writes can be conditioned on it:
//   - Create succeeds only if the key is absent (or deleted)
//   - Update succeeds only if the key is still at the revision we read
//
// TryAcquire reads the record, applies the acquisition rule, and writes
// conditioned on what it read. If another process committed in between the
// conditional write fails and the whole read-decide-write is re-run against
// the fresh record, which gives the same outcome as a serializable
// transaction.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/primary/internal/backoff"
	"github.com/arloliu/primary/internal/clock"
	"github.com/arloliu/primary/internal/kvutil"
	"github.com/arloliu/primary/internal/lease"
	"github.com/arloliu/primary/internal/logging"
	"github.com/arloliu/primary/internal/natsutil"
	"github.com/arloliu/primary/types"
)

// DefaultMaxConflicts bounds how many times a transaction is re-run after
// losing a conditional write.
const DefaultMaxConflicts = 8

// Conflict backoff bounds. Losers of a write race usually find a fresh,
// unexpired record on the next read, so delays stay short.
const (
	conflictBackoffBase = time.Millisecond
	conflictBackoffCap  = 20 * time.Millisecond
)

// ErrTooManyConflicts is returned when a transaction keeps losing
// conditional writes. It is always wrapped with types.ErrStoreUnavailable.
var ErrTooManyConflicts = errors.New("too many conflicting lease writes")

// Config configures the KV bucket used as the lease store.
type Config struct {
	// Bucket is the KV bucket name (the store name). Invalid characters are
	// replaced by a stable digest.
	Bucket string `yaml:"bucket"`

	// Replicas is the bucket replication factor (default 1).
	Replicas int `yaml:"replicas"`

	// Storage selects file or memory storage (default file).
	MemoryStorage bool `yaml:"memoryStorage"`

	// BucketTTL optionally purges records that have not been written for this
	// long. Lease expiry never depends on it; 0 keeps records forever.
	BucketTTL time.Duration `yaml:"bucketTtl"`
}

// Store implements types.LeaseStore on a JetStream KV bucket.
type Store struct {
	kv           jetstream.KeyValue
	clock        types.Clock
	logger       types.Logger
	maxConflicts int
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

// WithLogger sets the logger for corrupt-record and bucket warnings.
func WithLogger(logger types.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxConflicts sets how many conflicting writes a transaction tolerates.
func WithMaxConflicts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxConflicts = n
		}
	}
}

// New wraps an existing KV bucket.
//
// Parameters:
//   - kv: JetStream KV bucket shared by all participating processes
//   - opts: Optional settings
//
// Returns:
//   - *Store: Lease store using kv
func New(kv jetstream.KeyValue, opts ...Option) *Store {
	s := &Store{
		kv:           kv,
		clock:        clock.System{},
		logger:       logging.NewNop(),
		maxConflicts: DefaultMaxConflicts,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Open creates or opens the bucket described by cfg and wraps it.
//
// Concurrent Open calls from several processes are safe: losing the bucket
// creation race falls back to opening the existing bucket, which is checked
// for a usable lease layout.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - cfg: Bucket configuration
//   - opts: Optional settings
//
// Returns:
//   - *Store: Lease store on the bucket
//   - error: Wraps types.ErrStoreUnavailable if the bucket cannot be opened
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	st, err := natskv.Open(ctx, js, natskv.Config{Bucket: "primary"})
func Open(ctx context.Context, js jetstream.JetStream, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", types.ErrInvalidConfig)
	}

	kvCfg := jetstream.KeyValueConfig{
		Bucket:      kvutil.SafeBucket(cfg.Bucket),
		Description: "primary election leases",
		History:     1,
		Replicas:    cfg.Replicas,
		Storage:     jetstream.FileStorage,
	}
	if cfg.MemoryStorage {
		kvCfg.Storage = jetstream.MemoryStorage
	}
	if cfg.BucketTTL > 0 {
		kvCfg.TTL = cfg.BucketTTL
	}

	s := New(nil, opts...)

	kv, err := ensureBucket(ctx, js, kvCfg, s.logger)
	if err != nil {
		if errors.Is(err, types.ErrInvalidConfig) {
			return nil, err
		}

		return nil, natsutil.Wrap(types.ErrStoreUnavailable, err)
	}
	s.kv = kv

	return s, nil
}

// TryAcquire implements types.LeaseStore.
func (s *Store) TryAcquire(ctx context.Context, lockName, selfID string, ttl time.Duration, previousOwnerHint string) (bool, error) {
	key := kvutil.SafeKey(lockName)

	var delay time.Duration
	for attempt := range s.maxConflicts {
		if attempt > 0 {
			delay = backoff.Jitter(delay, conflictBackoffBase, 2.0, conflictBackoffCap, nil)
			if err := backoff.Sleep(ctx, delay); err != nil {
				return false, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
			}
		}

		current, revision, err := s.read(ctx, key)
		if errors.Is(err, types.ErrCorruptRecord) {
			// An unreadable record holds no live lease; overwrite it at its revision.
			s.logger.Warn("overwriting corrupt lease record", "lock", lockName, "revision", revision, "error", err)
			current = nil
		} else if err != nil {
			return false, err
		}

		now := s.clock.Now()
		if !lease.CanAcquire(current, now, selfID, previousOwnerHint) {
			return false, nil
		}

		data, err := lease.Encode(lease.Next(now, selfID, ttl))
		if err != nil {
			return false, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}

		if revision == 0 {
			_, err = s.kv.Create(ctx, key, data)
		} else {
			_, err = s.kv.Update(ctx, key, data, revision)
		}
		if err == nil {
			return true, nil
		}
		if !isConflict(err) {
			return false, natsutil.Wrap(types.ErrStoreUnavailable, err)
		}
		// Another process committed between our read and write; re-run.
	}

	return false, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, ErrTooManyConflicts)
}

// Get reads the current record for lockName.
//
// Returns:
//   - *types.LeaseRecord: The record, nil if absent or deleted
//   - error: Wraps types.ErrStoreUnavailable on failure, and also
//     types.ErrCorruptRecord if the stored value cannot be decoded
func (s *Store) Get(ctx context.Context, lockName string) (*types.LeaseRecord, error) {
	rec, _, err := s.read(ctx, kvutil.SafeKey(lockName))

	return rec, err
}

// read returns the decoded record and its revision; nil record and revision 0
// if absent. An undecodable value is reported with its revision and an error
// wrapping types.ErrCorruptRecord.
func (s *Store) read(ctx context.Context, key string) (*types.LeaseRecord, uint64, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, natsutil.Wrap(types.ErrStoreUnavailable, err)
	}

	rec, err := lease.Decode(entry.Value())
	if err != nil {
		return nil, entry.Revision(), fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	return rec, entry.Revision(), nil
}

// isConflict reports whether a conditional write lost to a concurrent commit.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}

// Watch streams the lease record for lockName: the current record first, if
// any, then every subsequent write. Deletions and undecodable values are
// skipped. The channel is closed when ctx is done or the watch fails.
//
// Parameters:
//   - ctx: Lifetime of the watch
//   - lockName: Lock to observe
//
// Returns:
//   - <-chan types.LeaseRecord: Records in commit order
//   - error: Wraps types.ErrStoreUnavailable if the watch cannot be created
func (s *Store) Watch(ctx context.Context, lockName string) (<-chan types.LeaseRecord, error) {
	// The watcher delivers the initial value, then a nil marker, then updates.
	watcher, err := s.kv.Watch(ctx, kvutil.SafeKey(lockName))
	if err != nil {
		return nil, natsutil.Wrap(types.ErrStoreUnavailable, err)
	}

	out := make(chan types.LeaseRecord, 8)
	go func() {
		defer close(out)
		defer func() { _ = watcher.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}

				rec, err := lease.Decode(entry.Value())
				if err != nil {
					continue
				}

				select {
				case out <- *rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
