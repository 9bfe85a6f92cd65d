package primary

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/primary/identity"
	"github.com/arloliu/primary/internal/clock"
	"github.com/arloliu/primary/internal/logging"
	"github.com/arloliu/primary/internal/metrics"
	"github.com/arloliu/primary/types"
)

// Attempt outcomes reported to MetricsCollector.RecordAttempt.
const (
	OutcomeLeader   = "leader"
	OutcomeFollower = "follower"
	OutcomeError    = "error"
)

type role uint8

const (
	roleUnknown role = iota
	roleFollower
	roleLeader
)

func (r role) String() string {
	switch r {
	case roleFollower:
		return "follower"
	case roleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// ListenerID identifies a registered role-change listener.
type ListenerID uint64

type listener struct {
	id ListenerID
	fn func(isLeader bool)
}

// Elector runs the lease election for one process.
//
// The elector caches the outcome of its last completed attempt and keeps
// exactly one timer armed: a follower retries after TTL, a leader renews after
// TTL - TTL/4. Role changes are delivered to listeners in registration order.
//
// Thread Safety: All exported methods are safe for concurrent use. Store and
// broadcast calls are made without holding the internal lock, so attempts
// from timers, broadcasts and callers may overlap; the store decides.
type Elector struct {
	cfg       Config
	id        string
	store     types.LeaseStore
	channel   types.Broadcaster
	logger    Logger
	metrics   MetricsCollector
	scheduler Scheduler
	clock     Clock

	// Lifecycle context for timer and broadcast triggered attempts.
	// Cancelled by Destroy.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	role       role
	timer      Timer
	timerGen   uint64
	listeners  []listener
	nextID     ListenerID
	sub        Subscription
	started    bool
	destroyed  bool
	pending    []bool // role changes waiting for delivery
	delivering bool
}

// New creates an Elector.
//
// The configuration is completed with defaults and validated. Nothing touches
// the store or the broadcaster until Start or Attempt is called.
//
// Parameters:
//   - cfg: Configuration (zero-valued fields take defaults)
//   - store: Shared transactional lease store
//   - channel: Shared broadcast channel
//   - opts: Optional dependencies (logger, metrics, scheduler, clock, identity)
//
// Returns:
//   - *Elector: Initialized elector, not yet started
//   - error: ErrLeaseStoreRequired, ErrBroadcasterRequired, ErrInvalidConfig or
//     ErrIdentityUnavailable
//
// Example:
//
//	elector, err := primary.New(primary.DefaultConfig(), store, bus,
//	    primary.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	isLeader, err := elector.Start(ctx)
func New(cfg Config, store LeaseStore, channel Broadcaster, opts ...Option) (*Elector, error) {
	if store == nil {
		return nil, ErrLeaseStoreRequired
	}
	if channel == nil {
		return nil, ErrBroadcasterRequired
	}

	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &electorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	scheduler := options.scheduler
	if scheduler == nil {
		scheduler = clock.System{}
	}

	clk := options.clock
	if clk == nil {
		clk = clock.System{}
	}

	if cfg.ID == "" {
		provider := options.identity
		if provider == nil {
			provider = identity.Random()
		}
		id, err := provider.ID()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
		}
		if id == "" {
			return nil, fmt.Errorf("%w: provider returned an empty identity", ErrIdentityUnavailable)
		}
		cfg.ID = id
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Elector{
		cfg:       cfg,
		id:        cfg.ID,
		store:     store,
		channel:   channel,
		logger:    logging.With(loggerInstance, "lock", cfg.LockName, "id", cfg.ID),
		metrics:   metricsCollector,
		scheduler: scheduler,
		clock:     clk,
		ctx:       ctx,
		cancel:    cancel,
	}

	return e, nil
}

// Elect creates an Elector and starts it.
//
// If Start fails after the elector was created, the elector is returned
// together with the error: its retry timer is armed and it keeps trying until
// destroyed.
//
// Returns:
//   - *Elector: The running elector (nil only if New failed)
//   - bool: Initial role, true if this process is the leader
//   - error: Error from New or Start
func Elect(ctx context.Context, cfg Config, store LeaseStore, channel Broadcaster, opts ...Option) (*Elector, bool, error) {
	e, err := New(cfg, store, channel, opts...)
	if err != nil {
		return nil, false, err
	}

	isLeader, err := e.Start(ctx)

	return e, isLeader, err
}

// ID returns the identity this elector acquires the lease with.
func (e *Elector) ID() string {
	return e.id
}

// Config returns the effective configuration (defaults applied).
func (e *Elector) Config() Config {
	return e.cfg
}

// Start subscribes to the broadcast key and performs the initial attempt.
//
// Parameters:
//   - ctx: Context bounding the initial store transaction
//
// Returns:
//   - bool: true if this process became the leader
//   - error: ErrAlreadyStarted, a subscribe failure (the elector may be
//     started again), or a store failure (the retry timer stays armed)
func (e *Elector) Start(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return false, nil
	}
	if e.started {
		e.mu.Unlock()
		return false, ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	sub, err := e.channel.Subscribe(e.cfg.BroadcastKey, e.onBroadcast)
	if err != nil {
		e.mu.Lock()
		e.started = false
		e.mu.Unlock()

		return false, err
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		_ = sub.Unsubscribe()

		return false, nil
	}
	e.sub = sub
	e.mu.Unlock()

	e.logger.Info("elector started", "ttl", e.cfg.TTL, "broadcastKey", e.cfg.BroadcastKey)

	return e.Attempt(ctx, "")
}

// Attempt runs one acquisition transaction.
//
// previousOwnerHint names a process believed to have abandoned the lease; the
// attempt succeeds even if that process still holds an unexpired record.
// Pass "" when there is no such process.
//
// Whatever the outcome, the pending timer is replaced by exactly one new
// timer. On a role change listeners are notified before Attempt returns,
// unless another goroutine is already delivering, in which case that
// goroutine delivers this change next.
//
// After Destroy, Attempt does nothing and returns (false, nil).
//
// Returns:
//   - bool: true if this process holds the lease
//   - error: Wraps ErrStoreUnavailable if the transaction could not complete;
//     the cached role is left unchanged and a retry is armed after TTL
func (e *Elector) Attempt(ctx context.Context, previousOwnerHint string) (bool, error) {
	if e.IsDestroyed() {
		return false, nil
	}

	start := e.clock.Now()
	won, err := e.store.TryAcquire(ctx, e.cfg.LockName, e.id, e.cfg.TTL, previousOwnerHint)
	duration := e.clock.Now().Sub(start).Seconds()

	if err != nil && !errors.Is(err, ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return won, err
	}

	if err != nil {
		e.armTimerLocked(e.cfg.TTL)
		e.mu.Unlock()

		e.metrics.RecordAttempt(OutcomeError, duration)
		if types.IsConnectivityError(err) {
			e.logger.Warn("lease attempt failed, store unreachable", "error", err, "retryIn", e.cfg.TTL)
		} else {
			e.logger.Error("lease attempt failed", "error", err, "retryIn", e.cfg.TTL)
		}

		return false, err
	}

	next := roleFollower
	delay := e.cfg.TTL
	outcome := OutcomeFollower
	if won {
		next = roleLeader
		delay = e.cfg.TTL - e.cfg.TTL/4
		outcome = OutcomeLeader
	}

	prev := e.role
	changed := prev != next
	if changed {
		e.role = next
		e.pending = append(e.pending, won)
	}
	e.armTimerLocked(delay)
	e.mu.Unlock()

	e.metrics.RecordAttempt(outcome, duration)
	e.logger.Debug("lease attempt completed", "leader", won, "hint", previousOwnerHint, "nextIn", delay)

	if changed {
		e.metrics.RecordRoleChange(won)
		e.logger.Info("role changed", "from", prev.String(), "to", next.String())
		e.deliver()
	}

	return won, nil
}

// Poll returns the cached role without touching the store.
//
// Returns:
//   - isLeader: true if the last completed attempt acquired the lease
//   - known: false until the first attempt completes successfully
func (e *Elector) Poll() (isLeader bool, known bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.role == roleLeader, e.role != roleUnknown
}

// IsLeader reports whether the cached role is leader.
func (e *Elector) IsLeader() bool {
	isLeader, _ := e.Poll()

	return isLeader
}

// IsDestroyed reports whether Destroy has been called.
func (e *Elector) IsDestroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.destroyed
}

// AddListener registers fn to be called with the new role on every role
// change. The current role is not replayed; fn sees the next transition.
//
// Listeners run on the goroutine that completed the attempt and may call
// Attempt, RemoveListener or Destroy.
//
// Returns:
//   - ListenerID: Handle for RemoveListener (0 if the elector is destroyed)
func (e *Elector) AddListener(fn func(isLeader bool)) ListenerID {
	if fn == nil {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return 0
	}

	e.nextID++
	e.listeners = append(e.listeners, listener{id: e.nextID, fn: fn})

	return e.nextID
}

// RemoveListener unregisters a listener. Unknown handles are ignored.
func (e *Elector) RemoveListener(id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = slices.DeleteFunc(e.listeners, func(l listener) bool {
		return l.id == id
	})
}

// Destroy shuts the elector down.
//
// Steps, in order: cancel the timer, unsubscribe from the broadcast key,
// drop all listeners, mark destroyed, publish our identity on the broadcast
// key so followers can take over immediately, and, if releaseIfLeader is set
// and we are the cached leader, write an already-expired lease.
//
// Destroy is idempotent; later calls return nil. Publish and release are
// best effort and bounded by OperationTimeout.
//
// Parameters:
//   - ctx: Context for the publish and release calls
//   - releaseIfLeader: Release the lease if currently leader
//
// Returns:
//   - error: Joined unsubscribe, publish and release errors, nil if all succeeded
func (e *Elector) Destroy(ctx context.Context, releaseIfLeader bool) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}

	e.stopTimerLocked()
	sub := e.sub
	e.sub = nil
	e.listeners = nil
	e.pending = nil
	e.destroyed = true
	wasLeader := e.role == roleLeader
	e.mu.Unlock()

	e.cancel()

	var errs []error

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}

	pubCtx, pubCancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	err := e.channel.Publish(pubCtx, e.cfg.BroadcastKey, e.id)
	pubCancel()
	e.metrics.RecordAbandonPublished(err == nil)
	if err != nil {
		e.logger.Warn("failed to publish abandonment", "error", err)
		errs = append(errs, err)
	}

	if releaseIfLeader && wasLeader {
		relCtx, relCancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
		_, err := e.store.TryAcquire(relCtx, e.cfg.LockName, e.id, -e.cfg.TTL, e.id)
		relCancel()
		e.metrics.RecordRelease(err == nil)
		if err != nil {
			e.logger.Warn("failed to release lease", "error", err)
			errs = append(errs, err)
		}
	}

	e.logger.Info("elector destroyed", "wasLeader", wasLeader, "released", releaseIfLeader && wasLeader)

	return errors.Join(errs...)
}

// onBroadcast handles a value received on the broadcast key.
func (e *Elector) onBroadcast(value string) {
	if value == "" || value == e.id || e.IsDestroyed() {
		return
	}

	e.metrics.RecordAbandonReceived()
	e.logger.Debug("received abandonment", "from", value)

	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, e.cfg.OperationTimeout)
		defer cancel()

		_, _ = e.Attempt(ctx, value)
	}()
}

// onTimer runs a scheduled attempt if gen is still the current timer.
func (e *Elector) onTimer(gen uint64) {
	e.mu.Lock()
	if e.destroyed || gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.OperationTimeout)
	defer cancel()

	_, _ = e.Attempt(ctx, "")
}

// armTimerLocked replaces the pending timer. Caller must hold e.mu.
func (e *Elector) armTimerLocked(d time.Duration) {
	e.stopTimerLocked()

	gen := e.timerGen
	e.timer = e.scheduler.AfterFunc(d, func() {
		e.onTimer(gen)
	})
}

// stopTimerLocked cancels the pending timer and invalidates in-flight fires.
// Caller must hold e.mu.
func (e *Elector) stopTimerLocked() {
	e.timerGen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// deliver drains pending role changes to listeners.
//
// Only one goroutine delivers at a time; others append to pending and return.
// Each change is delivered to a snapshot of the listeners, skipping any that
// were removed mid-delivery. Destroy stops delivery before the next callback.
func (e *Elector) deliver() {
	e.mu.Lock()
	if e.delivering {
		e.mu.Unlock()
		return
	}
	e.delivering = true

	for len(e.pending) > 0 && !e.destroyed {
		isLeader := e.pending[0]
		e.pending = e.pending[1:]
		snapshot := slices.Clone(e.listeners)
		e.mu.Unlock()

		for _, l := range snapshot {
			if !e.listenerActive(l.id) {
				continue
			}
			l.fn(isLeader)
		}

		e.mu.Lock()
	}

	e.delivering = false
	e.mu.Unlock()
}

func (e *Elector) listenerActive(id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return false
	}

	return slices.ContainsFunc(e.listeners, func(l listener) bool {
		return l.id == id
	})
}
