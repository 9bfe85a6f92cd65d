package primary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/primary/broadcast/membus"
	"github.com/arloliu/primary/identity"
	"github.com/arloliu/primary/store/memstore"
	primarytest "github.com/arloliu/primary/testing"
	"github.com/arloliu/primary/types"
)

const testTTL = 40 * time.Second

var epoch = time.UnixMilli(1_700_000_000_000)

// harness wires electors to one in-memory store and broadcast hub sharing a
// manually advanced clock.
type harness struct {
	clock *primarytest.FakeClock
	store *memstore.Store
	hub   *membus.Hub
}

func newHarness() *harness {
	clk := primarytest.NewFakeClock(epoch)

	return &harness{
		clock: clk,
		store: memstore.New(memstore.WithClock(clk)),
		hub:   membus.NewHub(membus.WithSyncDelivery()),
	}
}

func testConfig(id string) Config {
	cfg := DefaultConfig()
	cfg.ID = id
	cfg.TTL = testTTL

	return cfg
}

// elector creates an elector on the harness. Extra options override the
// harness scheduler.
func (h *harness) elector(t *testing.T, id string, opts ...Option) *Elector {
	t.Helper()

	return h.electorWith(t, testConfig(id), h.store, h.hub.Bus(), opts...)
}

func (h *harness) electorWith(t *testing.T, cfg Config, store LeaseStore, bus Broadcaster, opts ...Option) *Elector {
	t.Helper()

	base := []Option{
		WithScheduler(h.clock),
		WithClock(h.clock),
		WithLogger(primarytest.NewTestLogger(t)),
	}
	e, err := New(cfg, store, bus, append(base, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = e.Destroy(context.Background(), false)
	})

	return e
}

// roleLog records listener invocations.
type roleLog struct {
	mu    sync.Mutex
	roles []bool
}

func (r *roleLog) record(isLeader bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = append(r.roles, isLeader)
}

func (r *roleLog) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.roles))
	copy(out, r.roles)

	return out
}

// countingStore counts transactions and can hold them until released.
type countingStore struct {
	LeaseStore
	calls atomic.Int32
	gate  chan struct{}
}

func (s *countingStore) TryAcquire(ctx context.Context, lockName, selfID string, ttl time.Duration, hint string) (bool, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}

	return s.LeaseStore.TryAcquire(ctx, lockName, selfID, ttl, hint)
}

type failingIdentity struct{}

func (failingIdentity) ID() (string, error) {
	return "", errors.New("no identity")
}

func TestNew(t *testing.T) {
	store := memstore.New()
	bus := membus.NewHub().Bus()

	t.Run("requires store", func(t *testing.T) {
		_, err := New(DefaultConfig(), nil, bus)
		require.ErrorIs(t, err, ErrLeaseStoreRequired)
	})

	t.Run("requires broadcaster", func(t *testing.T) {
		_, err := New(DefaultConfig(), store, nil)
		require.ErrorIs(t, err, ErrBroadcasterRequired)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OperationTimeout = time.Minute
		_, err := New(cfg, store, bus)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("applies defaults", func(t *testing.T) {
		e, err := New(Config{}, store, bus)
		require.NoError(t, err)
		require.Equal(t, "primary", e.Config().LockName)
		require.Equal(t, 30*time.Second, e.Config().TTL)
		require.NotEmpty(t, e.ID(), "random identity by default")
	})

	t.Run("config id wins over provider", func(t *testing.T) {
		e, err := New(Config{ID: "node-1"}, store, bus, WithIdentityProvider(identity.Static("node-2")))
		require.NoError(t, err)
		require.Equal(t, "node-1", e.ID())
	})

	t.Run("identity from provider", func(t *testing.T) {
		e, err := New(Config{}, store, bus, WithIdentityProvider(identity.Static("node-2")))
		require.NoError(t, err)
		require.Equal(t, "node-2", e.ID())
	})

	t.Run("failing provider", func(t *testing.T) {
		_, err := New(Config{}, store, bus, WithIdentityProvider(failingIdentity{}))
		require.ErrorIs(t, err, ErrIdentityUnavailable)
	})
}

func TestElector_Start(t *testing.T) {
	t.Run("first elector becomes leader", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		_, known := a.Poll()
		require.False(t, known, "role unknown before first attempt")

		isLeader, err := a.Start(t.Context())
		require.NoError(t, err)
		require.True(t, isLeader)

		isLeader, known = a.Poll()
		require.True(t, known)
		require.True(t, isLeader)
		require.Equal(t, 1, h.hub.Subscribers())

		rec, ok := h.store.Get(a.Config().LockName)
		require.True(t, ok)
		require.Equal(t, "a", rec.OwnerID)
		require.Equal(t, epoch.Add(testTTL), rec.ExpiresAt)
	})

	t.Run("second start fails", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		_, err := a.Start(t.Context())
		require.NoError(t, err)
		_, err = a.Start(t.Context())
		require.ErrorIs(t, err, ErrAlreadyStarted)
	})

	t.Run("start after destroy is a no-op", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")
		require.NoError(t, a.Destroy(t.Context(), false))

		isLeader, err := a.Start(t.Context())
		require.NoError(t, err)
		require.False(t, isLeader)
		require.Equal(t, 0, h.hub.Subscribers())
	})

	t.Run("subscribe failure allows another start", func(t *testing.T) {
		h := newHarness()
		bus := h.hub.Bus()
		bus.Close()
		a := h.electorWith(t, testConfig("a"), h.store, bus)

		_, err := a.Start(t.Context())
		require.ErrorIs(t, err, types.ErrBroadcasterClosed)
		_, err = a.Start(t.Context())
		require.NotErrorIs(t, err, ErrAlreadyStarted)
	})

	t.Run("elect returns the initial role", func(t *testing.T) {
		h := newHarness()
		a, isLeader, err := Elect(t.Context(), testConfig("a"), h.store, h.hub.Bus(),
			WithScheduler(h.clock), WithClock(h.clock))
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Destroy(context.Background(), false) })
		require.True(t, isLeader)

		b, isLeader, err := Elect(t.Context(), testConfig("b"), h.store, h.hub.Bus(),
			WithScheduler(h.clock), WithClock(h.clock))
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Destroy(context.Background(), false) })
		require.False(t, isLeader)
	})

	t.Run("elect with invalid config", func(t *testing.T) {
		e, _, err := Elect(t.Context(), Config{TTL: -1}, memstore.New(), membus.NewHub().Bus())
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.Nil(t, e)
	})
}

func TestElector_TimerDelays(t *testing.T) {
	renewIn := testTTL - testTTL/4

	t.Run("leader renews at three quarters of ttl", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		_, err := a.Start(t.Context())
		require.NoError(t, err)

		d, ok := h.clock.NextDeadline()
		require.True(t, ok)
		require.Equal(t, renewIn, d)
		require.Equal(t, 1, h.clock.Pending())

		h.clock.Advance(renewIn)
		rec, _ := h.store.Get("primary")
		require.Equal(t, epoch.Add(renewIn).Add(testTTL), rec.ExpiresAt, "renewal extends the lease")
		require.Equal(t, 1, h.clock.Pending())
	})

	t.Run("follower retries after full ttl", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a", WithScheduler(primarytest.NewFakeClock(epoch)))
		_, err := a.Start(t.Context())
		require.NoError(t, err)

		b := h.elector(t, "b")
		isLeader, err := b.Start(t.Context())
		require.NoError(t, err)
		require.False(t, isLeader)

		d, ok := h.clock.NextDeadline()
		require.True(t, ok)
		require.Equal(t, testTTL, d)
	})

	t.Run("store failure keeps role and retries after full ttl", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")
		_, err := a.Start(t.Context())
		require.NoError(t, err)

		boom := errors.New("disk full")
		h.store.SetFailure(boom)

		isLeader, err := a.Attempt(t.Context(), "")
		require.ErrorIs(t, err, ErrStoreUnavailable)
		require.ErrorIs(t, err, boom)
		require.False(t, isLeader)

		isLeader, known := a.Poll()
		require.True(t, known)
		require.True(t, isLeader, "cached role must survive a store failure")

		d, ok := h.clock.NextDeadline()
		require.True(t, ok)
		require.Equal(t, testTTL, d)
		require.Equal(t, 1, h.clock.Pending())

		// The retry heals once the store recovers.
		h.store.SetFailure(nil)
		h.clock.Advance(testTTL)
		require.True(t, a.IsLeader())
		d, _ = h.clock.NextDeadline()
		require.Equal(t, renewIn, d)
	})

	t.Run("unwrapped store errors are classified", func(t *testing.T) {
		h := newHarness()
		a := h.electorWith(t, testConfig("a"), rawErrorStore{}, h.hub.Bus())

		_, err := a.Attempt(t.Context(), "")
		require.ErrorIs(t, err, ErrStoreUnavailable)
		_, known := a.Poll()
		require.False(t, known)
	})

	t.Run("overlapping attempts keep one timer", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = a.Attempt(t.Context(), "")
			}()
		}
		wg.Wait()

		require.Equal(t, 1, h.clock.Pending())
		require.True(t, a.IsLeader())
	})
}

type rawErrorStore struct{}

func (rawErrorStore) TryAcquire(context.Context, string, string, time.Duration, string) (bool, error) {
	return false, errors.New("raw failure")
}

func TestElector_LeaseExpiry(t *testing.T) {
	t.Run("silent leader loses after ttl", func(t *testing.T) {
		h := newHarness()
		// a's timers never fire: it acquires once and goes quiet.
		a := h.elector(t, "a", WithScheduler(primarytest.NewFakeClock(epoch)))
		b := h.elector(t, "b")

		var aRoles roleLog
		a.AddListener(aRoles.record)

		isLeader, err := a.Attempt(t.Context(), "")
		require.NoError(t, err)
		require.True(t, isLeader)

		isLeader, err = b.Attempt(t.Context(), "")
		require.NoError(t, err)
		require.False(t, isLeader)

		// b's retry timer fires exactly when a's lease expires.
		h.clock.Advance(testTTL)
		require.True(t, b.IsLeader())

		// a still believes it leads until its next attempt.
		require.True(t, a.IsLeader())
		isLeader, err = a.Attempt(t.Context(), "")
		require.NoError(t, err)
		require.False(t, isLeader)
		require.Equal(t, []bool{true, false}, aRoles.get())
	})

	t.Run("100ms ttl handover", func(t *testing.T) {
		h := newHarness()
		cfgA := testConfig("a")
		cfgA.TTL = 100 * time.Millisecond
		cfgA.OperationTimeout = 50 * time.Millisecond
		cfgB := cfgA
		cfgB.ID = "b"

		a := h.electorWith(t, cfgA, h.store, h.hub.Bus(), WithScheduler(primarytest.NewFakeClock(epoch)))
		isLeader, err := a.Attempt(t.Context(), "")
		require.NoError(t, err)
		require.True(t, isLeader)

		h.clock.Advance(50 * time.Millisecond)
		b := h.electorWith(t, cfgB, h.store, h.hub.Bus(), WithScheduler(primarytest.NewFakeClock(epoch)))
		isLeader, err = b.Attempt(t.Context(), "")
		require.NoError(t, err)
		require.False(t, isLeader)

		h.clock.Advance(100 * time.Millisecond)
		isLeader, err = b.Attempt(t.Context(), "")
		require.NoError(t, err)
		require.True(t, isLeader)
	})
}

func TestElector_SingleLeader(t *testing.T) {
	h := newHarness()

	const n = 5
	electors := make([]*Elector, n)
	for i := range electors {
		electors[i] = h.elector(t, fmt.Sprintf("node-%d", i))
		_, err := electors[i].Start(t.Context())
		require.NoError(t, err)
	}

	leaders := func() []*Elector {
		var out []*Elector
		for _, e := range electors {
			if !e.IsDestroyed() && e.IsLeader() {
				out = append(out, e)
			}
		}

		return out
	}

	// Renewals keep the same leader across many cycles.
	first := leaders()
	require.Len(t, first, 1)
	for range 20 {
		h.clock.Advance(7 * time.Second)
		current := leaders()
		require.Len(t, current, 1)
		require.Equal(t, first[0].ID(), current[0].ID())

		rec, ok := h.store.Get("primary")
		require.True(t, ok)
		require.Equal(t, first[0].ID(), rec.OwnerID)
		require.True(t, rec.ExpiresAt.After(h.clock.Now()))
	}

	// Each departing leader hands over to exactly one successor.
	for round := 0; round < n-1; round++ {
		leader := leaders()[0]
		require.NoError(t, leader.Destroy(t.Context(), false))

		require.Eventually(t, func() bool {
			return len(leaders()) == 1
		}, time.Second, 5*time.Millisecond, "round %d", round)

		rec, _ := h.store.Get("primary")
		require.Equal(t, leaders()[0].ID(), rec.OwnerID)
	}
}

func TestElector_ConcurrentFirstAttempts(t *testing.T) {
	h := newHarness()

	const n = 20
	electors := make([]*Elector, n)
	for i := range electors {
		electors[i] = h.elector(t, fmt.Sprintf("node-%d", i))
	}

	results := make([]bool, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, e := range electors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			won, err := e.Attempt(t.Context(), "")
			require.NoError(t, err)
			results[i] = won
		}()
	}
	close(start)
	wg.Wait()

	winner := -1
	for i, won := range results {
		if won {
			require.Equal(t, -1, winner, "more than one winner")
			winner = i
		}
	}
	require.NotEqual(t, -1, winner)

	for i, e := range electors {
		isLeader, known := e.Poll()
		require.True(t, known)
		require.Equal(t, i == winner, isLeader)
	}

	rec, _ := h.store.Get("primary")
	require.Equal(t, electors[winner].ID(), rec.OwnerID)
}

func TestElector_Listeners(t *testing.T) {
	t.Run("no replay of the current role", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")
		b := h.elector(t, "b", WithScheduler(primarytest.NewFakeClock(epoch)))

		_, err := a.Start(t.Context())
		require.NoError(t, err)

		var roles roleLog
		a.AddListener(roles.record)

		// Renewals do not change the role.
		h.clock.Advance(testTTL)
		require.Empty(t, roles.get())

		// b takes over by naming a as the previous owner.
		won, err := b.Attempt(t.Context(), a.ID())
		require.NoError(t, err)
		require.True(t, won)

		// a learns at its next renewal.
		h.clock.Advance(testTTL)
		require.Equal(t, []bool{false}, roles.get())
	})

	t.Run("registration order", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		var mu sync.Mutex
		var order []int
		for i := range 5 {
			a.AddListener(func(bool) {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, i)
			})
		}

		_, err := a.Start(t.Context())
		require.NoError(t, err)
		require.Equal(t, []int{0, 1, 2, 3, 4}, order)
	})

	t.Run("remove by handle", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		var kept, removed roleLog
		a.AddListener(kept.record)
		id := a.AddListener(removed.record)
		a.RemoveListener(id)
		a.RemoveListener(id)
		a.RemoveListener(ListenerID(9999))

		_, err := a.Start(t.Context())
		require.NoError(t, err)
		require.Equal(t, []bool{true}, kept.get())
		require.Empty(t, removed.get())
	})

	t.Run("same func registered twice gets two handles", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		var roles roleLog
		first := a.AddListener(roles.record)
		second := a.AddListener(roles.record)
		require.NotEqual(t, first, second)

		a.RemoveListener(first)
		_, err := a.Start(t.Context())
		require.NoError(t, err)
		require.Equal(t, []bool{true}, roles.get())
	})

	t.Run("listener removed mid delivery is skipped", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		var later roleLog
		var laterID ListenerID
		a.AddListener(func(bool) {
			a.RemoveListener(laterID)
		})
		laterID = a.AddListener(later.record)

		_, err := a.Start(t.Context())
		require.NoError(t, err)
		require.Empty(t, later.get())
	})

	t.Run("nil listener ignored", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")
		require.Equal(t, ListenerID(0), a.AddListener(nil))
	})
}

func TestElector_ReentrantListeners(t *testing.T) {
	t.Run("destroy from inside a listener", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")

		var after roleLog
		a.AddListener(func(isLeader bool) {
			require.NoError(t, a.Destroy(context.Background(), false))
		})
		a.AddListener(after.record)

		isLeader, err := a.Start(t.Context())
		require.NoError(t, err)
		require.True(t, isLeader)
		require.True(t, a.IsDestroyed())
		require.Empty(t, after.get(), "listeners are cleared by destroy")
		require.Equal(t, 0, h.clock.Pending())
	})

	t.Run("attempt from inside a listener", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")
		b := h.elector(t, "b", WithScheduler(primarytest.NewFakeClock(epoch)))

		var roles roleLog
		calls := 0
		a.AddListener(func(isLeader bool) {
			roles.record(isLeader)
			calls++
			if calls == 1 {
				// Hand leadership to b, then re-check from inside the callback.
				_, err := b.Attempt(context.Background(), a.ID())
				require.NoError(t, err)
				isLeader, err := a.Attempt(context.Background(), "")
				require.NoError(t, err)
				require.False(t, isLeader)
				require.Equal(t, []bool{true}, roles.get(), "nested change waits for the outer delivery")
			}
		})

		isLeader, err := a.Start(t.Context())
		require.NoError(t, err)
		require.True(t, isLeader)

		// The nested change is delivered after the outer callback returns.
		require.Equal(t, []bool{true, false}, roles.get())
		require.False(t, a.IsLeader())
	})
}

func TestElector_Destroy(t *testing.T) {
	t.Run("attempt after destroy is a no-op", func(t *testing.T) {
		h := newHarness()
		store := &countingStore{LeaseStore: h.store}
		a := h.electorWith(t, testConfig("a"), store, h.hub.Bus())

		var roles roleLog
		a.AddListener(roles.record)
		require.NoError(t, a.Destroy(t.Context(), false))

		isLeader, err := a.Attempt(t.Context(), "")
		require.NoError(t, err)
		require.False(t, isLeader)
		require.Equal(t, int32(0), store.calls.Load())
		require.Empty(t, roles.get())

		_, known := a.Poll()
		require.False(t, known)
	})

	t.Run("idempotent", func(t *testing.T) {
		h := newHarness()
		bus := h.hub.Bus()
		a := h.electorWith(t, testConfig("a"), h.store, bus)
		_, err := a.Start(t.Context())
		require.NoError(t, err)

		require.NoError(t, a.Destroy(t.Context(), true))
		require.NoError(t, a.Destroy(t.Context(), true))
		require.Equal(t, []string{"a"}, bus.Published(), "identity published once")
		require.Equal(t, 0, h.clock.Pending())
		require.Equal(t, 0, h.hub.Subscribers())
	})

	t.Run("releases when leader and asked to", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")
		_, err := a.Start(t.Context())
		require.NoError(t, err)

		require.NoError(t, a.Destroy(t.Context(), true))

		rec, ok := h.store.Get("primary")
		require.True(t, ok)
		require.Equal(t, "a", rec.OwnerID)
		require.Equal(t, epoch.Add(-testTTL), rec.ExpiresAt)

		// Anyone can take an already-expired lease.
		b := h.elector(t, "b")
		won, err := b.Attempt(t.Context(), "")
		require.NoError(t, err)
		require.True(t, won)
	})

	t.Run("keeps lease without release", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")
		_, err := a.Start(t.Context())
		require.NoError(t, err)

		require.NoError(t, a.Destroy(t.Context(), false))

		rec, _ := h.store.Get("primary")
		require.Equal(t, epoch.Add(testTTL), rec.ExpiresAt)
	})

	t.Run("follower does not release", func(t *testing.T) {
		h := newHarness()
		store := &countingStore{LeaseStore: h.store}
		a := h.elector(t, "a")
		_, err := a.Start(t.Context())
		require.NoError(t, err)

		b := h.electorWith(t, testConfig("b"), store, h.hub.Bus())
		_, err = b.Start(t.Context())
		require.NoError(t, err)
		require.Equal(t, int32(1), store.calls.Load())

		require.NoError(t, b.Destroy(t.Context(), true))
		require.Equal(t, int32(1), store.calls.Load())
	})

	t.Run("joins best-effort errors", func(t *testing.T) {
		h := newHarness()
		bus := h.hub.Bus()
		a := h.electorWith(t, testConfig("a"), h.store, bus)
		_, err := a.Start(t.Context())
		require.NoError(t, err)

		bus.SetPublishFailure(errors.New("channel down"))
		h.store.SetFailure(errors.New("store down"))

		err = a.Destroy(t.Context(), true)
		require.ErrorIs(t, err, ErrPublishFailed)
		require.ErrorIs(t, err, ErrStoreUnavailable)
		require.True(t, a.IsDestroyed())
	})

	t.Run("in-flight attempt neither re-arms nor notifies", func(t *testing.T) {
		h := newHarness()
		store := &countingStore{LeaseStore: h.store, gate: make(chan struct{})}
		a := h.electorWith(t, testConfig("a"), store, h.hub.Bus())

		var roles roleLog
		a.AddListener(roles.record)

		done := make(chan bool)
		go func() {
			won, _ := a.Attempt(context.Background(), "")
			done <- won
		}()

		require.Eventually(t, func() bool {
			return store.calls.Load() == 1
		}, time.Second, time.Millisecond)

		require.NoError(t, a.Destroy(t.Context(), false))
		close(store.gate)

		require.True(t, <-done, "transaction itself committed")
		require.Empty(t, roles.get())
		require.Equal(t, 0, h.clock.Pending())
		_, known := a.Poll()
		require.False(t, known)
	})
}

func TestElector_Broadcast(t *testing.T) {
	t.Run("destroy hands over before ttl", func(t *testing.T) {
		h := newHarness()
		a := h.elector(t, "a")
		b := h.elector(t, "b")

		_, err := a.Start(t.Context())
		require.NoError(t, err)
		isLeader, err := b.Start(t.Context())
		require.NoError(t, err)
		require.False(t, isLeader)

		var bRoles roleLog
		b.AddListener(bRoles.record)

		// No time passes: only the broadcast can make b leader.
		require.NoError(t, a.Destroy(t.Context(), false))

		require.Eventually(t, func() bool {
			return len(bRoles.get()) == 1
		}, time.Second, 5*time.Millisecond)
		require.True(t, b.IsLeader())
		require.Equal(t, []bool{true}, bRoles.get())

		rec, _ := h.store.Get("primary")
		require.Equal(t, "b", rec.OwnerID)
		require.Equal(t, epoch, h.clock.Now())
	})

	t.Run("ignores own identity and empty values", func(t *testing.T) {
		h := newHarness()
		store := &countingStore{LeaseStore: h.store}
		a := h.electorWith(t, testConfig("a"), store, h.hub.Bus())

		a.onBroadcast("a")
		a.onBroadcast("")
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, int32(0), store.calls.Load())

		a.onBroadcast("someone-else")
		require.Eventually(t, func() bool {
			return store.calls.Load() == 1
		}, time.Second, time.Millisecond)
	})

	t.Run("unsubscribed after destroy", func(t *testing.T) {
		h := newHarness()
		store := &countingStore{LeaseStore: h.store}
		a := h.electorWith(t, testConfig("a"), store, h.hub.Bus())
		_, err := a.Start(t.Context())
		require.NoError(t, err)
		require.NoError(t, a.Destroy(t.Context(), false))

		require.NoError(t, h.hub.Bus().Publish(t.Context(), "MSID", "z"))
		a.onBroadcast("z")
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, int32(1), store.calls.Load(), "only the start attempt")
	})
}

type recordingMetrics struct {
	mu          sync.Mutex
	outcomes    []string
	roleChanges []bool
	releases    []bool
	published   []bool
	received    int
}

func (m *recordingMetrics) RecordAttempt(outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) RecordRoleChange(isLeader bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleChanges = append(m.roleChanges, isLeader)
}

func (m *recordingMetrics) RecordRelease(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases = append(m.releases, success)
}

func (m *recordingMetrics) RecordAbandonPublished(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, success)
}

func (m *recordingMetrics) RecordAbandonReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received++
}

func TestElector_Metrics(t *testing.T) {
	h := newHarness()
	ma, mb := &recordingMetrics{}, &recordingMetrics{}
	a := h.elector(t, "a", WithMetrics(ma))
	b := h.elector(t, "b", WithMetrics(mb))

	_, err := a.Start(t.Context())
	require.NoError(t, err)
	_, err = b.Start(t.Context())
	require.NoError(t, err)

	h.store.SetFailure(errors.New("boom"))
	_, err = a.Attempt(t.Context(), "")
	require.Error(t, err)
	h.store.SetFailure(nil)

	require.NoError(t, a.Destroy(t.Context(), true))
	require.Eventually(t, func() bool {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		return len(mb.roleChanges) == 2
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []string{OutcomeLeader, OutcomeError}, ma.outcomes)
	require.Equal(t, []bool{true}, ma.roleChanges)
	require.Equal(t, []bool{true}, ma.published)
	require.Len(t, ma.releases, 1)

	mb.mu.Lock()
	defer mb.mu.Unlock()
	require.Equal(t, 1, mb.received)
	require.Equal(t, []bool{false, true}, mb.roleChanges)
}
