package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/primary"
	"github.com/arloliu/primary/broadcast/natsbus"
	"github.com/arloliu/primary/store/natskv"
	primarytest "github.com/arloliu/primary/testing"
	"github.com/arloliu/primary/types"
)

// FastTestConfig provides a short TTL for failover tests on a real clock.
//
// A leader renews every 375ms and a crashed leader is replaced within about
// one second.
func FastTestConfig() primary.Config {
	cfg := primary.DefaultConfig()
	cfg.TTL = 500 * time.Millisecond
	cfg.OperationTimeout = 100 * time.Millisecond

	return cfg
}

// Backend creates the store and broadcaster for one cluster member.
type Backend func(t *testing.T, index int) (types.LeaseStore, types.Broadcaster)

// NATSBackend returns a Backend where every member has its own connection to
// ns, a KV lease store on a shared bucket, and a core NATS broadcaster.
func NATSBackend(ns *server.Server, bucket string) Backend {
	return func(t *testing.T, _ int) (types.LeaseStore, types.Broadcaster) {
		t.Helper()

		nc := primarytest.Connect(t, ns)
		js, err := jetstream.New(nc)
		require.NoError(t, err)

		store, err := natskv.Open(t.Context(), js, natskv.Config{Bucket: bucket, MemoryStorage: true})
		require.NoError(t, err)

		bus := natsbus.New(nc, natsbus.Config{})
		t.Cleanup(func() { _ = bus.Close() })

		return store, bus
	}
}

// ElectorCluster manages a set of electors for testing.
type ElectorCluster struct {
	mu       sync.Mutex
	Electors []*primary.Elector
	Config   primary.Config
	backend  Backend
	T        *testing.T
}

// NewElectorCluster creates an empty cluster. Electors are destroyed when
// the test completes.
func NewElectorCluster(t *testing.T, cfg primary.Config, backend Backend) *ElectorCluster {
	c := &ElectorCluster{
		Electors: make([]*primary.Elector, 0),
		Config:   cfg,
		backend:  backend,
		T:        t,
	}
	t.Cleanup(c.DestroyAll)

	return c
}

// AddElector creates and starts a new elector named "node-<n>".
func (c *ElectorCluster) AddElector(ctx context.Context, opts ...primary.Option) *primary.Elector {
	c.T.Helper()

	c.mu.Lock()
	index := len(c.Electors)
	c.mu.Unlock()

	cfg := c.Config
	cfg.ID = fmt.Sprintf("node-%d", index)
	store, bus := c.backend(c.T, index)

	opts = append([]primary.Option{primary.WithLogger(primarytest.NewTestLogger(c.T))}, opts...)
	e, err := primary.New(cfg, store, bus, opts...)
	require.NoError(c.T, err)

	_, err = e.Start(ctx)
	require.NoError(c.T, err, "elector %s failed to start", cfg.ID)

	c.mu.Lock()
	c.Electors = append(c.Electors, e)
	c.mu.Unlock()

	return e
}

// Active returns the electors that have not been destroyed.
func (c *ElectorCluster) Active() []*primary.Elector {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*primary.Elector, 0, len(c.Electors))
	for _, e := range c.Electors {
		if !e.IsDestroyed() {
			out = append(out, e)
		}
	}

	return out
}

// Leaders returns the active electors whose cached role is leader.
func (c *ElectorCluster) Leaders() []*primary.Elector {
	var out []*primary.Elector
	for _, e := range c.Active() {
		if e.IsLeader() {
			out = append(out, e)
		}
	}

	return out
}

// WaitForOneLeader waits until exactly one active elector is leader and returns it.
func (c *ElectorCluster) WaitForOneLeader(timeout time.Duration) *primary.Elector {
	c.T.Helper()

	var leader *primary.Elector
	require.Eventually(c.T, func() bool {
		leaders := c.Leaders()
		if len(leaders) != 1 {
			return false
		}
		leader = leaders[0]

		return true
	}, timeout, 10*time.Millisecond, "expected exactly one leader")

	return leader
}

// Destroy destroys e, optionally releasing its lease.
func (c *ElectorCluster) Destroy(e *primary.Elector, release bool) {
	c.T.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(c.T, e.Destroy(ctx, release))
}

// DestroyAll destroys every elector, ignoring errors.
func (c *ElectorCluster) DestroyAll() {
	for _, e := range c.Active() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = e.Destroy(ctx, true)
		cancel()
	}
}
