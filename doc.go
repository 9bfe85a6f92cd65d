// Package primary elects exactly one primary among independently running
// processes that share a transactional key-value store and a broadcast
// channel, and otherwise cannot talk to each other.
//
// Every process runs an Elector. The elector repeatedly tries to acquire a
// time-bounded lease in the store; whoever holds an unexpired lease is the
// primary. The primary renews early, followers retry once the lease could have
// expired, and a process that shuts down announces its identity on the
// broadcast channel so a follower can take over without waiting for expiry.
//
// # Quick Start
//
//	import (
//	    "github.com/arloliu/primary"
//	    "github.com/arloliu/primary/broadcast/natsbus"
//	    "github.com/arloliu/primary/store/natskv"
//	)
//
//	js, _ := jetstream.New(nc)
//	store, err := natskv.Open(ctx, js, natskv.Config{Bucket: "primary"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	bus := natsbus.New(nc, natsbus.Config{})
//
//	elector, isLeader, err := primary.Elect(ctx, primary.DefaultConfig(), store, bus)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer elector.Destroy(context.Background(), true)
//
//	elector.AddListener(func(isLeader bool) {
//	    log.Printf("primary=%v", isLeader)
//	})
//
// # Timing
//
// With lease duration TTL, a follower retries every TTL and a leader renews
// every TTL - TTL/4. Worst-case takeover after a crash is therefore about 2*TTL;
// after a clean Destroy it is one store round trip.
//
// # Backends
//
// Lease stores live under store/ (NATS JetStream KV, bbolt file, in-memory)
// and broadcasters under broadcast/ (core NATS, in-memory). Any type that
// implements LeaseStore or Broadcaster can be used instead.
//
// See the examples/ directory for a complete working example.
package primary
