// Package store groups the built-in types.LeaseStore implementations.
//
// The package includes:
//
//   - natskv: NATS JetStream KV bucket shared across hosts
//   - boltstore: bbolt database file shared by processes on one host
//   - memstore: in-process map for tests and single-process embedding
//
// Custom stores can be implemented by satisfying the types.LeaseStore
// interface; the acquisition rule itself lives in internal/lease.
package store
