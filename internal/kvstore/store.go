// Package kvstore provides the durable key-value store shared by the cache
// and the offline queue.
//
// # Contract
//
// Values are caller-serialized strings (JSON text). A store must survive a
// process restart (except MemoryStore, which exists for tests). Keys from
// different components live in disjoint namespaces ("cache:*" for the cache,
// a single key for the queue), so components never contend on one record.
//
//   - Get returns ok=false for a missing key; err is reserved for I/O failures.
//   - Remove of a missing key is not an error.
//   - ListKeys returns every key in no particular order.
//
// # Implementations
//
//   - MemoryStore: map guarded by a RWMutex (tests, ephemeral runs)
//   - FilesystemStore: one JSON file per key, written via temp file + rename
//   - BadgerStore: embedded LSM store
//   - SQLStore: GORM table on SQLite or PostgreSQL
//   - RedisStore: keys under a configurable prefix
package kvstore

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore: store is closed")

// Store is the durable key-value collaborator.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error

	// ListKeys returns all keys currently stored.
	ListKeys(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}
