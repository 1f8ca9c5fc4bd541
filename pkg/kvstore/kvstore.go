// Package kvstore provides the key-value cache abstraction used for session,
// token, and permission bookkeeping.
//
// The store is always injected as a dependency; nothing in this codebase
// reaches for a global client. The production implementation is Redis, tests
// run against miniredis.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the key-value cache interface
type Store interface {
	// Get returns the string value for key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	// Set stores a string value with a TTL; ttl <= 0 means no expiry
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores a value only if the key does not exist
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes keys, returning the number actually removed
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Expire resets a key's TTL
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining time to live of a key
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Keys returns all keys matching a glob pattern. Linear cost; only used
	// on the small session_token keyspace.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// SAdd replaces nothing; it adds members to a set and applies the TTL
	SAdd(ctx context.Context, key string, members []string, ttl time.Duration) error
	// SMembers returns all members of a set; empty slice when missing
	SMembers(ctx context.Context, key string) ([]string, error)
	// Incr atomically increments a counter, creating it at 1
	Incr(ctx context.Context, key string) (int64, error)
	// Ping checks connectivity
	Ping(ctx context.Context) error
	// Close releases the underlying connection pool
	Close() error
}
