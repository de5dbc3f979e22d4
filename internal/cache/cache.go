// Package cache provides a small injected key-value cache with TTL semantics.
//
// The preference cache and similar short-lived lookups go through this
// interface so tests can reset state and deployments can swap the in-memory
// implementation for the redis one without touching call sites.
package cache

import (
	"context"
	"time"
)

// Cache is a string key-value store with per-entry TTL.
type Cache interface {
	// Get returns the value and whether the key is present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores the value with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
