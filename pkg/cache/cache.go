// Package cache stores rendered frames and task graphs between runs.
//
// Backends implement [Cache]: [FileCache] for the CLI, [RedisCache] for
// servers sharing results, and [NullCache] when caching is disabled. Keys
// are derived by a [Keyer] from a hash of the scene source plus everything
// else that changes the output (frame, resolution, box state ids), so a
// stale entry is never served for an edited scene.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value and true on a hit. Misses are not errors.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Default expiries per entry kind.
const (
	// TTLFrame is how long an encoded frame stays cached.
	TTLFrame = 7 * 24 * time.Hour

	// TTLGraph is how long an exported task graph stays cached.
	TTLGraph = 24 * time.Hour
)
