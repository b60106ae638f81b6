package cache

import (
	"context"
	"time"
)

// Backend is a key/value store with per-key expiration. Implementations never
// surface availability faults: an unreachable backend reads as a miss and
// silently drops writes, so callers always degrade to their source of truth.
type Backend interface {
	// Get returns the payload and true when the key exists and has not
	// expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set upserts the key with an absolute expiry of now+ttl. Callers are
	// responsible for passing a positive ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string)
	// DeletePattern removes every key matching the glob pattern ('*'
	// wildcards). Best effort.
	DeletePattern(ctx context.Context, pattern string)
	// IsAvailable is a cheap liveness probe.
	IsAvailable(ctx context.Context) bool
}
