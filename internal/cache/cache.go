package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key was not found or has expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a TTL key-value cache. Eviction is TTL-only; there is no size
// bound. The memory implementation serves development and tests, redis
// serves production, with no change to calling code.
type Cache interface {
	// Get returns the stored value or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key, reporting whether an entry existed.
	Delete(ctx context.Context, key string) (bool, error)

	Close() error
}
