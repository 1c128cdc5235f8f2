// Package cache provides the key/value store behind the HTTP response cache
// and the per-user singleton values (referral tokens) that live only in it.
package cache

import (
	"context"
	"time"
)

// Reader retrieves raw stored values.
type Reader interface {
	// Get returns the stored string and true, or "" and false when the key
	// is absent. A missing key is never an error.
	Get(ctx context.Context, key string) (string, bool, error)
}

// Writer stores raw values with an expiry. Writes fully replace.
type Writer interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Deleter removes keys. Deleting an absent key succeeds.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Store combines all cache operations. Implementations must be safe for
// concurrent use; no locking is layered on top of them.
type Store interface {
	Reader
	Writer
	Deleter
}
