package cache

import "github.com/cockroachdb/errors"

var (
	// ErrStoreUnavailable is returned when the backing store cannot be reached
	// or a read/delete fails.
	ErrStoreUnavailable = errors.New("cache store unavailable")
	// ErrStoreWrite is returned when the backing store rejects a write.
	ErrStoreWrite = errors.New("cache store write failed")
	// ErrSerialization is returned when a value cannot be encoded, or a stored
	// value no longer decodes into the declared result type.
	ErrSerialization = errors.New("cache serialization failed")
)
