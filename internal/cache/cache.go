package cache

import (
	"context"
	"errors"
)

var (
	// ErrMismatch is returned when a cached matrix does not describe the current corpus
	ErrMismatch = errors.New("cache cardinality mismatch")
	// ErrMiss is returned when no entry exists for a key
	ErrMiss = errors.New("cache miss")
)

// Store is a durable key/value store for cached derived data. A Put replaces the
// whole value atomically: readers observe either the old or the new value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}
