// Package cache provides caching for event listings, backed either by an
// in-process store or by Redis when a URL is configured.
package cache

import (
	"context"
	"time"
)

// Cache is the interface shared by the memory and Redis backends.
// Implementations must be safe for concurrent use. Values are []byte so
// callers can store serialized payloads with either backend.
type Cache interface {
	// Get returns the value for key, or ErrMiss if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all keys starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Close releases backend resources.
	Close() error
}

// Error is a sentinel error type for cache operations.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrMiss indicates the key was not found or has expired.
	ErrMiss Error = "cache miss"

	// ErrClosed indicates the cache has been closed.
	ErrClosed Error = "cache closed"
)
