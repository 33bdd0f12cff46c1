// Package cache provides the byte-oriented cache backends (in-memory and
// Redis) behind the registry tier caches, and Slot, a typed TTL value stored
// in a backend under a fixed key.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL. Zero uses the backend default, a
	// negative TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Clear removes every value under the backend prefix
	Clear(ctx context.Context) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is used when Set is called with a zero TTL
	DefaultTTL time.Duration
	// Prefix is prepended to all keys
	Prefix string
}

// DefaultConfig returns the default backend configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "catalog:",
	}
}

// ErrCacheMiss is returned when a key is absent or expired
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

// Key joins key segments with ':'
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
