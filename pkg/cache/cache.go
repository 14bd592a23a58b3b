// Package cache stores registry responses between invocations.
//
// Published manifests never change once a version is uploaded, so nativepkg
// keeps them (and, for a shorter time, version listings) in a [Cache]. Three
// backends are provided:
//
//   - [FileCache]: one JSON file per key under the user cache directory (CLI default)
//   - [RedisCache]: a shared cache for CI runners and registry mirrors
//   - [NullCache]: disables caching
//
// Keys are built by a [Keyer] so every backend sees the same key layout.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the cached value. A miss is reported as ok=false with a nil error.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key. A ttl of zero means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// DefaultDir returns the directory used by the CLI's file cache:
// $XDG_CACHE_HOME/nativepkg (or the platform equivalent).
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "nativepkg"), nil
}
