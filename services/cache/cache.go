package cache

import (
	"errors"
	"time"
)

// ErrCacheMiss is returned by in-process caches when a key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// New returns a memcache-backed service when addr is set, otherwise an
// in-process cache that lives as long as the process.
func New(addr string) CacheService {
	if addr == "" {
		return NewMemoryCache()
	}
	return NewMemcacheService(addr)
}
