// Package cache implements ResultCache: a fingerprinted TTL cache fronting
// pkg/repo's ReadAPI, keyed on (repoFullName, operation, params...,
// latestOid) so content changes invalidate the key automatically without
// an explicit eviction path.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/odvcencio/gitserve/pkg/object"
)

// DefaultTTL is the cache entry lifetime: the key already invalidates on
// content change via the trailing OID, so a long default is safe.
const DefaultTTL = 365 * 24 * time.Hour

type entry struct {
	value   any
	expires time.Time
}

// ResultCache is a single mutex-guarded map with lazy expiry: entries are only evicted
// when looked up or swept, not on a background timer.
type ResultCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

// New builds a ResultCache with the given TTL. ttl <= 0 means DefaultTTL.
func New(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{ttl: ttl, entries: make(map[string]entry)}
}

// Key builds the cache key for one ReadAPI call.
func Key(repoFullName, operation string, latestOID object.OID, params ...any) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%v", repoFullName, operation, latestOID, params)
}

// Get returns the cached value for key, if present and unexpired.
func (c *ResultCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, unless value is nil — null/undefined results
// are never cached.
func (c *ResultCache) Set(key string, value any) {
	if value == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expires: time.Now().Add(c.ttl)}
}

// GetOrCompute returns the cached value for key, computing and storing it
// via fn on a miss. fn's error is never cached.
func (c *ResultCache) GetOrCompute(key string, fn func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		return nil, err
	}
	c.Set(key, v)
	return v, nil
}

// Sweep removes every expired entry. Callers may run this periodically;
// it is never required for correctness since Get already evicts lazily.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
