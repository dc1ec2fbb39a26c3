// Package cache holds short-lived results of tool-server queries so that
// repeated investigations of the same claim inside one process do not hit
// the servers again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var (
	// DefaultQueryTTL is how long a cached query result stays valid.
	DefaultQueryTTL = 10 * time.Minute

	// DefaultCleanupInterval is how often expired entries are swept.
	DefaultCleanupInterval = 5 * time.Minute
)

// Key derives the cache key for one tool query. Arguments are canonicalized
// through JSON (map keys marshal sorted), so semantically equal queries
// collide and different ones do not.
func Key(server, tool string, args map[string]any) string {
	canonical, err := json.Marshal(args)
	if err != nil {
		canonical = []byte("{}")
	}
	sum := sha256.Sum256([]byte(server + "\x00" + tool + "\x00" + string(canonical)))
	return "verity:v1:" + hex.EncodeToString(sum[:])
}

// QueryCache is an in-memory TTL cache for tool query results.
type QueryCache struct {
	cache *gocache.Cache
}

// NewQueryCache creates a cache with the given default TTL and sweep
// interval; zero values fall back to the package defaults.
func NewQueryCache(ttl, cleanup time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultQueryTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	return &QueryCache{cache: gocache.New(ttl, cleanup)}
}

// Get retrieves a cached result.
func (c *QueryCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Set stores a result under the default TTL.
func (c *QueryCache) Set(key string, value any) {
	c.cache.SetDefault(key, value)
}

// SetTTL stores a result under an explicit TTL.
func (c *QueryCache) SetTTL(key string, value any, ttl time.Duration) {
	c.cache.Set(key, value, ttl)
}

// Delete removes one entry.
func (c *QueryCache) Delete(key string) {
	c.cache.Delete(key)
}

// Flush drops every entry.
func (c *QueryCache) Flush() {
	c.cache.Flush()
}

// Len reports the number of live entries, expired ones included until the
// next sweep.
func (c *QueryCache) Len() int {
	return c.cache.ItemCount()
}
