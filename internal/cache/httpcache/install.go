package httpcache

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/iTrooz/dealership-client/internal/cache"
)

// DefaultTTL is the lifetime of entries when no TTL is configured
const DefaultTTL = 5 * time.Minute

// Config configures a caching transport
type Config struct {
	// base URL relative request paths are resolved against
	BaseURL string
	// lifetime of entries, DefaultTTL when zero
	TTL time.Duration
	// restricts cacheability further when set
	Filter func(*http.Request) bool
	// share a single network call between concurrent misses on one key.
	// Only the first request is sent: its headers, TTL and cancellation apply
	// to every caller joining it, and the others' TTL and headers are ignored.
	Coalesce bool
	// memory store when nil
	Store cache.Store
	// time.Now when nil
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Install puts a caching transport in front of client's transport and returns
// the namespace managing its store. client is modified in place. Installing
// twice stacks two caches.
func Install(client *http.Client, cfg Config) *Cache {
	t := NewTransport(client.Transport, cfg)
	client.Transport = t
	return t.Cache()
}

// CacheOf returns the namespace of the cache installed on client
func CacheOf(client *http.Client) (*Cache, bool) {
	t, ok := client.Transport.(*Transport)
	if !ok {
		return nil, false
	}
	return t.Cache(), true
}

// Cache manages the store of one caching transport
type Cache struct {
	interceptor *Interceptor
	store       cache.Store
}

// Clear removes every entry
func (c *Cache) Clear() {
	c.store.Clear()
}

// Delete removes the entry stored at key
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// InvalidateByURL removes every entry whose key contains substr
func (c *Cache) InvalidateByURL(substr string) int {
	return c.store.InvalidateFunc(func(key string, _ *cache.Entry) bool {
		return strings.Contains(key, substr)
	})
}

// InvalidateByRegexp removes every entry whose key matches re
func (c *Cache) InvalidateByRegexp(re *regexp.Regexp) int {
	return c.store.InvalidateFunc(func(key string, _ *cache.Entry) bool {
		return re.MatchString(key)
	})
}

// Entries returns copies of every stored entry, expired ones included
func (c *Cache) Entries() map[string]*cache.Entry {
	entries := make(map[string]*cache.Entry)
	for _, key := range c.store.Keys() {
		if entry, ok := c.store.Get(key); ok {
			entries[key] = entry.Clone()
		}
	}
	return entries
}

// Size returns the number of stored entries
func (c *Cache) Size() int {
	return c.store.Len()
}

// Peek returns a copy of the live entry for d, if any
func (c *Cache) Peek(d Descriptor) (*cache.Entry, bool) {
	entry, ok := c.interceptor.Peek(d)
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

// BuildKey returns the key d is stored under
func (c *Cache) BuildKey(d Descriptor) string {
	return BuildKey(c.interceptor.baseURL, d)
}
