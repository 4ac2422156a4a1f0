// Handles caching of HTTP responses
package cache

// Store holds cache entries by key.
// Implementations don't check expiration: Get returns expired entries too,
// callers decide what to do with them.
type Store interface {
	// returns the entry stored at key, if any
	Get(key string) (*Entry, bool)
	// stores entry at key, replacing any previous entry
	Set(key string, entry *Entry)
	// removes the entry stored at key. No-op when absent
	Delete(key string)
	// removes every entry
	Clear()
	// removes every entry for which match returns true, and returns how many were removed
	InvalidateFunc(match func(key string, entry *Entry) bool) int
	// returns the stored keys, sorted
	Keys() []string
	// returns the number of stored entries
	Len() int
}
