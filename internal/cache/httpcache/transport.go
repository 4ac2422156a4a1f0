package httpcache

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/iTrooz/dealership-client/internal/cache"
)

// Transport is an http.RoundTripper answering cacheable requests from a store
// and populating it from the network
type Transport struct {
	// used for misses. http.DefaultTransport when nil
	Base http.RoundTripper

	interceptor *Interceptor
	coalesce    bool
	group       singleflight.Group
	cache       *Cache
}

// NewTransport creates a caching transport in front of base, owning a fresh store
func NewTransport(base http.RoundTripper, cfg Config) *Transport {
	t := &Transport{
		Base:        base,
		interceptor: NewInterceptor(cfg.Store, cfg),
		coalesce:    cfg.Coalesce,
	}
	t.cache = t.interceptor.Cache()
	return t
}

// Cache returns the namespace managing the transport's store
func (t *Transport) Cache() *Cache {
	return t.cache
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	lookup := t.interceptor.OnRequest(req)
	if t.coalesce && lookup.Pending != nil {
		return t.roundTripShared(req, lookup)
	}

	resp, err := lookup.Source(t.base()).RoundTrip(req)
	if lookup.Hit != nil {
		return resp, err
	}
	if err != nil {
		return nil, t.interceptor.OnError(lookup.Pending, err)
	}
	return t.interceptor.OnResponse(resp, lookup.Pending), nil
}

// roundTripShared lets concurrent misses on the same key share one network
// round trip. Each caller gets its own copy of the response.
func (t *Transport) roundTripShared(req *http.Request, lookup Lookup) (*http.Response, error) {
	v, err, _ := t.group.Do(lookup.Key, func() (any, error) {
		resp, err := t.base().RoundTrip(req)
		if err != nil {
			return nil, t.interceptor.OnError(lookup.Pending, err)
		}
		resp = t.interceptor.OnResponse(resp, lookup.Pending)

		snapshot, err := Snapshot(resp, t.interceptor.now(), 0)
		if err != nil {
			return nil, fmt.Errorf("failed to share response for %s: %w", lookup.Key, err)
		}
		return snapshot, nil
	})
	// followers never reach the hooks themselves
	lookup.Pending.take()
	if err != nil {
		return nil, err
	}
	return rebuild(v.(*cache.Entry), req, Miss), nil
}
