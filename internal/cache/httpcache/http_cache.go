package httpcache

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iTrooz/dealership-client/internal/cache"
)

// Pending records where the response of a cache miss must be stored.
// It belongs to a single request and is settled at most once.
type Pending struct {
	Key     string
	TTL     time.Duration
	settled bool
}

// take settles p and reports whether it was still open
func (p *Pending) take() bool {
	if p == nil || p.settled {
		return false
	}
	p.settled = true
	return true
}

// Lookup is the outcome of the request hook
type Lookup struct {
	Key string
	// live entry to replay, nil on a miss
	Hit *cache.Entry
	// set on a miss for a cacheable request
	Pending *Pending
}

// Source returns the round tripper that must answer the request: a replay of
// the cached entry on a hit, network otherwise
func (l Lookup) Source(network http.RoundTripper) http.RoundTripper {
	if l.Hit != nil {
		return replaySource{entry: l.Hit}
	}
	return network
}

type replaySource struct {
	entry *cache.Entry
}

func (s replaySource) RoundTrip(req *http.Request) (*http.Response, error) {
	return Replay(s.entry, req), nil
}

// Interceptor holds the request, response and error hooks around a store
type Interceptor struct {
	store   cache.Store
	baseURL string
	ttl     time.Duration
	filter  func(*http.Request) bool
	now     func() time.Time
}

// NewInterceptor creates the hooks for store. Zero config fields take their defaults.
func NewInterceptor(store cache.Store, cfg Config) *Interceptor {
	cfg = cfg.withDefaults()
	if store == nil {
		store = cache.NewMemory()
	}
	return &Interceptor{
		store:   store,
		baseURL: cfg.BaseURL,
		ttl:     cfg.TTL,
		filter:  cfg.Filter,
		now:     cfg.Clock,
	}
}

func (i *Interceptor) cacheable(req *http.Request, opts Options) bool {
	if !ShouldCache(req, opts) {
		return false
	}
	return i.filter == nil || i.filter(req)
}

func (i *Interceptor) key(req *http.Request) string {
	d, ok := DescriptorFrom(req.Context())
	if !ok {
		d = DescriptorFromRequest(req)
	}
	d.Method = req.Method
	return BuildKey(i.baseURL, d)
}

// OnRequest decides how req is answered. A live entry is returned for replay
// unless the request forces a refresh; otherwise a cacheable request gets a
// pending note and expired entries are dropped.
func (i *Interceptor) OnRequest(req *http.Request) Lookup {
	opts := OptionsFrom(req.Context())
	if !i.cacheable(req, opts) {
		return Lookup{}
	}

	key := i.key(req)
	ttl := i.ttl
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	if entry, ok := i.store.Get(key); ok {
		switch {
		case entry.Expired(i.now()):
			logrus.Debugf("Cache entry expired for %s", key)
			i.store.Delete(key)
		case !opts.Force:
			logrus.Debugf("Cache hit for %s", key)
			return Lookup{Key: key, Hit: entry}
		default:
			logrus.Debugf("Forced refresh for %s", key)
		}
	}

	return Lookup{Key: key, Pending: &Pending{Key: key, TTL: ttl}}
}

// OnResponse handles a response that came from the network: it is marked as a
// miss, whatever the upstream sent, and stored when p is an open note and the
// status is successful. Replayed responses must not go through it.
func (i *Interceptor) OnResponse(resp *http.Response, p *Pending) *http.Response {
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set(HeaderCache, Miss)

	if !p.take() {
		return resp
	}
	if !storable(resp.StatusCode) {
		logrus.Debugf("Not caching %s: status %d", p.Key, resp.StatusCode)
		return resp
	}

	entry, err := Snapshot(resp, i.now(), p.TTL)
	if err != nil {
		logrus.Errorf("Failed to cache response for %s: %v", p.Key, err)
		return resp
	}
	i.store.Set(p.Key, entry)
	logrus.Debugf("Cached response: %s (ttl %s)", p.Key, p.TTL)
	return resp
}

// OnError drops the note of a failed request and returns err unchanged
func (i *Interceptor) OnError(p *Pending, err error) error {
	if p.take() {
		logrus.Debugf("Request for %s failed, nothing cached: %v", p.Key, err)
	}
	return err
}

// Cache returns the namespace managing the interceptor's store
func (i *Interceptor) Cache() *Cache {
	return &Cache{interceptor: i, store: i.store}
}

// Peek returns the live entry for d, dropping it when expired
func (i *Interceptor) Peek(d Descriptor) (*cache.Entry, bool) {
	key := BuildKey(i.baseURL, d)
	entry, ok := i.store.Get(key)
	if !ok {
		return nil, false
	}
	if entry.Expired(i.now()) {
		i.store.Delete(key)
		return nil, false
	}
	return entry, true
}
