package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iTrooz/dealership-client/internal/cache/httpcache"
	"github.com/iTrooz/dealership-client/internal/config"
)

const DefaultBaseURL = "http://localhost:3000/api"

// HeaderRequestID carries the id the client generates for every request
const HeaderRequestID = "X-Request-ID"

// Client talks to the dealership REST backend. GET requests go through a
// response cache unless the client was built WithoutCache.
type Client struct {
	http    *http.Client
	baseURL string
	cache   *httpcache.Cache

	cacheEnabled bool
	cacheCfg     httpcache.Config
}

type Option func(*Client)

// WithHTTPClient uses a copy of h. Its transport ends up behind the cache.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithBaseURL(raw string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(raw, "/") }
}

// WithCacheTTL sets the default lifetime of cached responses
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheCfg.TTL = ttl }
}

func WithoutCache() Option {
	return func(c *Client) { c.cacheEnabled = false }
}

// WithCoalescing makes concurrent identical GETs share one network call
func WithCoalescing() Option {
	return func(c *Client) { c.cacheCfg.Coalesce = true }
}

// WithClock replaces time.Now for cache expiry
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.cacheCfg.Clock = now }
}

// New creates a client for the backend at DefaultBaseURL unless overridden
func New(opts ...Option) (*Client, error) {
	c := &Client{
		http:         http.DefaultClient,
		baseURL:      DefaultBaseURL,
		cacheEnabled: true,
	}
	for _, o := range opts {
		o(c)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", c.baseURL)
	}

	hc := *c.http
	c.http = &hc
	if c.cacheEnabled {
		c.cacheCfg.BaseURL = c.baseURL
		c.cache = httpcache.Install(c.http, c.cacheCfg)
	}
	return c, nil
}

// NewFromConfig creates a client for the backend selected by cfg
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid cache TTL: %w", err)
	}
	timeout, err := cfg.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid api timeout: %w", err)
	}

	base := []Option{
		WithBaseURL(cfg.BaseURL()),
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithCacheTTL(ttl),
	}
	if !cfg.Cache.Enabled {
		base = append(base, WithoutCache())
	}
	if cfg.Cache.Coalesce {
		base = append(base, WithCoalescing())
	}
	return New(append(base, opts...)...)
}

// Cache returns the namespace of the client's response cache, nil when
// caching is off
func (c *Client) Cache() *httpcache.Cache {
	return c.cache
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is a backend answer with its body already read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// true when the response was replayed from the cache
	FromCache bool
	RequestID string
}

// CallOption tunes caching for a single GET
type CallOption func(*httpcache.Options)

// ForceRefresh skips a cached response and stores the fresh one
func ForceRefresh() CallOption {
	return func(o *httpcache.Options) { o.Force = true }
}

// NoCache neither reads nor writes the cache
func NoCache() CallOption {
	return func(o *httpcache.Options) { o.Enabled = httpcache.Bool(false) }
}

// CacheFor overrides the lifetime of the stored response
func CacheFor(ttl time.Duration) CallOption {
	return func(o *httpcache.Options) { o.TTL = ttl }
}

// WithCacheOptions applies loosely typed options, see httpcache.NormalizeOptions.
// Invalid options are logged and ignored.
func WithCacheOptions(raw any) CallOption {
	return func(o *httpcache.Options) {
		opts, err := httpcache.NormalizeOptions(raw)
		if err != nil {
			logrus.Warnf("Ignoring cache options %v: %v", raw, err)
			return
		}
		if opts.Enabled != nil {
			o.Enabled = opts.Enabled
		}
		if opts.TTL > 0 {
			o.TTL = opts.TTL
		}
		o.Force = o.Force || opts.Force
	}
}

func callOptions(opts []CallOption) httpcache.Options {
	var o httpcache.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// endpoint joins path to the base URL the way the backend routes expect,
// keeping the base path
func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) descriptor(path string, params map[string]any) httpcache.Descriptor {
	d := httpcache.ForEndpoint(c.endpoint(path), nil)
	if len(params) > 0 {
		d.Params = params
	}
	return d
}

// Get fetches path with params as query string and decodes the JSON body into
// out when out is not nil
func (c *Client) Get(ctx context.Context, path string, params map[string]any, out any, opts ...CallOption) (*Response, error) {
	query, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	target := c.endpoint(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx = httpcache.WithDescriptor(ctx, c.descriptor(path, params))
	ctx = httpcache.WithOptions(ctx, callOptions(opts))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) (*Response, error) {
	return c.mutate(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) (*Response, error) {
	return c.mutate(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) (*Response, error) {
	return c.mutate(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) (*Response, error) {
	return c.mutate(ctx, http.MethodDelete, path, nil, out)
}

// mutate sends a write and drops the cached reads of the resource it touched
func (c *Client) mutate(ctx context.Context, method, path string, body, out any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req, out)
	if err == nil {
		c.invalidateResource(path)
	}
	return resp, err
}

// invalidateResource removes cached reads under the first segment of path,
// e.g. /cars/update/12 drops every /cars/... entry
func (c *Client) invalidateResource(path string) {
	if c.cache == nil {
		return
	}
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if segment == "" {
		return
	}

	prefix := regexp.QuoteMeta(c.endpoint(segment))
	re := regexp.MustCompile(`^[a-z]+::` + prefix + `([/?]|$)`)
	if n := c.cache.InvalidateByRegexp(re); n > 0 {
		logrus.Debugf("Invalidated %d cached responses under /%s", n, segment)
	}
}

func (c *Client) do(req *http.Request, out any) (*Response, error) {
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")

	log := logrus.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     req.Method,
		"url":        req.URL.String(),
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("Request failed")
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", req.Method, req.URL.Path, err)
	}

	r := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		FromCache:  httpcache.FromCache(resp),
		RequestID:  requestID,
	}
	log.WithFields(logrus.Fields{
		"status":     resp.StatusCode,
		"from_cache": r.FromCache,
		"duration":   time.Since(start),
	}).Debug("Request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r, &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return r, fmt.Errorf("decoding %s %s response: %w", req.Method, req.URL.Path, err)
		}
	}
	return r, nil
}

// IsCached reports whether a Get of path with params would be answered from
// the cache right now
func (c *Client) IsCached(path string, params map[string]any, opts ...CallOption) bool {
	return httpcache.IsCached(c.cache, c.descriptor(path, params), callOptions(opts))
}
