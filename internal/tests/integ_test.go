package tests

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iTrooz/dealership-client/internal/config"
)

func get(t *testing.T, client *http.Client, target string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(target)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestProxyIntegration(t *testing.T) {
	upstream, calls := fixture_upstream()
	defer upstream.Close()

	cfg := fixture_config(&config.RulesConfig{
		Mode: "whitelist",
		Rules: []config.CacheRule{
			{BaseURI: upstream.URL, Methods: []string{"GET"}},
		},
	})

	proxyServer, proxyTestServer, client, err := fixture_proxy(cfg)
	require.NoError(t, err)
	defer proxyTestServer.Close()

	var firstBody string

	t.Run("first request - cache miss", func(t *testing.T) {
		resp, body := get(t, client, upstream.URL+"/api/cars/get-all?page=1")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
		assert.Contains(t, body, "Hello from upstream")
		firstBody = body
	})

	t.Run("second request - cache hit", func(t *testing.T) {
		resp, body := get(t, client, upstream.URL+"/api/cars/get-all?page=1")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, firstBody, body)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("different params - cache miss", func(t *testing.T) {
		resp, _ := get(t, client, upstream.URL+"/api/cars/get-all?page=2")
		assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("post is never cached", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp, err := client.Post(upstream.URL+"/api/sell-requests/create", "application/json", strings.NewReader(`{"make":"Audi"}`))
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
		}
		assert.Equal(t, int64(4), calls.Load())
	})

	t.Run("server errors are not cached", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp, _ := get(t, client, upstream.URL+"/api/broken")
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
		}
		assert.Equal(t, int64(6), calls.Load())
	})

	t.Run("cache holds the successful GETs only", func(t *testing.T) {
		assert.Equal(t, 2, proxyServer.Cache().Size())
	})
}

func TestProxyIntegrationWithCustomRules(t *testing.T) {
	upstream, calls := fixture_upstream()
	defer upstream.Close()

	// blacklist mode: the upstream URL is not in the blacklist
	cfg := fixture_config(&config.RulesConfig{
		Mode: "blacklist",
		Rules: []config.CacheRule{
			{BaseURI: upstream.URL + "/api/users", Methods: []string{"GET"}},
		},
	})

	_, proxyTestServer, client, err := fixture_proxy(cfg)
	require.NoError(t, err)
	defer proxyTestServer.Close()

	t.Run("request should be cached with blacklist rules", func(t *testing.T) {
		resp, _ := get(t, client, upstream.URL+"/api/blogs/get-all")
		assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

		resp, _ = get(t, client, upstream.URL+"/api/blogs/get-all")
		assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	})

	t.Run("blacklisted request is always forwarded", func(t *testing.T) {
		before := calls.Load()
		for i := 0; i < 2; i++ {
			resp, _ := get(t, client, upstream.URL+"/api/users/get-all")
			assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
		}
		assert.Equal(t, before+2, calls.Load())
	})
}

func TestProxyUpstreamDown(t *testing.T) {
	upstream, _ := fixture_upstream()
	target := upstream.URL + "/api/cars/get-all"
	upstream.Close()

	proxyServer, proxyTestServer, client, err := fixture_proxy(fixture_config(nil))
	require.NoError(t, err)
	defer proxyTestServer.Close()

	resp, err := client.Get(target)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.GreaterOrEqual(t, resp.StatusCode, http.StatusInternalServerError)
	assert.Equal(t, 0, proxyServer.Cache().Size())
}

func TestProxyCacheDisabled(t *testing.T) {
	upstream, calls := fixture_upstream()
	defer upstream.Close()

	cfg := fixture_config(nil)
	cfg.Cache.Enabled = false
	_, proxyTestServer, client, err := fixture_proxy(cfg)
	require.NoError(t, err)
	defer proxyTestServer.Close()

	for i := 0; i < 2; i++ {
		resp, _ := get(t, client, upstream.URL+"/api/cars/get-all")
		assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	}
	assert.Equal(t, int64(2), calls.Load())
}

func TestProxyOverridesUpstreamCacheHeader(t *testing.T) {
	var calls atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, requ *http.Request) {
		calls.Add(1)
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write([]byte(`{"cars":[]}`))
	}))
	defer upstream.Close()

	_, proxyTestServer, client, err := fixture_proxy(fixture_config(nil))
	require.NoError(t, err)
	defer proxyTestServer.Close()

	resp, _ := get(t, client, upstream.URL+"/api/cars/get-all")
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"), "a forwarded response is a miss whatever the upstream says")

	resp, _ = get(t, client, upstream.URL+"/api/cars/get-all")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.Equal(t, int64(1), calls.Load())
}
