package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type output struct {
	Responses []result       `yaml:"responses"`
	Cache     []entrySummary `yaml:"cache"`
}

func fixtureBackend(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cars":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func runCLI(t *testing.T, args ...string) output {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), args, &buf))

	var out output
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestRunGet(t *testing.T) {
	srv, calls := fixtureBackend(t)

	out := runCLI(t, "-base-url", srv.URL+"/api", "get", "/cars/get-all", "page=1")
	require.Len(t, out.Responses, 1)
	assert.Equal(t, http.StatusOK, out.Responses[0].Status)
	assert.False(t, out.Responses[0].FromCache)
	assert.Equal(t, `{"cars":[]}`, out.Responses[0].Body)
	require.Len(t, out.Cache, 1)
	assert.Equal(t, `get::`+srv.URL+`/api/cars/get-all?{"page":"1"}`, out.Cache[0].Key)
	assert.Equal(t, int64(1), calls.Load())
}

func TestRunRepeat(t *testing.T) {
	srv, calls := fixtureBackend(t)

	out := runCLI(t, "-base-url", srv.URL+"/api", "repeat", "/cars/get-all")
	require.Len(t, out.Responses, 2)
	assert.False(t, out.Responses[0].FromCache)
	assert.True(t, out.Responses[1].FromCache)
	assert.Equal(t, out.Responses[0].Body, out.Responses[1].Body)
	assert.NotEqual(t, out.Responses[0].RequestID, out.Responses[1].RequestID)
	assert.Equal(t, int64(1), calls.Load())
}

func TestRunRepeatForced(t *testing.T) {
	srv, calls := fixtureBackend(t)

	out := runCLI(t, "-base-url", srv.URL+"/api", "repeat", "-force", "/cars/get-all")
	assert.False(t, out.Responses[1].FromCache)
	assert.Equal(t, int64(2), calls.Load())

	out = runCLI(t, "-base-url", srv.URL+"/api", "repeat", "-no-cache", "/cars/get-all")
	assert.False(t, out.Responses[1].FromCache)
	assert.Empty(t, out.Cache)
}

func TestRunUsage(t *testing.T) {
	for name, args := range map[string][]string{
		"no command":      {},
		"unknown command": {"list"},
		"no path":         {"get"},
		"bad param":       {"get", "/cars/get-all", "page"},
		"bad flag":        {"get", "-ttl", "soon", "/cars/get-all"},
	} {
		t.Run(name, func(t *testing.T) {
			err := run(context.Background(), args, &bytes.Buffer{})
			assert.ErrorIs(t, err, errUsage)
		})
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"make=Audi", "year=2020", "feature=gps", "feature=abs", "q=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"make":    "Audi",
		"year":    "2020",
		"feature": []any{"gps", "abs"},
		"q":       "a=b",
	}, params)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}
