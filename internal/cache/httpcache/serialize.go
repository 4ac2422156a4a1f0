package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/iTrooz/dealership-client/internal/cache"
)

const (
	// HeaderCache tells whether a response was replayed from the cache. It is
	// owned by this package: upstream values are overwritten, and an upstream
	// X-Cache header is stored and replayed like any other header.
	HeaderCache = "X-Client-Cache"
	Hit         = "HIT"
	Miss        = "MISS"
)

// Snapshot reads the body of resp into an entry stamped with now and ttl.
// The body is replaced so the caller can still read it. On a read error the
// caller sees the bytes read so far followed by the same error.
func Snapshot(resp *http.Response, now time.Time, ttl time.Duration) (*cache.Entry, error) {
	var data []byte
	if resp.Body != nil {
		var err error
		data, err = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), &errReader{err: err}))
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Del(HeaderCache)

	return &cache.Entry{
		Data:       data,
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Header:     header,
		Timestamp:  now,
		TTL:        ttl,
	}, nil
}

// Replay builds a response from entry, answering req
func Replay(entry *cache.Entry, req *http.Request) *http.Response {
	return rebuild(entry, req, Hit)
}

func rebuild(entry *cache.Entry, req *http.Request, provenance string) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(HeaderCache, provenance)

	status := entry.StatusText
	if status == "" {
		status = strconv.Itoa(entry.Status) + " " + http.StatusText(entry.Status)
	}

	return &http.Response{
		Status:        status,
		StatusCode:    entry.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}

// FromCache reports whether resp was replayed from the cache
func FromCache(resp *http.Response) bool {
	return resp != nil && resp.Header.Get(HeaderCache) == Hit
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}
