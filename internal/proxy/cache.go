package proxy

import (
	"net/http"

	"github.com/elazarl/goproxy"
	"github.com/sirupsen/logrus"

	"github.com/iTrooz/dealership-client/internal/cache/httpcache"
)

// shouldBeCached determines if a request may use the cache based on rules
func (s *Server) shouldBeCached(requ *http.Request) bool {
	matched := false
	for _, rule := range s.rules {
		if rule.Match(requ) {
			matched = true
			break
		}
	}

	if s.config.Rules.Mode == "whitelist" {
		return matched
	}
	return !matched
}

// headerProxyCache reports the provenance to proxy clients, replacing any
// X-Cache header sent by the upstream
const headerProxyCache = "X-Cache"

// handleRequest answers requ from the cache when possible. The lookup, with
// the pending note of a miss, travels to handleResponse in ctx.UserData.
func (s *Server) handleRequest(requ *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	lookup := s.interceptor.OnRequest(requ)
	ctx.UserData = lookup

	if lookup.Hit == nil {
		return requ, nil
	}
	logrus.Infof("Serving from cache: %s %s", requ.Method, requ.URL)
	return requ, httpcache.Replay(lookup.Hit, requ)
}

// handleResponse stores the upstream response of a miss. resp is nil when the
// upstream round trip failed.
func (s *Server) handleResponse(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	lookup, _ := ctx.UserData.(httpcache.Lookup)
	if lookup.Hit != nil && resp != nil {
		resp.Header.Set(headerProxyCache, httpcache.Hit)
		return resp
	}

	pending := lookup.Pending
	if resp == nil {
		_ = s.interceptor.OnError(pending, ctx.Error)
		if ctx.Error != nil {
			logrus.Errorf("Upstream request failed for %s: %v", ctx.Req.URL, ctx.Error)
		}
		return nil
	}

	resp = s.interceptor.OnResponse(resp, pending)
	resp.Header.Set(headerProxyCache, httpcache.Miss)
	logrus.Infof("Forwarded request: %s %s -> %d", ctx.Req.Method, ctx.Req.URL, resp.StatusCode)
	return resp
}
