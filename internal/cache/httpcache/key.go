package httpcache

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// Descriptor describes a request for key derivation
type Descriptor struct {
	// HTTP method, "get" when empty
	Method string
	// absolute URL, or a path resolved against the base URL
	URL string
	// query parameters, usually a map[string]any
	Params any
	// overrides SerializeParams when set
	Serializer func(params any) string
}

// BuildKey derives the cache key of d. It has no side effects and never fails.
// Format: "{method}::{url}?{params}"
func BuildKey(baseURL string, d Descriptor) string {
	method := strings.ToLower(d.Method)
	if method == "" {
		method = "get"
	}

	params := ""
	if d.Params != nil {
		if d.Serializer != nil {
			params = d.Serializer(d.Params)
		} else {
			params = SerializeParams(d.Params)
		}
	}

	return method + "::" + ResolveURL(baseURL, d.URL) + "?" + params
}

// ResolveURL returns target unchanged when it is an absolute http(s) URL, and
// resolves it against base otherwise. When either side can't be parsed, both
// are joined with a single slash.
func ResolveURL(base, target string) string {
	if absoluteURL.MatchString(target) {
		return target
	}

	baseURL, err := url.Parse(base)
	if err == nil && baseURL.IsAbs() && baseURL.Host != "" {
		ref, err := url.Parse(target)
		if err == nil {
			return baseURL.ResolveReference(ref).String()
		}
	}

	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(target, "/")
}

// DescriptorFromRequest describes a request that carries no descriptor in its
// context: the URL without its query, and the query as params.
func DescriptorFromRequest(req *http.Request) Descriptor {
	u := *req.URL
	if !u.IsAbs() {
		u.Scheme = "http"
		if req.TLS != nil {
			u.Scheme = "https"
		}
		u.Host = req.Host
	}
	query := u.Query()
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""

	d := Descriptor{Method: req.Method, URL: u.String()}
	if len(query) > 0 {
		params := make(map[string]any, len(query))
		for k, values := range query {
			if len(values) == 1 {
				params[k] = values[0]
				continue
			}
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			params[k] = list
		}
		d.Params = params
	}
	return d
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s", strings.ToUpper(d.Method), d.URL)
}
