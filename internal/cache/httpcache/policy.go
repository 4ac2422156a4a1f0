package httpcache

import (
	"net/http"
	"strings"
)

// ShouldCache reports whether req may be served from and stored into the cache:
// only GET requests, not disabled by opts, without a no-cache or no-store directive.
func ShouldCache(req *http.Request, opts Options) bool {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if !strings.EqualFold(method, http.MethodGet) {
		return false
	}

	if opts.Disabled() {
		return false
	}

	for _, name := range []string{"Cache-Control", "Pragma"} {
		directives := strings.ToLower(strings.Join(req.Header.Values(name), ","))
		if strings.Contains(directives, "no-cache") || strings.Contains(directives, "no-store") {
			return false
		}
	}

	return true
}

// storable reports whether a response status may be stored.
// Non-2xx responses are failures for the caller and never populate the cache.
func storable(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
