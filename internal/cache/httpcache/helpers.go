package httpcache

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// ForEndpoint describes a GET on path with params
func ForEndpoint(path string, params any) Descriptor {
	return Descriptor{Method: "get", URL: path, Params: params}
}

type looseOptions struct {
	Enabled *bool `mapstructure:"enabled"`
	TTL     any   `mapstructure:"ttl"`
	Force   *bool `mapstructure:"force"`
}

// NormalizeOptions turns caller supplied options into Options. It accepts
// Options, *Options, nil, or a map with any of "enabled", "ttl" and "force".
// A numeric ttl is in milliseconds, a string ttl may also be a duration such
// as "30s". Default values are dropped.
func NormalizeOptions(raw any) (Options, error) {
	switch v := raw.(type) {
	case nil:
		return Options{}, nil
	case Options:
		return normalized(v), nil
	case *Options:
		if v == nil {
			return Options{}, nil
		}
		return normalized(*v), nil
	case map[string]any:
		return decodeOptions(v)
	default:
		return Options{}, fmt.Errorf("unsupported cache options type %T", raw)
	}
}

func decodeOptions(raw map[string]any) (Options, error) {
	var loose looseOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &loose,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Options{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Options{}, fmt.Errorf("decoding cache options: %w", err)
	}

	ttl, err := coerceTTL(loose.TTL)
	if err != nil {
		return Options{}, fmt.Errorf("invalid cache ttl %v: %w", loose.TTL, err)
	}

	opts := Options{Enabled: loose.Enabled, TTL: ttl}
	if loose.Force != nil {
		opts.Force = *loose.Force
	}
	return normalized(opts), nil
}

func normalized(opts Options) Options {
	if opts.Enabled != nil && *opts.Enabled {
		opts.Enabled = nil
	}
	if opts.TTL < 0 {
		opts.TTL = 0
	}
	return opts
}

func coerceTTL(v any) (time.Duration, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return t, nil
	case string:
		if t == "" {
			return 0, nil
		}
		if ms, err := cast.ToFloat64E(t); err == nil {
			return time.Duration(ms * float64(time.Millisecond)), nil
		}
		return time.ParseDuration(t)
	default:
		ms, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
}

// IsCached reports whether a live entry would answer d. It is meant for
// choosing an initial loading state, the request itself still goes through
// the transport.
func IsCached(c *Cache, d Descriptor, opts Options) bool {
	if c == nil || opts.Disabled() || opts.Force {
		return false
	}
	_, ok := c.interceptor.Peek(d)
	return ok
}
