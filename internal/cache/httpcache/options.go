package httpcache

import (
	"context"
	"time"
)

// Options tunes caching for one request
type Options struct {
	// nil means enabled. false disables both reading and writing the cache.
	Enabled *bool
	// overrides the default TTL of the stored entry when positive
	TTL time.Duration
	// skips a live entry but still stores the fresh response
	Force bool
}

// Bool returns a pointer to b, for Options.Enabled
func Bool(b bool) *bool {
	return &b
}

// Disabled reports whether the options turn caching off
func (o Options) Disabled() bool {
	return o.Enabled != nil && !*o.Enabled
}

type optionsKey struct{}

type descriptorKey struct{}

// WithOptions attaches per-request cache options to ctx
func WithOptions(ctx context.Context, opts Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

// OptionsFrom returns the options attached to ctx, or the zero Options
func OptionsFrom(ctx context.Context) Options {
	opts, _ := ctx.Value(optionsKey{}).(Options)
	return opts
}

// WithDescriptor attaches the descriptor the cache key is derived from.
// Requests without one get a descriptor built from their URL.
func WithDescriptor(ctx context.Context, d Descriptor) context.Context {
	return context.WithValue(ctx, descriptorKey{}, d)
}

// DescriptorFrom returns the descriptor attached to ctx
func DescriptorFrom(ctx context.Context) (Descriptor, bool) {
	d, ok := ctx.Value(descriptorKey{}).(Descriptor)
	return d, ok
}
