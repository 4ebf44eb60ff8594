package demo

import (
	"context"

	"github.com/wippyai/memsafe/linear"
	"github.com/wippyai/memsafe/memory"
)

// Options sizes the memories the examples build.
type Options struct {
	// Linear configures the wasm linear memory examples. MaxPages must be
	// set for the growth example to reach its limit.
	Linear linear.Config

	// Memory configures the simulated memory of the reference counting
	// example. GC and bounds checking are always on there.
	Memory memory.Config
}

// DefaultOptions returns one page of linear memory growable to two and a
// simulated memory of memory.DefaultSize bytes.
func DefaultOptions() Options {
	return Options{
		Linear: linear.Config{Pages: 1, MaxPages: 2},
		Memory: memory.Config{},
	}
}

type optionsKey struct{}

// WithOptions returns a context carrying o for RunWith.
func WithOptions(ctx context.Context, o Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, o)
}

func optionsFrom(ctx context.Context) Options {
	if o, ok := ctx.Value(optionsKey{}).(Options); ok {
		return o
	}
	return DefaultOptions()
}
