package reactive

import (
	"context"
	"log/slog"
)

// DefaultMaxFlushRounds bounds how many times a single flush may restart
// because effects wrote to cells while it was running.
const DefaultMaxFlushRounds = 100

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeConfig)

// runtimeConfig holds Runtime configuration.
type runtimeConfig struct {
	logger         *slog.Logger
	observer       Observer
	maxFlushRounds int
	ctx            context.Context
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		logger:         slog.Default(),
		observer:       NopObserver{},
		maxFlushRounds: DefaultMaxFlushRounds,
		ctx:            context.Background(),
	}
}

// WithLogger sets the structured logger used for engine diagnostics.
// Default: slog.Default().
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(c *runtimeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver sets the observer notified about flushes, disposals and
// discarded async results.
func WithObserver(o Observer) RuntimeOption {
	return func(c *runtimeConfig) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithMaxFlushRounds sets the maximum number of propagation rounds per flush.
// A flush that needs more rounds fails with ErrCyclicDependency.
func WithMaxFlushRounds(n int) RuntimeOption {
	return func(c *runtimeConfig) {
		if n > 0 {
			c.maxFlushRounds = n
		}
	}
}

// WithContext sets the base context. Root scopes derive their contexts from
// it and observers receive it with every notification.
func WithContext(ctx context.Context) RuntimeOption {
	return func(c *runtimeConfig) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// Option configures a single cell, memo or effect.
type Option func(*nodeOptions)

type nodeOptions struct {
	label string
}

// WithLabel names a node. Labels show up in errors, logs and traces.
func WithLabel(label string) Option {
	return func(o *nodeOptions) {
		o.label = label
	}
}

func applyOptions(opts []Option) nodeOptions {
	var o nodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
