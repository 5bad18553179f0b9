package telemetry

import (
	"context"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// Multi returns an observer that forwards every notification to each of
// observers in order. Nil observers are skipped.
func Multi(observers ...reactive.Observer) reactive.Observer {
	out := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

type multi []reactive.Observer

func (m multi) ObserveFlush(ctx context.Context, stats reactive.FlushStats) {
	for _, o := range m {
		o.ObserveFlush(ctx, stats)
	}
}

func (m multi) ObserveDispose(ctx context.Context, nodes int) {
	for _, o := range m {
		o.ObserveDispose(ctx, nodes)
	}
}

func (m multi) ObserveDiscard(ctx context.Context, label string) {
	for _, o := range m {
		o.ObserveDiscard(ctx, label)
	}
}
