package reactive

import (
	"context"
	"time"
)

// FlushStats summarises one flush: the propagation that follows the end of
// an outermost batch.
type FlushStats struct {
	// Name is the batch name given to BatchNamed, if any.
	Name string

	Start    time.Time
	Duration time.Duration

	// Rounds counts propagation passes; effects writing cells add rounds.
	Rounds int

	// Roots counts cell writes that started propagation.
	Roots int

	// Visited counts computations marked pending.
	Visited int

	MemoRuns    int
	MemoSkips   int
	EffectRuns  int
	EffectSkips int

	// Err is the joined error of the flush, if any.
	Err error
}

// Observer receives engine notifications. Implementations must not call
// back into the Runtime.
type Observer interface {
	// ObserveFlush is called after every flush.
	ObserveFlush(ctx context.Context, stats FlushStats)

	// ObserveDispose is called after a scope is disposed with the number of
	// nodes it released.
	ObserveDispose(ctx context.Context, nodes int)

	// ObserveDiscard is called when an async result arrives for a disposed
	// scope or a superseded request and is dropped.
	ObserveDiscard(ctx context.Context, label string)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) ObserveFlush(context.Context, FlushStats) {}
func (NopObserver) ObserveDispose(context.Context, int) {}
func (NopObserver) ObserveDiscard(context.Context, string) {}

var _ Observer = NopObserver{}
