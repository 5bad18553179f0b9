package reactive

import (
	"context"
)

// Status is the lifecycle state of a Resource.
type Status int

const (
	Pending Status = iota // Created, no fetch started
	Loading               // Fetch in flight
	Ready                 // Last fetch succeeded
	Failed                // Last fetch returned an error
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ResourceState is the value held by a resource's state cell. While a
// refetch is loading, Value keeps the last successful result.
type ResourceState[T any] struct {
	Status Status
	Value  T
	Err    error
}

// Resource loads a value asynchronously and exposes its progress as a cell.
//
// Fetches run on their own goroutine with a context derived from the owning
// scope. Results are delivered through the runtime's dispatch queue and are
// discarded if the scope was disposed or a newer fetch superseded them.
type Resource[T any] struct {
	rt    *Runtime
	scope *Scope
	label string

	state    Cell[ResourceState[T]]
	setState Setter[ResourceState[T]]

	fetch func(ctx context.Context) (T, error)

	// seq identifies the newest fetch; only it may resolve.
	seq    uint64
	cancel context.CancelFunc
}

// NewResource creates a resource owned by s and starts fetching immediately.
func NewResource[T any](s *Scope, fetch func(ctx context.Context) (T, error), opts ...Option) *Resource[T] {
	r := newResource[T](s, opts)
	r.fetch = fetch
	if err := r.Refetch(); err != nil && r.rt != nil {
		r.rt.logger.Warn("reactive resource start failed", "label", r.label, "error", err)
	}
	return r
}

// NewSourceResource creates a resource that refetches whenever source
// changes, passing the source value to fetch. An in-flight fetch for an
// older source value is cancelled and its result discarded.
//
// Example:
//
//	count, setCount := reactive.NewCell(scope, 0)
//	data := reactive.NewSourceResource(scope, count,
//	    func(ctx context.Context, n int) (int, error) { return load(ctx, n) })
func NewSourceResource[S, T any](s *Scope, source Reader[S], fetch func(ctx context.Context, src S) (T, error), opts ...Option) *Resource[T] {
	r := newResource[T](s, opts)
	NewEffect(s, func(tc *Tracker) Cleanup {
		v := source.Get(tc)
		r.fetch = func(ctx context.Context) (T, error) { return fetch(ctx, v) }
		if err := r.Refetch(); err != nil {
			tc.fail(err)
		}
		return nil
	}, WithLabel(sourceLabel(r.label)))
	return r
}

func sourceLabel(label string) string {
	if label == "" {
		return ""
	}
	return label + ".source"
}

func newResource[T any](s *Scope, opts []Option) *Resource[T] {
	o := applyOptions(opts)
	state, set := NewCellFunc(s, ResourceState[T]{}, Never[ResourceState[T]](), opts...)
	r := &Resource[T]{
		scope:    s,
		label:    o.label,
		state:    state,
		setState: set,
	}
	if s != nil {
		r.rt = s.rt
		s.OnCleanup(func() {
			if r.cancel != nil {
				r.cancel()
			}
		})
	}
	return r
}

// Refetch starts a new fetch, cancelling any fetch in flight. Must be called
// on the runtime goroutine.
func (r *Resource[T]) Refetch() error {
	if r.scope == nil || r.scope.Disposed() || r.fetch == nil {
		return newError("write", nil, ErrUseAfterDispose)
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	seq := r.seq
	ctx, cancel := context.WithCancel(r.scope.Context())
	r.cancel = cancel

	prev, _ := r.state.Peek()
	if err := r.setState.Set(ResourceState[T]{Status: Loading, Value: prev.Value}); err != nil {
		cancel()
		return err
	}

	fetch := r.fetch
	go func() {
		v, err := fetch(ctx)
		r.rt.Dispatch(func() {
			r.resolve(seq, v, err)
		})
	}()
	return nil
}

// resolve applies a fetch result on the runtime goroutine.
func (r *Resource[T]) resolve(seq uint64, v T, err error) {
	if r.scope.Disposed() || seq != r.seq || !r.setState.Live() {
		r.rt.logger.Debug("reactive resource result discarded", "label", r.label, "seq", seq)
		r.rt.observer.ObserveDiscard(r.rt.ctx, r.label)
		return
	}
	r.cancel()
	r.cancel = nil

	next := ResourceState[T]{Status: Ready, Value: v}
	if err != nil {
		prev, _ := r.state.Peek()
		next = ResourceState[T]{Status: Failed, Value: prev.Value, Err: err}
	}
	if serr := r.setState.Set(next); serr != nil {
		r.rt.logger.Warn("reactive resource update failed", "label", r.label, "error", serr)
	}
}

// State returns the current state, tracking it on tc.
func (r *Resource[T]) State(tc *Tracker) ResourceState[T] {
	return r.state.Get(tc)
}

// Read is State with error reporting.
func (r *Resource[T]) Read(tc *Tracker) (ResourceState[T], error) {
	return r.state.Read(tc)
}

// Get returns the state, recording failures on tc.
func (r *Resource[T]) Get(tc *Tracker) ResourceState[T] {
	return r.state.Get(tc)
}

// Loading reports whether a fetch is in flight, tracking the state on tc.
func (r *Resource[T]) Loading(tc *Tracker) bool {
	return r.state.Get(tc).Status == Loading
}

// Cell exposes the underlying state cell.
func (r *Resource[T]) Cell() Cell[ResourceState[T]] {
	return r.state
}

var _ Reader[ResourceState[int]] = (*Resource[int])(nil)
