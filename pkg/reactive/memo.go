package reactive

// Memo is the read handle of a cached derived computation.
//
// Memos are eager: the computation runs when the memo is created and again
// whenever a dependency changes. Dependents of a memo are only re-run when
// the recomputed value differs from the cached one.
type Memo[T any] struct {
	rt  *Runtime
	ref ref
}

// NewMemo creates a memo owned by s. Results are compared with ==.
//
// Example:
//
//	double := reactive.NewMemo(scope, func(tc *reactive.Tracker) int {
//	    return count.Get(tc) * 2
//	})
func NewMemo[T comparable](s *Scope, compute func(tc *Tracker) T, opts ...Option) Memo[T] {
	return NewMemoFunc(s, compute, Equal[T](), opts...)
}

// NewMemoFunc creates a memo with an explicit equality policy. A nil policy
// makes every recomputation propagate.
func NewMemoFunc[T any](s *Scope, compute func(tc *Tracker) T, eq EqualFunc[T], opts ...Option) Memo[T] {
	var rt *Runtime
	if s != nil {
		rt = s.rt
	}
	o := applyOptions(opts)
	r, n := rt.newNode(s, kindMemo, o)
	if n == nil {
		return Memo[T]{rt: rt, ref: r}
	}
	n.compute = func(tc *Tracker) any { return compute(tc) }
	n.equal = erase(eq)
	if err := rt.runInitial(r, n); err != nil {
		rt.logger.Warn("reactive memo initial run failed", "label", o.label, "error", err)
	}
	return Memo[T]{rt: rt, ref: r}
}

// Read returns the memo's value, recording a dependency when tc is not nil.
// During propagation a pending memo is brought up to date before it is read.
func (m Memo[T]) Read(tc *Tracker) (T, error) {
	if m.rt == nil {
		var zero T
		return zero, newError("read", nil, ErrUseAfterDispose)
	}
	v, err := m.rt.read(m.ref, tc)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v), nil
}

// Get returns the memo's value, recording any failure on tc.
func (m Memo[T]) Get(tc *Tracker) T {
	v, err := m.Read(tc)
	if err != nil {
		tc.fail(err)
	}
	return v
}

// Peek returns the cached value without tracking.
func (m Memo[T]) Peek() (T, error) {
	return m.Read(nil)
}

// Err returns the first engine error raised during the memo's last run.
func (m Memo[T]) Err() error {
	if m.rt == nil {
		return newError("read", nil, ErrUseAfterDispose)
	}
	n := m.rt.arena.get(m.ref)
	if n == nil {
		return newError("read", nil, ErrUseAfterDispose)
	}
	return n.err
}

// Live reports whether the memo has not been disposed.
func (m Memo[T]) Live() bool {
	return m.rt != nil && m.rt.arena.get(m.ref) != nil
}

// SourceCount returns the number of distinct nodes read by the last run.
func (m Memo[T]) SourceCount() int {
	if m.rt == nil {
		return 0
	}
	if n := m.rt.arena.get(m.ref); n != nil {
		return len(n.sources)
	}
	return 0
}

// DependentCount returns the number of computations that read this memo
// during their last run.
func (m Memo[T]) DependentCount() int {
	if m.rt == nil {
		return 0
	}
	if n := m.rt.arena.get(m.ref); n != nil {
		return len(n.subs)
	}
	return 0
}

// Dispose removes the memo from the graph ahead of its scope.
func (m Memo[T]) Dispose() {
	if m.rt != nil {
		m.rt.disposeNode(m.ref)
	}
}

var (
	_ Reader[int] = Cell[int]{}
	_ Reader[int] = Memo[int]{}
)
