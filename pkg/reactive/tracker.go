package reactive

// Tracker is the evaluation context handed to every memo and effect run.
// Reads performed through it become the run's dependencies. A nil *Tracker
// is valid everywhere a tracker is accepted and means "do not track".
type Tracker struct {
	rt    *Runtime
	owner ref

	sources []ref

	// err is the first engine error hit by a Get during this run.
	err error
}

// track records r as a dependency of the current run.
func (tc *Tracker) track(r ref) {
	if r == tc.owner {
		return
	}
	for _, s := range tc.sources {
		if s == r {
			return
		}
	}
	tc.sources = append(tc.sources, r)
}

// fail records err unless an earlier error is already recorded.
func (tc *Tracker) fail(err error) {
	if tc != nil && tc.err == nil {
		tc.err = err
	}
}

// Fail records err as the run's engine error, as a failed Get would. The
// error is reported by the flush that ran the computation. Consumers use it
// when they turn a failed Read into a value of their own.
func (tc *Tracker) Fail(err error) {
	tc.fail(err)
}

// Err returns the first engine error encountered by Get calls in this run.
func (tc *Tracker) Err() error {
	if tc == nil {
		return nil
	}
	return tc.err
}

// Runtime returns the runtime executing this run, or nil for a nil tracker.
func (tc *Tracker) Runtime() *Runtime {
	if tc == nil {
		return nil
	}
	return tc.rt
}

// Reader is implemented by every readable handle (cells and memos).
type Reader[T any] interface {
	// Read returns the current value, recording a dependency on tc.
	Read(tc *Tracker) (T, error)

	// Get is like Read but records failures on tc and returns the zero value.
	Get(tc *Tracker) T
}

// Cleanup is returned by effects. It runs before the effect re-runs and when
// the effect is disposed.
type Cleanup func()

// EqualFunc reports whether two values are equal for propagation purposes.
type EqualFunc[T any] func(a, b T) bool

// Equal returns the == policy for comparable types.
func Equal[T comparable]() EqualFunc[T] {
	return func(a, b T) bool { return a == b }
}

// Never returns a policy under which no two values are equal, so every write
// or recomputation propagates.
func Never[T any]() EqualFunc[T] {
	return func(a, b T) bool { return false }
}

// erase adapts a typed equality policy to the engine's untyped storage.
// A nil policy never reports equality.
func erase[T any](eq EqualFunc[T]) func(a, b any) bool {
	if eq == nil {
		return nil
	}
	return func(a, b any) bool {
		av, _ := a.(T)
		bv, _ := b.(T)
		return eq(av, bv)
	}
}

// cast converts stored values back to T; nil interfaces become the zero value.
func cast[T any](v any) T {
	t, _ := v.(T)
	return t
}
