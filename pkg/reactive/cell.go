package reactive

// Cell is the read handle of a reactive cell.
// Reading a Cell through a tracker makes the running computation depend on it.
type Cell[T any] struct {
	rt  *Runtime
	ref ref
}

// Setter is the write handle of a reactive cell.
type Setter[T any] struct {
	rt  *Runtime
	ref ref
}

// NewCell creates a cell holding initial, owned by s. Writes of a value
// equal (==) to the current one do not propagate.
//
// Creating a cell on a disposed scope returns handles that fail every
// operation with ErrUseAfterDispose.
func NewCell[T comparable](s *Scope, initial T, opts ...Option) (Cell[T], Setter[T]) {
	return NewCellFunc(s, initial, Equal[T](), opts...)
}

// NewCellFunc creates a cell with an explicit equality policy, for types
// without a usable ==. A nil policy propagates every write (see Never).
func NewCellFunc[T any](s *Scope, initial T, eq EqualFunc[T], opts ...Option) (Cell[T], Setter[T]) {
	var rt *Runtime
	if s != nil {
		rt = s.rt
	}
	r, n := rt.newNode(s, kindCell, applyOptions(opts))
	if n != nil {
		n.value = initial
		n.equal = erase(eq)
	}
	return Cell[T]{rt: rt, ref: r}, Setter[T]{rt: rt, ref: r}
}

// Read returns the cell's current value and, when tc is not nil, records a
// dependency of the running computation on this cell.
func (c Cell[T]) Read(tc *Tracker) (T, error) {
	if c.rt == nil {
		var zero T
		return zero, newError("read", nil, ErrUseAfterDispose)
	}
	v, err := c.rt.read(c.ref, tc)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v), nil
}

// Get returns the cell's current value. A failed read is recorded on tc (see
// Tracker.Err) and yields the zero value. Outside computations prefer Read,
// which reports the error directly.
func (c Cell[T]) Get(tc *Tracker) T {
	v, err := c.Read(tc)
	if err != nil {
		tc.fail(err)
	}
	return v
}

// Peek returns the current value without tracking.
func (c Cell[T]) Peek() (T, error) {
	return c.Read(nil)
}

// Live reports whether the cell has not been disposed.
func (c Cell[T]) Live() bool {
	return c.rt != nil && c.rt.arena.get(c.ref) != nil
}

// DependentCount returns how many computations read this cell during their
// last execution.
func (c Cell[T]) DependentCount() int {
	if c.rt == nil {
		return 0
	}
	if n := c.rt.arena.get(c.ref); n != nil {
		return len(n.subs)
	}
	return 0
}

// Dispose removes the cell from the graph ahead of its scope.
func (c Cell[T]) Dispose() {
	if c.rt != nil {
		c.rt.disposeNode(c.ref)
	}
}

// Set replaces the cell's value. Outside a batch, dependents are settled
// before Set returns and any propagation error is returned.
func (s Setter[T]) Set(v T) error {
	if s.rt == nil {
		return newError("write", nil, ErrUseAfterDispose)
	}
	return s.rt.write(s.ref, func(any) any { return v })
}

// Update replaces the cell's value with fn(current).
func (s Setter[T]) Update(fn func(T) T) error {
	if s.rt == nil {
		return newError("write", nil, ErrUseAfterDispose)
	}
	return s.rt.write(s.ref, func(old any) any { return fn(cast[T](old)) })
}

// Live reports whether the cell has not been disposed.
func (s Setter[T]) Live() bool {
	return s.rt != nil && s.rt.arena.get(s.ref) != nil
}

// Reader returns the read handle for the same cell.
func (s Setter[T]) Reader() Cell[T] {
	return Cell[T]{rt: s.rt, ref: s.ref}
}
