package reactive

// Slice is a lens onto one field of a larger state cell: a memo that reads
// the projection and a setter that writes it back.
type Slice[T any] struct {
	// Memo yields the projected value; it only propagates when the
	// projection changes, so consumers of other fields are not disturbed.
	Memo[T]

	set func(T) error
}

// NewSlice creates a lens over state.
//
// Example:
//
//	type Global struct{ Count int; Name string }
//	state, setState := reactive.NewCell(root, Global{})
//	count := reactive.NewSlice(root, state, setState,
//	    func(g Global) int { return g.Count },
//	    func(g Global, n int) Global { g.Count = n; return g },
//	)
//	count.Set(count.Get(nil) + 1)
func NewSlice[S any, T comparable](s *Scope, state Cell[S], write Setter[S], get func(S) T, put func(S, T) S, opts ...Option) Slice[T] {
	m := NewMemo(s, func(tc *Tracker) T {
		return get(state.Get(tc))
	}, opts...)
	return Slice[T]{
		Memo: m,
		set: func(v T) error {
			return write.Update(func(cur S) S { return put(cur, v) })
		},
	}
}

// Set writes v into the underlying state.
func (s Slice[T]) Set(v T) error {
	if s.set == nil {
		return newError("write", nil, ErrUseAfterDispose)
	}
	return s.set(v)
}
