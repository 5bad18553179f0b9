package reactive

// SetValue stores a context value on this scope. Descendant scopes see it
// through Value unless they shadow the key.
func (s *Scope) SetValue(key, value any) {
	if s.disposed {
		return
	}
	if s.values == nil {
		s.values = make(map[any]any)
	}
	s.values[key] = value
}

// Value looks key up on this scope and then on its ancestors.
func (s *Scope) Value(key any) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// typeKey keys context values by their Go type.
type typeKey[T any] struct{}

// Provide makes v available to s and its descendants, keyed by T.
//
// Example:
//
//	count, setCount := reactive.NewCell(root, 0)
//	reactive.Provide(root, count)
//	// later, in a descendant scope:
//	count, ok := reactive.Use[reactive.Cell[int]](child)
func Provide[T any](s *Scope, v T) {
	s.SetValue(typeKey[T]{}, v)
}

// Use returns the nearest value of type T provided at s or an ancestor.
func Use[T any](s *Scope) (T, bool) {
	v, ok := s.Value(typeKey[T]{})
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// MustUse is Use for values the caller knows were provided. It panics
// otherwise.
func MustUse[T any](s *Scope) T {
	v, ok := Use[T](s)
	if !ok {
		panic("reactive: no value provided for requested type")
	}
	return v
}
