package reactive

// Result carries either a value or an application-level error through the
// graph. The engine treats it like any other value; consumers decide how to
// render failures (an "error boundary" just reads Err).
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps an error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Try builds a Result from a (value, error) pair.
func Try[T any](v T, err error) Result[T] {
	if err != nil {
		return Result[T]{Err: err}
	}
	return Result[T]{Value: v}
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// Or returns the value, or fallback when the result is an error.
func (r Result[T]) Or(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}

// ResultEqual compares results by value and by error identity.
func ResultEqual[T comparable](a, b Result[T]) bool {
	return a.Value == b.Value && a.Err == b.Err
}

// MapResult derives a memo from a Result-carrying reader, applying fn only
// to successful values and passing errors through.
func MapResult[A any, B comparable](s *Scope, src Reader[Result[A]], fn func(A) B, opts ...Option) Memo[Result[B]] {
	return NewMemoFunc(s, func(tc *Tracker) Result[B] {
		r := src.Get(tc)
		if r.Err != nil {
			return Fail[B](r.Err)
		}
		return Ok(fn(r.Value))
	}, ResultEqual[B], opts...)
}
