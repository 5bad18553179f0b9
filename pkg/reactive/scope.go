package reactive

import "context"

// Scope is a lifetime boundary for cells and computations.
// When a Scope is disposed, every node it owns and every child scope is
// disposed with it. Scopes form a tree mirroring the structure of whatever
// consumes the graph (components, list rows, sheet entries).
type Scope struct {
	rt     *Runtime
	parent *Scope

	children []*Scope

	// nodes are the arena slots owned by this scope, in creation order.
	nodes []ref

	cleanups []func()

	// values stores context values provided at this scope.
	values map[any]any

	disposed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScope creates a root scope.
func (rt *Runtime) NewScope() *Scope {
	return newScope(rt, nil)
}

func newScope(rt *Runtime, parent *Scope) *Scope {
	base := rt.ctx
	if parent != nil {
		base = parent.ctx
	}
	ctx, cancel := context.WithCancel(base)
	s := &Scope{rt: rt, parent: parent, ctx: ctx, cancel: cancel}
	if parent != nil {
		parent.children = append(parent.children, s)
	}
	return s
}

// NewChild creates a child scope. A child of a disposed scope is created
// disposed.
func (s *Scope) NewChild() *Scope {
	if s.disposed {
		c := newScope(s.rt, nil)
		c.disposed = true
		c.cancel()
		return c
	}
	return newScope(s.rt, s)
}

// Runtime returns the runtime the scope belongs to.
func (s *Scope) Runtime() *Runtime {
	return s.rt
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Context returns a context that is cancelled when the scope is disposed.
// Async work started on behalf of the scope should use it.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Disposed reports whether the scope has been disposed.
func (s *Scope) Disposed() bool {
	return s.disposed
}

// Len returns the number of live nodes owned directly by the scope.
func (s *Scope) Len() int {
	n := 0
	for _, r := range s.nodes {
		if s.rt.arena.get(r) != nil {
			n++
		}
	}
	return n
}

// OnCleanup registers fn to run when the scope is disposed. On a disposed
// scope fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	if s.disposed {
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
}

// Dispose disposes child scopes (last created first), then the scope's own
// nodes in reverse creation order, then runs cleanups in reverse order and
// cancels the scope context. Disposing twice is a no-op.
func (s *Scope) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	children := s.children
	s.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	nodes := s.nodes
	s.nodes = nil
	released := 0
	for i := len(nodes) - 1; i >= 0; i-- {
		if s.rt.arena.get(nodes[i]) != nil {
			s.rt.disposeNode(nodes[i])
			released++
		}
	}

	cleanups := s.cleanups
	s.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	s.cancel()
	s.values = nil

	s.rt.logger.Debug("reactive scope disposed", "nodes", released)
	s.rt.observer.ObserveDispose(s.rt.ctx, released)
}

func (s *Scope) removeChild(child *Scope) {
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}
