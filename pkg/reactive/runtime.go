package reactive

import (
	"context"
	"log/slog"
)

// Runtime owns a reactive graph: the node arena, the batch state and the
// dispatch queue. A Runtime is not safe for concurrent use; other goroutines
// must go through Dispatch.
type Runtime struct {
	arena arena

	// seq is the last node creation sequence number.
	seq uint64

	// epoch identifies the current flush round.
	epoch uint64

	// batchDepth tracks nested batches. Propagation runs when it drops to 0.
	batchDepth int
	batchName  string

	// roots are cells written while their dependents could not be marked
	// yet: during a flush round or while a computation is running.
	roots []ref

	// pending holds what the open epoch has marked but not yet settled.
	pending pendingSet

	flushing bool
	stats    *FlushStats

	// stack holds the computations currently executing, innermost last.
	stack []ref

	// errs accumulates computation errors until the next flush returns them.
	errs []error

	queue dispatchQueue

	logger   *slog.Logger
	observer Observer
	ctx      context.Context
	maxRound int
}

// NewRuntime creates an empty reactive graph.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runtime{
		epoch:    1,
		queue:    dispatchQueue{signal: make(chan struct{}, 1)},
		logger:   cfg.logger,
		observer: cfg.observer,
		ctx:      cfg.ctx,
		maxRound: cfg.maxFlushRounds,
	}
}

// Context returns the runtime's base context.
func (rt *Runtime) Context() context.Context {
	return rt.ctx
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// RuntimeStats reports arena occupancy.
type RuntimeStats struct {
	// Nodes is the number of live cells, memos and effects.
	Nodes int

	// Free is the number of released slots waiting for reuse.
	Free int
}

// Stats returns current arena occupancy.
func (rt *Runtime) Stats() RuntimeStats {
	return RuntimeStats{Nodes: rt.arena.live(), Free: len(rt.arena.free)}
}

// newNode allocates a node of the given kind owned by s. It returns the zero
// ref when s is disposed, producing a handle that is dead on arrival.
func (rt *Runtime) newNode(s *Scope, kind nodeKind, o nodeOptions) (ref, *node) {
	if s == nil || s.disposed {
		return ref{}, nil
	}
	r, n := rt.arena.alloc()
	rt.seq++
	n.kind = kind
	n.seq = rt.seq
	n.label = o.label
	n.scope = s
	s.nodes = append(s.nodes, r)
	return r, n
}

// current returns the innermost executing computation, or nil.
func (rt *Runtime) current() *node {
	if len(rt.stack) == 0 {
		return nil
	}
	return rt.arena.get(rt.stack[len(rt.stack)-1])
}

// read returns the value stored at r and records the dependency on tc.
func (rt *Runtime) read(r ref, tc *Tracker) (any, error) {
	n := rt.arena.get(r)
	if n == nil {
		return nil, newError("read", nil, ErrUseAfterDispose)
	}

	if n.kind == kindMemo {
		switch n.state {
		case statePending:
			// Pull: settle the memo before anyone observes it.
			rt.ensure(r, n)
			if n = rt.arena.get(r); n == nil {
				return nil, newError("read", nil, ErrUseAfterDispose)
			}
		case stateChecking, stateComputing:
			if tc != nil {
				tc.track(r)
			}
			return n.value, newError("read", n, ErrCyclicDependency)
		}
	}

	if tc != nil {
		tc.track(r)
	}
	return n.value, nil
}

// write commits update's result to the cell at r and queues propagation.
func (rt *Runtime) write(r ref, update func(old any) any) error {
	n := rt.arena.get(r)
	if n == nil {
		return newError("write", nil, ErrUseAfterDispose)
	}
	if cur := rt.current(); cur != nil && cur.kind == kindMemo {
		return newError("write", n, ErrWriteInComputation)
	}

	next := update(n.value)
	if n.equal != nil && n.equal(n.value, next) {
		return nil
	}
	n.value = next
	rt.roots = append(rt.roots, r)
	if rt.canMark() {
		rt.markRoots()
	}

	if rt.batchDepth == 0 {
		return rt.settle()
	}
	return nil
}

// execute runs a memo or effect, replacing its dependency edges with the
// reads of this run.
func (rt *Runtime) execute(r ref, n *node) {
	for _, s := range n.sources {
		if sn := rt.arena.get(s); sn != nil {
			delete(sn.subs, r)
		}
	}
	n.sources = n.sources[:0]

	if n.cleanup != nil {
		cleanup := n.cleanup
		n.cleanup = nil
		cleanup()
	}

	tc := &Tracker{rt: rt, owner: r}
	n.state = stateComputing
	rt.stack = append(rt.stack, r)

	var (
		value   any
		cleanup Cleanup
	)
	func() {
		defer func() {
			rt.stack = rt.stack[:len(rt.stack)-1]
		}()
		switch n.kind {
		case kindMemo:
			value = n.compute(tc)
		case kindEffect:
			cleanup = n.effect(tc)
		}
	}()

	if n.gen != r.gen || !n.live {
		// Disposed by its own run.
		if cleanup != nil {
			cleanup()
		}
		return
	}

	n.sources = tc.sources
	for _, s := range n.sources {
		sn := rt.arena.get(s)
		if sn == nil {
			continue
		}
		if sn.subs == nil {
			sn.subs = make(map[ref]struct{})
		}
		sn.subs[r] = struct{}{}
	}

	n.state = stateClean
	n.err = tc.err
	if tc.err != nil {
		rt.errs = append(rt.errs, tc.err)
	}

	switch n.kind {
	case kindMemo:
		if rt.stats != nil {
			rt.stats.MemoRuns++
		}
		if n.changed == 0 || n.equal == nil || !n.equal(n.value, value) {
			n.value = value
			n.changed = rt.epoch
		}
	case kindEffect:
		if rt.stats != nil {
			rt.stats.EffectRuns++
		}
		n.cleanup = cleanup
	}
}

// runInitial executes a freshly created computation inside an implicit
// batch, so writes from an effect's first run propagate after it returns.
func (rt *Runtime) runInitial(r ref, n *node) error {
	return rt.Batch(func() error {
		rt.execute(r, n)
		if rt.canMark() {
			rt.markRoots()
		}
		return nil
	})
}

// disposeNode unlinks r from the graph and frees its slot.
func (rt *Runtime) disposeNode(r ref) {
	n := rt.arena.get(r)
	if n == nil {
		return
	}
	if n.cleanup != nil {
		cleanup := n.cleanup
		n.cleanup = nil
		cleanup()
		// The cleanup may have disposed the node already.
		if n = rt.arena.get(r); n == nil {
			return
		}
	}
	for _, s := range n.sources {
		if sn := rt.arena.get(s); sn != nil {
			delete(sn.subs, r)
		}
	}
	for sub := range n.subs {
		sn := rt.arena.get(sub)
		if sn == nil {
			continue
		}
		for i, s := range sn.sources {
			if s == r {
				sn.sources = append(sn.sources[:i], sn.sources[i+1:]...)
				break
			}
		}
	}
	rt.arena.release(r)
}
