package reactive

// Effect is the handle of a side-effecting computation.
type Effect struct {
	rt  *Runtime
	ref ref
}

// NewEffect creates an effect owned by s and runs it immediately. It re-runs
// after every batch that changed something it read during its previous run.
// A returned Cleanup runs before the next run and on disposal.
//
// Writes performed by the effect propagate after the run completes.
//
// Example:
//
//	reactive.NewEffect(scope, func(tc *reactive.Tracker) reactive.Cleanup {
//	    fmt.Println("count is", count.Get(tc))
//	    return nil
//	})
func NewEffect(s *Scope, fn func(tc *Tracker) Cleanup, opts ...Option) Effect {
	var rt *Runtime
	if s != nil {
		rt = s.rt
	}
	o := applyOptions(opts)
	r, n := rt.newNode(s, kindEffect, o)
	if n == nil {
		return Effect{rt: rt, ref: r}
	}
	n.effect = fn
	if err := rt.runInitial(r, n); err != nil {
		rt.logger.Warn("reactive effect initial run failed", "label", o.label, "error", err)
	}
	return Effect{rt: rt, ref: r}
}

// OnChange creates an effect that tracks deps on every run but calls fn only
// on re-runs, skipping the initial one.
func OnChange(s *Scope, deps func(tc *Tracker), fn func(), opts ...Option) Effect {
	first := true
	return NewEffect(s, func(tc *Tracker) Cleanup {
		deps(tc)
		if first {
			first = false
			return nil
		}
		fn()
		return nil
	}, opts...)
}

// Err returns the first engine error raised during the effect's last run.
func (e Effect) Err() error {
	if e.rt == nil {
		return newError("read", nil, ErrUseAfterDispose)
	}
	n := e.rt.arena.get(e.ref)
	if n == nil {
		return newError("read", nil, ErrUseAfterDispose)
	}
	return n.err
}

// Live reports whether the effect has not been disposed.
func (e Effect) Live() bool {
	return e.rt != nil && e.rt.arena.get(e.ref) != nil
}

// SourceCount returns the number of distinct nodes read by the last run.
func (e Effect) SourceCount() int {
	if e.rt == nil {
		return 0
	}
	if n := e.rt.arena.get(e.ref); n != nil {
		return len(n.sources)
	}
	return 0
}

// Dispose runs the effect's cleanup and removes it from the graph.
func (e Effect) Dispose() {
	if e.rt != nil {
		e.rt.disposeNode(e.ref)
	}
}
