package reactive

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Batch runs fn with propagation deferred. Writes inside fn commit
// immediately, and a memo read inside fn is recomputed on demand so it
// agrees with them. Effects re-run at most once, after the outermost batch
// returns. Batches nest.
//
// The returned error joins fn's error with any error raised while
// propagating (cycles, reads of disposed nodes inside computations).
//
// Example:
//
//	err := rt.Batch(func() error {
//	    setFirst.Set("Ada")
//	    setLast.Set("Lovelace")
//	    return nil
//	})
func (rt *Runtime) Batch(fn func() error) (err error) {
	rt.batchDepth++
	defer func() {
		rt.batchDepth--
		if r := recover(); r != nil {
			if rt.batchDepth == 0 {
				rt.batchName = ""
			}
			panic(r)
		}
		if rt.batchDepth == 0 {
			err = errors.Join(err, rt.settle())
		}
	}()
	return fn()
}

// BatchNamed is Batch with a name. The name is attached to the resulting
// FlushStats and debug logs, which makes it visible in traces.
func (rt *Runtime) BatchNamed(name string, fn func() error) error {
	if rt.batchDepth == 0 {
		rt.batchName = name
	}
	rt.logger.Debug("reactive batch start", "name", name)
	err := rt.Batch(fn)
	rt.logger.Debug("reactive batch end", "name", name, "error", err)
	return err
}

// InBatch reports whether a batch is open.
func (rt *Runtime) InBatch() bool {
	return rt.batchDepth > 0
}

// settle propagates pending writes unless a flush is already running, in
// which case the running flush picks them up in its next round.
func (rt *Runtime) settle() error {
	if rt.flushing {
		return nil
	}
	if len(rt.roots) == 0 && rt.pending.empty() {
		return rt.drainErrors()
	}
	return rt.flush()
}

func (rt *Runtime) drainErrors() error {
	if len(rt.errs) == 0 {
		return nil
	}
	err := errors.Join(rt.errs...)
	rt.errs = nil
	return err
}

// pendingNode is a computation marked in the open epoch.
type pendingNode struct {
	r   ref
	seq uint64
}

// pendingSet is the work marked in the open epoch. The epoch opens on the
// first write after a round and closes when a round takes the set.
type pendingSet struct {
	open    bool
	roots   int
	visited int
	memos   []pendingNode
	effects []pendingNode
}

func (p *pendingSet) empty() bool {
	return p.roots == 0 && len(p.memos) == 0 && len(p.effects) == 0
}

// canMark reports whether writes can be marked as they happen. Writes made
// during a flush or by a running computation wait in rt.roots.
func (rt *Runtime) canMark() bool {
	return !rt.flushing && len(rt.stack) == 0
}

// markRoots stamps the queued roots with the open epoch and marks every
// computation reachable from them as pending. A memo read inside a batch is
// then pulled up to date instead of returning its value from before the
// write.
func (rt *Runtime) markRoots() {
	if len(rt.roots) == 0 {
		return
	}
	roots := rt.roots
	rt.roots = nil

	p := &rt.pending
	if !p.open {
		rt.epoch++
		p.open = true
	}
	epoch := rt.epoch

	queue := make([]ref, 0, len(roots))
	for _, r := range roots {
		n := rt.arena.get(r)
		if n == nil {
			continue
		}
		if n.changed != epoch {
			n.changed = epoch
			p.roots++
		}
		queue = append(queue, r)
	}

	// A root written twice in one epoch is walked again: subs settled by a
	// pull in between must go back to pending.
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		n := rt.arena.get(r)
		if n == nil {
			continue
		}
		for sub := range n.subs {
			sn := rt.arena.get(sub)
			if sn == nil || sn.state != stateClean {
				continue
			}
			sn.state = statePending
			p.visited++
			pn := pendingNode{r: sub, seq: sn.seq}
			if sn.kind == kindEffect {
				p.effects = append(p.effects, pn)
			} else {
				p.memos = append(p.memos, pn)
			}
			queue = append(queue, sub)
		}
	}
}

// dropPending abandons the open epoch, returning its nodes to clean.
func (rt *Runtime) dropPending() {
	rt.roots = nil
	for _, list := range [][]pendingNode{rt.pending.memos, rt.pending.effects} {
		for _, pn := range list {
			if n := rt.arena.get(pn.r); n != nil && n.state == statePending {
				n.state = stateClean
			}
		}
	}
	rt.pending = pendingSet{}
}

// flush propagates all marked and queued writes. Each round settles the
// pending memos and effects of the open epoch in dependency order. Writes
// made by effects during a round are marked after it and seed the next one.
func (rt *Runtime) flush() error {
	rt.flushing = true
	stats := FlushStats{Name: rt.batchName, Start: time.Now()}
	rt.stats = &stats
	rt.batchName = ""
	defer func() {
		rt.flushing = false
		rt.stats = nil
	}()

	for {
		rt.markRoots()
		if rt.pending.empty() {
			break
		}
		if stats.Rounds >= rt.maxRound {
			rt.dropPending()
			rt.errs = append(rt.errs, &Error{
				Op:     "flush",
				Code:   CodeCyclicDependency,
				Detail: fmt.Sprintf("effects kept writing their dependencies for %d rounds", rt.maxRound),
				Err:    ErrCyclicDependency,
			})
			break
		}
		stats.Rounds++
		rt.round(&stats)
	}

	stats.Duration = time.Since(stats.Start)
	stats.Err = rt.drainErrors()

	rt.logger.Debug("reactive flush",
		"name", stats.Name,
		"rounds", stats.Rounds,
		"roots", stats.Roots,
		"visited", stats.Visited,
		"memo_runs", stats.MemoRuns,
		"memo_skips", stats.MemoSkips,
		"effect_runs", stats.EffectRuns,
		"duration", stats.Duration,
	)
	rt.observer.ObserveFlush(rt.ctx, stats)
	return stats.Err
}

// round settles the open epoch. Memos settle before effects, each in
// creation order.
func (rt *Runtime) round(stats *FlushStats) {
	p := rt.pending
	rt.pending = pendingSet{}
	stats.Roots += p.roots
	stats.Visited += p.visited

	bySeq := func(a, b pendingNode) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	}
	slices.SortFunc(p.memos, bySeq)
	slices.SortFunc(p.effects, bySeq)

	for _, pn := range p.memos {
		if n := rt.arena.get(pn.r); n != nil {
			rt.ensure(pn.r, n)
		}
	}
	for _, pn := range p.effects {
		if n := rt.arena.get(pn.r); n != nil {
			rt.ensure(pn.r, n)
		}
	}
}

// ensure settles a pending computation. It re-executes the node only when
// one of its sources changed in this round; pending sources are settled
// first, depth first, so the node never runs on a stale input. Sources that
// are mid-evaluation higher up the stack force a re-run, which surfaces a
// genuine cycle as a failed read.
func (rt *Runtime) ensure(r ref, n *node) {
	if n.state != statePending {
		return
	}
	n.state = stateChecking
	epoch := rt.epoch

	dirty := false
	for _, s := range n.sources {
		if sn := rt.arena.get(s); sn != nil && sn.changed == epoch && sn.state == stateClean {
			dirty = true
			break
		}
	}
	if !dirty {
		sources := slices.Clone(n.sources)
		for _, s := range sources {
			sn := rt.arena.get(s)
			if sn == nil {
				continue
			}
			switch sn.state {
			case statePending:
				rt.ensure(s, sn)
				if sn = rt.arena.get(s); sn != nil && sn.changed == epoch {
					dirty = true
				}
			case stateChecking, stateComputing:
				dirty = true
			}
			if dirty {
				break
			}
		}
	}

	if n = rt.arena.get(r); n == nil {
		return
	}
	if !dirty {
		n.state = stateClean
		if rt.stats != nil {
			if n.kind == kindEffect {
				rt.stats.EffectSkips++
			} else {
				rt.stats.MemoSkips++
			}
		}
		return
	}
	rt.execute(r, n)
}
