package reactive

// nodeKind identifies what a node in the graph is.
type nodeKind uint8

const (
	kindCell nodeKind = iota + 1
	kindMemo
	kindEffect
)

// String returns a human-readable name for the node kind.
func (k nodeKind) String() string {
	switch k {
	case kindCell:
		return "cell"
	case kindMemo:
		return "memo"
	case kindEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// nodeState tracks a computation's progress through a flush.
type nodeState uint8

const (
	stateClean nodeState = iota
	statePending
	stateChecking
	stateComputing
)

// ref addresses an arena slot. gen must match the slot's generation for the
// ref to be live; generations start at 1 so the zero ref is always dead.
type ref struct {
	idx uint32
	gen uint32
}

// node is one cell, memo or effect.
type node struct {
	gen  uint32
	live bool

	kind  nodeKind
	seq   uint64
	label string
	scope *Scope

	value any
	equal func(a, b any) bool

	compute func(tc *Tracker) any
	effect  func(tc *Tracker) Cleanup
	cleanup Cleanup

	// sources are the nodes read during the last execution.
	sources []ref

	// subs are the computations whose last execution read this node.
	subs map[ref]struct{}

	state nodeState

	// changed is the flush epoch in which the value last changed.
	changed uint64

	// err is the engine error recorded by the last execution.
	err error
}

// reset clears a node for reuse while keeping its generation.
func (n *node) reset() {
	gen := n.gen
	*n = node{gen: gen}
}

// arena is an index-addressed store of nodes with generation counters.
// Released slots are recycled; their generation is bumped so stale refs
// no longer resolve.
type arena struct {
	slots []*node
	free  []uint32
}

// alloc returns a fresh live node and its ref.
func (a *arena) alloc() (ref, *node) {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		nd := a.slots[idx]
		nd.live = true
		return ref{idx: idx, gen: nd.gen}, nd
	}
	nd := &node{gen: 1, live: true}
	a.slots = append(a.slots, nd)
	return ref{idx: uint32(len(a.slots) - 1), gen: 1}, nd
}

// get resolves r, returning nil for stale or released refs.
func (a *arena) get(r ref) *node {
	if r.gen == 0 || int(r.idx) >= len(a.slots) {
		return nil
	}
	nd := a.slots[r.idx]
	if !nd.live || nd.gen != r.gen {
		return nil
	}
	return nd
}

// release frees r's slot. Releasing a stale ref is a no-op.
func (a *arena) release(r ref) {
	nd := a.get(r)
	if nd == nil {
		return
	}
	nd.reset()
	nd.gen++
	if nd.gen == 0 {
		nd.gen = 1
	}
	a.free = append(a.free, r.idx)
}

// live returns the number of allocated slots.
func (a *arena) live() int {
	return len(a.slots) - len(a.free)
}
