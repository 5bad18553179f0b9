// Package reactive provides a fine-grained reactive graph engine.
//
// The engine owns cells (mutable reactive values), memos (cached derived
// computations) and effects (side-effecting computations). Dependencies are
// tracked at run time: every computation receives an explicit *Tracker and
// any cell or memo read through it becomes a dependency of that run. Edges
// are rebuilt on every execution, so a computation that reads different
// values on different branches only reacts to what it read last time.
//
// # Core Types
//
// Cells are created in pairs of read and write handles:
//
//	rt := reactive.NewRuntime()
//	scope := rt.NewScope()
//
//	count, setCount := reactive.NewCell(scope, 0)
//	double := reactive.NewMemo(scope, func(tc *reactive.Tracker) int {
//	    return count.Get(tc) * 2
//	})
//	reactive.NewEffect(scope, func(tc *reactive.Tracker) reactive.Cleanup {
//	    fmt.Println("double is", double.Get(tc))
//	    return nil
//	})
//
//	setCount.Set(5) // prints "double is 10"
//
// Reading with a nil tracker is a plain value fetch and records nothing.
//
// # Batching
//
// Writes performed inside Batch are committed immediately but propagate once,
// when the outermost batch returns:
//
//	rt.Batch(func() error {
//	    setFirst.Set("Ada")
//	    setLast.Set("Lovelace")
//	    return nil
//	})
//
// A write outside any batch is its own batch.
//
// # Propagation
//
// A write marks everything reachable from the written cell as pending. At
// the end of the outermost batch the engine settles pending computations in
// dependency order. A pending memo read before that, for example by a
// computation created inside the batch, is recomputed on the spot. A memo
// whose new value equals its cached value does not cause its dependents to
// run.
//
// # Ownership
//
// Every node belongs to a Scope. Disposing a scope disposes its children,
// runs effect cleanups and frees the nodes' arena slots. Handles are
// generation-checked: any use after disposal fails with ErrUseAfterDispose.
//
// # Threading
//
// A Runtime is single-threaded. Goroutines hand work to it with Dispatch;
// Run serves the dispatch queue on the calling goroutine.
package reactive
