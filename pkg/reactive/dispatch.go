package reactive

import (
	"context"
	"sync"
	"sync/atomic"
)

// dispatchQueue is the only part of a Runtime shared between goroutines.
type dispatchQueue struct {
	mu     sync.Mutex
	items  []func()
	signal chan struct{}
}

func (q *dispatchQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
	q.notify()
}

func (q *dispatchQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *dispatchQueue) takeAll() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *dispatchQueue) takeOne() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	fn := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.notify()
	}
	return fn, true
}

func (q *dispatchQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dispatch queues fn to run on the goroutine serving the runtime (Run, Step
// or Drain). It is safe to call from any goroutine and is the correct way to
// feed results of asynchronous work back into the graph.
//
// Example:
//
//	go func() {
//	    user, err := db.FindUser(ctx, id)
//	    rt.Dispatch(func() {
//	        setUser.Set(reactive.Result[User]{Value: user, Err: err})
//	    })
//	}()
func (rt *Runtime) Dispatch(fn func()) {
	rt.queue.push(fn)
}

// Pending returns the number of queued dispatch items.
func (rt *Runtime) Pending() int {
	return rt.queue.len()
}

// Drain runs every queued item on the calling goroutine and returns how many
// ran. Items queued while draining are left for the next call.
func (rt *Runtime) Drain() int {
	items := rt.queue.takeAll()
	for _, fn := range items {
		fn()
	}
	return len(items)
}

// Step blocks until one queued item is available, runs it, and returns. It
// returns ctx.Err() if ctx is done first.
func (rt *Runtime) Step(ctx context.Context) error {
	for {
		if fn, ok := rt.queue.takeOne(); ok {
			fn()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rt.queue.signal:
		}
	}
}

// Run serves the dispatch queue until ctx is done. The calling goroutine
// becomes the runtime's owner for the duration.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.logger.Debug("reactive runtime loop started")
	defer rt.logger.Debug("reactive runtime loop stopped")
	for {
		rt.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rt.queue.signal:
		}
	}
}

// Call states shared between the caller and the runtime goroutine.
const (
	callQueued int32 = iota
	callStarted
	callAbandoned
)

// Call runs fn on the runtime goroutine inside a batch and waits for the
// batch to settle. It must not be called from the runtime goroutine itself.
//
// If ctx is done before fn starts, fn never runs and Call returns ctx.Err().
// Once fn has started Call waits for it, so a nil ctx error always means fn
// ran and its result is returned.
func (rt *Runtime) Call(ctx context.Context, fn func() error) error {
	var state atomic.Int32
	done := make(chan error, 1)
	rt.Dispatch(func() {
		if ctx.Err() != nil || !state.CompareAndSwap(callQueued, callStarted) {
			state.CompareAndSwap(callQueued, callAbandoned)
			done <- ctx.Err()
			return
		}
		done <- rt.Batch(fn)
	})
	select {
	case err := <-done:
		if state.Load() != callStarted {
			return ctx.Err()
		}
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(callQueued, callAbandoned) {
			return ctx.Err()
		}
		return <-done
	}
}
