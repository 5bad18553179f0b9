package reactive

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func newTestRuntime(t testing.TB, opts ...RuntimeOption) (*Runtime, *Scope) {
	t.Helper()
	base := []RuntimeOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	rt := NewRuntime(append(base, opts...)...)
	root := rt.NewScope()
	t.Cleanup(root.Dispose)
	return rt, root
}

// recordingObserver keeps every notification for inspection.
type recordingObserver struct {
	mu       sync.Mutex
	flushes  []FlushStats
	disposed []int
	discards []string
}

func (o *recordingObserver) ObserveFlush(_ context.Context, s FlushStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushes = append(o.flushes, s)
}

func (o *recordingObserver) ObserveDispose(_ context.Context, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disposed = append(o.disposed, n)
}

func (o *recordingObserver) ObserveDiscard(_ context.Context, label string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discards = append(o.discards, label)
}

func (o *recordingObserver) lastFlush() (FlushStats, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.flushes) == 0 {
		return FlushStats{}, false
	}
	return o.flushes[len(o.flushes)-1], true
}

func (o *recordingObserver) discardCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.discards)
}
