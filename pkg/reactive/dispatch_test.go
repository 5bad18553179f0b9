package reactive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatchDrain(t *testing.T) {
	rt, root := newTestRuntime(t)
	count, setCount := NewCell(root, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.Dispatch(func() {
				setCount.Update(func(n int) int { return n + 1 })
			})
		}()
	}
	wg.Wait()

	if rt.Pending() != 10 {
		t.Errorf("expected 10 pending items, got %d", rt.Pending())
	}
	if ran := rt.Drain(); ran != 10 {
		t.Errorf("expected 10 items drained, got %d", ran)
	}
	if v, _ := count.Peek(); v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
}

func TestDrainLeavesNewItemsQueued(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.Dispatch(func() {
		rt.Dispatch(func() {})
	})
	if ran := rt.Drain(); ran != 1 {
		t.Errorf("expected 1 item, got %d", ran)
	}
	if rt.Pending() != 1 {
		t.Errorf("expected the nested item to stay queued, got %d", rt.Pending())
	}
}

func TestStepTimesOut(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rt.Step(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRunAndCall(t *testing.T) {
	rt, root := newTestRuntime(t)
	count, setCount := NewCell(root, 1)
	doubled := NewMemo(root, func(tc *Tracker) int { return count.Get(tc) * 2 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	var got int
	err := rt.Call(stepCtx(t), func() error {
		if err := setCount.Set(21); err != nil {
			return err
		}
		got, _ = doubled.Peek()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// Reads inside the batch pull the memo up to date.
	if got != 42 {
		t.Errorf("expected 42 inside Call, got %d", got)
	}

	err = rt.Call(stepCtx(t), func() error {
		got, _ = doubled.Peek()
		return nil
	})
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %d (%v)", got, err)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected Run to stop with context.Canceled, got %v", err)
	}
}

func TestCallReturnsBatchError(t *testing.T) {
	rt, root := newTestRuntime(t)
	_, setCount := NewCell(root, 0)
	sentinel := errors.New("rejected")

	go rt.Step(stepCtx(t))
	err := rt.Call(stepCtx(t), func() error {
		setCount.Set(1)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected fn error from Call, got %v", err)
	}
}

func TestCallSkipsFnAfterCallerGaveUp(t *testing.T) {
	rt, root := newTestRuntime(t)
	count, setCount := NewCell(root, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rt.Call(ctx, func() error {
		return setCount.Set(1)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The queued item still drains but must not apply the write.
	if ran := rt.Drain(); ran != 1 {
		t.Errorf("expected the abandoned item to drain, got %d", ran)
	}
	if v, _ := count.Peek(); v != 0 {
		t.Errorf("expected the write to be skipped, got %d", v)
	}
}

func TestCallWaitsForStartedFn(t *testing.T) {
	rt, root := newTestRuntime(t)
	count, setCount := NewCell(root, 0)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- rt.Call(ctx, func() error {
			close(started)
			// The caller's context ends while fn is running.
			cancel()
			return setCount.Set(7)
		})
	}()

	stepDone := make(chan error, 1)
	go func() { stepDone <- rt.Step(stepCtx(t)) }()
	<-started
	if err := <-stepDone; err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := <-result; err != nil {
		t.Errorf("expected the started fn's result, got %v", err)
	}
	if v, _ := count.Peek(); v != 7 {
		t.Errorf("expected 7, got %d", v)
	}
}
