package reactive

import (
	"errors"
	"slices"
	"testing"
)

func TestDiamondIsGlitchFree(t *testing.T) {
	_, root := newTestRuntime(t)
	a, setA := NewCell(root, 1)
	b := NewMemo(root, func(tc *Tracker) int { return a.Get(tc) + 1 })
	c := NewMemo(root, func(tc *Tracker) int { return a.Get(tc) * 2 })

	dRuns := 0
	d := NewMemo(root, func(tc *Tracker) int {
		dRuns++
		return b.Get(tc) + c.Get(tc)
	})

	var seen []int
	NewEffect(root, func(tc *Tracker) Cleanup {
		seen = append(seen, d.Get(tc))
		return nil
	})

	setA.Set(2)
	setA.Set(10)

	// Every observed value is consistent: a+1 + a*2.
	want := []int{4, 7, 31}
	if !slices.Equal(seen, want) {
		t.Errorf("expected %v, got %v", want, seen)
	}
	if dRuns != 3 {
		t.Errorf("expected d to run once per write, got %d runs", dRuns)
	}
}

func TestPendingMemoIsSettledBeforeRead(t *testing.T) {
	_, root := newTestRuntime(t)
	count, setCount := NewCell(root, 0)

	// early is created before late but reads it, so creation order alone
	// would evaluate it first.
	var late Memo[int]
	early := NewMemo(root, func(tc *Tracker) int {
		n := count.Get(tc)
		if !late.Live() {
			return -1
		}
		return late.Get(tc)*10 + n
	})
	late = NewMemo(root, func(tc *Tracker) int { return count.Get(tc) * 2 })

	setCount.Set(1)
	if v, _ := early.Peek(); v != 21 {
		t.Errorf("expected 21, got %d", v)
	}
	setCount.Set(2)
	if v, _ := early.Peek(); v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestDynamicDependencies(t *testing.T) {
	_, root := newTestRuntime(t)
	useX, setUseX := NewCell(root, true)
	x, setX := NewCell(root, "x1")
	y, setY := NewCell(root, "y1")

	runs := 0
	pick := NewMemo(root, func(tc *Tracker) string {
		runs++
		if useX.Get(tc) {
			return x.Get(tc)
		}
		return y.Get(tc)
	})

	setY.Set("y2")
	if runs != 1 {
		t.Errorf("untaken branch triggered a re-run: %d runs", runs)
	}

	setUseX.Set(false)
	if v, _ := pick.Peek(); v != "y2" {
		t.Errorf("expected y2, got %q", v)
	}
	if x.DependentCount() != 0 || y.DependentCount() != 1 {
		t.Errorf("expected edges to follow the branch, x=%d y=%d", x.DependentCount(), y.DependentCount())
	}

	runs = 0
	setX.Set("x2")
	if runs != 0 {
		t.Errorf("stale dependency on x triggered a re-run: %d runs", runs)
	}
	setY.Set("y3")
	if runs != 1 {
		t.Errorf("expected 1 run, got %d", runs)
	}
}

func TestCycleDetectionAndRecovery(t *testing.T) {
	_, root := newTestRuntime(t)
	linked, setLinked := NewCell(root, false)

	var b Memo[int]
	a := NewMemo(root, func(tc *Tracker) int {
		if linked.Get(tc) {
			return b.Get(tc) + 1
		}
		return 0
	}, WithLabel("a"))
	b = NewMemo(root, func(tc *Tracker) int { return a.Get(tc) + 1 }, WithLabel("b"))

	err := setLinked.Set(true)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
	if CodeOf(err) != CodeCyclicDependency {
		t.Errorf("expected code %s, got %q", CodeCyclicDependency, CodeOf(err))
	}
	if !errors.Is(b.Err(), ErrCyclicDependency) {
		t.Errorf("expected b to record the cycle, got %v", b.Err())
	}

	// Removing the cyclic read restores a working graph.
	if err := setLinked.Set(false); err != nil {
		t.Fatalf("expected graph to recover, got %v", err)
	}
	if v, _ := a.Peek(); v != 0 {
		t.Errorf("expected a=0, got %d", v)
	}
	if v, _ := b.Peek(); v != 1 {
		t.Errorf("expected b=1, got %d", v)
	}
	if a.Err() != nil || b.Err() != nil {
		t.Errorf("expected errors to clear, got a=%v b=%v", a.Err(), b.Err())
	}
}

func TestRunawayFeedbackIsReportedAsCycle(t *testing.T) {
	obs := &recordingObserver{}
	_, root := newTestRuntime(t, WithObserver(obs), WithMaxFlushRounds(5))
	enabled, setEnabled := NewCell(root, false)
	n, setN := NewCell(root, 0)

	NewEffect(root, func(tc *Tracker) Cleanup {
		if enabled.Get(tc) {
			setN.Set(n.Get(tc) + 1)
		}
		return nil
	})

	err := setEnabled.Set(true)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
	stats, _ := obs.lastFlush()
	if stats.Rounds != 5 {
		t.Errorf("expected flush to stop after 5 rounds, got %d", stats.Rounds)
	}
	if v, _ := n.Peek(); v != 5 {
		t.Errorf("expected 5 writes before the cutoff, got %d", v)
	}
}

func TestFlushStatsCountSkips(t *testing.T) {
	obs := &recordingObserver{}
	_, root := newTestRuntime(t, WithObserver(obs))
	count, setCount := NewCell(root, 0)
	sign := NewMemo(root, func(tc *Tracker) bool { return count.Get(tc) >= 0 })
	NewEffect(root, func(tc *Tracker) Cleanup {
		sign.Get(tc)
		return nil
	})

	setCount.Set(1)
	stats, _ := obs.lastFlush()
	if stats.Visited != 2 || stats.MemoRuns != 1 || stats.EffectSkips != 1 || stats.EffectRuns != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
