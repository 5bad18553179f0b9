package reactive

import (
	"errors"
	"testing"
)

func TestCellReadWrite(t *testing.T) {
	_, root := newTestRuntime(t)
	name, setName := NewCell(root, "ada")

	if v, err := name.Read(nil); err != nil || v != "ada" {
		t.Fatalf("expected ada, got %q (%v)", v, err)
	}
	if err := setName.Set("grace"); err != nil {
		t.Fatal(err)
	}
	if v, _ := name.Peek(); v != "grace" {
		t.Errorf("expected grace, got %q", v)
	}
	if err := setName.Update(func(s string) string { return s + "!" }); err != nil {
		t.Fatal(err)
	}
	if v, _ := setName.Reader().Peek(); v != "grace!" {
		t.Errorf("expected grace!, got %q", v)
	}
}

func TestCellEqualWriteSkipsDependents(t *testing.T) {
	_, root := newTestRuntime(t)
	count, setCount := NewCell(root, 1)

	runs := 0
	NewEffect(root, func(tc *Tracker) Cleanup {
		count.Get(tc)
		runs++
		return nil
	})

	setCount.Set(1)
	if runs != 1 {
		t.Errorf("expected 1 run after equal write, got %d", runs)
	}
	setCount.Set(2)
	if runs != 2 {
		t.Errorf("expected 2 runs after change, got %d", runs)
	}
}

func TestCellFuncPolicies(t *testing.T) {
	_, root := newTestRuntime(t)

	items, setItems := NewCellFunc(root, []int{1}, nil)
	runs := 0
	NewEffect(root, func(tc *Tracker) Cleanup {
		items.Get(tc)
		runs++
		return nil
	})
	setItems.Set([]int{1})
	if runs != 2 {
		t.Errorf("nil policy: expected every write to propagate, got %d runs", runs)
	}

	sameLen := func(a, b []int) bool { return len(a) == len(b) }
	lens, setLens := NewCellFunc(root, []int{1}, sameLen)
	lenRuns := 0
	NewEffect(root, func(tc *Tracker) Cleanup {
		lens.Get(tc)
		lenRuns++
		return nil
	})
	setLens.Set([]int{9})
	if lenRuns != 1 {
		t.Errorf("custom policy: expected equal-length write to be elided, got %d runs", lenRuns)
	}
	setLens.Set([]int{1, 2})
	if lenRuns != 2 {
		t.Errorf("custom policy: expected 2 runs, got %d", lenRuns)
	}
}

func TestCellOnDisposedScope(t *testing.T) {
	_, root := newTestRuntime(t)
	s := root.NewChild()
	s.Dispose()

	c, set := NewCell(s, 3)
	if c.Live() || set.Live() {
		t.Error("expected dead handles on disposed scope")
	}
	if _, err := c.Read(nil); !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("expected ErrUseAfterDispose on read, got %v", err)
	}
	if err := set.Set(4); !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("expected ErrUseAfterDispose on write, got %v", err)
	}
}

func TestCellZeroHandle(t *testing.T) {
	var c Cell[int]
	var s Setter[int]
	if _, err := c.Read(nil); !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("expected ErrUseAfterDispose, got %v", err)
	}
	if err := s.Set(1); !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("expected ErrUseAfterDispose, got %v", err)
	}
	if c.DependentCount() != 0 {
		t.Error("zero handle should have no dependents")
	}
}

func TestStaleHandleAfterSlotReuse(t *testing.T) {
	rt, root := newTestRuntime(t)
	s := root.NewChild()
	old, _ := NewCell(s, "old")
	s.Dispose()

	if rt.Stats().Free != 1 {
		t.Fatalf("expected 1 free slot, got %d", rt.Stats().Free)
	}

	fresh, _ := NewCell(root, "fresh")
	if rt.Stats().Free != 0 {
		t.Errorf("expected slot to be reused, %d free", rt.Stats().Free)
	}
	if _, err := old.Read(nil); !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("stale handle resolved after reuse: %v", err)
	}
	if v, _ := fresh.Peek(); v != "fresh" {
		t.Errorf("expected fresh, got %q", v)
	}
}

func TestCellDependentCount(t *testing.T) {
	_, root := newTestRuntime(t)
	a, setA := NewCell(root, 1)
	show, setShow := NewCell(root, true)

	m := NewMemo(root, func(tc *Tracker) int {
		if show.Get(tc) {
			return a.Get(tc)
		}
		return 0
	})
	if a.DependentCount() != 1 {
		t.Errorf("expected 1 dependent, got %d", a.DependentCount())
	}

	setShow.Set(false)
	if a.DependentCount() != 0 {
		t.Errorf("expected edge removed after branch switch, got %d", a.DependentCount())
	}
	setA.Set(5)
	if v, _ := m.Peek(); v != 0 {
		t.Errorf("expected 0, got %d", v)
	}
}

func TestCellDisposeSingle(t *testing.T) {
	_, root := newTestRuntime(t)
	a, setA := NewCell(root, 1)
	m := NewMemo(root, func(tc *Tracker) int { return a.Get(tc) + 1 })

	a.Dispose()
	if a.Live() {
		t.Fatal("expected cell to be dead")
	}
	if m.SourceCount() != 0 {
		t.Errorf("expected memo edge to be removed, got %d sources", m.SourceCount())
	}
	if err := setA.Set(2); !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("expected ErrUseAfterDispose, got %v", err)
	}
}
