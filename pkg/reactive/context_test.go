package reactive

import "testing"

type theme string

func TestProvideUse(t *testing.T) {
	_, root := newTestRuntime(t)
	Provide(root, theme("dark"))

	child := root.NewChild().NewChild()
	if v, ok := Use[theme](child); !ok || v != "dark" {
		t.Errorf("expected dark from ancestor, got %q (%v)", v, ok)
	}

	// Shadowing only affects the subtree.
	mid := root.NewChild()
	Provide(mid, theme("light"))
	if v := MustUse[theme](mid.NewChild()); v != "light" {
		t.Errorf("expected light, got %q", v)
	}
	if v := MustUse[theme](root); v != "dark" {
		t.Errorf("expected dark at root, got %q", v)
	}
}

func TestUseMissing(t *testing.T) {
	_, root := newTestRuntime(t)
	if _, ok := Use[int](root); ok {
		t.Error("expected missing value")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected MustUse to panic")
		}
	}()
	MustUse[int](root)
}

func TestProvideCellHandle(t *testing.T) {
	_, root := newTestRuntime(t)
	count, setCount := NewCell(root, 1)
	Provide(root, count)

	child := root.NewChild()
	shared := MustUse[Cell[int]](child)
	doubled := NewMemo(child, func(tc *Tracker) int { return shared.Get(tc) * 2 })

	setCount.Set(4)
	if v, _ := doubled.Peek(); v != 8 {
		t.Errorf("expected 8, got %d", v)
	}
}

func TestValueIgnoredOnDisposedScope(t *testing.T) {
	_, root := newTestRuntime(t)
	s := root.NewChild()
	s.Dispose()
	s.SetValue("k", 1)
	if _, ok := s.Value("k"); ok {
		t.Error("expected SetValue on disposed scope to be ignored")
	}
}
