package sheet

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"testing"

	"github.com/vango-dev/reactive/pkg/reactive"
)

func newTestSheet(t *testing.T) *Sheet {
	t.Helper()
	rt := reactive.NewRuntime(reactive.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	root := rt.NewScope()
	t.Cleanup(root.Dispose)
	return New(root)
}

func mustSet(t *testing.T, s *Sheet, name, raw string) {
	t.Helper()
	if err := s.Set(name, raw); err != nil {
		t.Fatalf("Set(%s, %q): %v", name, raw, err)
	}
}

func valueOf(t *testing.T, s *Sheet, name string) Value {
	t.Helper()
	v, err := s.Get(name)
	if err != nil {
		t.Fatalf("Get(%s): %v", name, err)
	}
	return v
}

func TestLiterals(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "n", " 42 ")
	mustSet(t, s, "t", "hello")
	mustSet(t, s, "e", "")

	if v := valueOf(t, s, "n"); v != Number(42) {
		t.Errorf("expected 42, got %+v", v)
	}
	if v := valueOf(t, s, "t"); v != Text("hello") {
		t.Errorf("expected hello, got %+v", v)
	}
	if v := valueOf(t, s, "e"); v.Kind != KindEmpty {
		t.Errorf("expected empty, got %+v", v)
	}
}

func TestNonFiniteLiteralsAreText(t *testing.T) {
	s := newTestSheet(t)
	for _, raw := range []string{"NaN", "nan", "Inf", "-Infinity", "+inf"} {
		mustSet(t, s, "x", raw)
		if v := valueOf(t, s, "x"); v != Text(raw) {
			t.Errorf("%q: expected text, got %+v", raw, v)
		}
	}
}

func TestNaNResultSettles(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "x", "=1e308*10 - 1e308*10")
	mustSet(t, s, "y", "=x + 1")
	if v := valueOf(t, s, "y"); v.Kind != KindNumber || !math.IsNaN(v.Num) {
		t.Fatalf("expected NaN, got %+v", v)
	}

	var updates []string
	stop := s.Watch(func(name string, v Value) {
		updates = append(updates, name)
	})
	defer stop()
	updates = nil

	mustSet(t, s, "x", "=1e308*100 - 1e308*100")
	if len(updates) != 0 {
		t.Errorf("expected NaN to NaN to be quiet, got updates for %v", updates)
	}
}

func TestFormulasPropagate(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "price", "10")
	mustSet(t, s, "qty", "3")
	mustSet(t, s, "total", "=price * qty")
	mustSet(t, s, "taxed", "=total + total / 10")

	if v := valueOf(t, s, "taxed"); v != Number(33) {
		t.Fatalf("expected 33, got %v", v)
	}
	mustSet(t, s, "qty", "5")
	if v := valueOf(t, s, "taxed"); v != Number(55) {
		t.Errorf("expected 55, got %v", v)
	}
}

func TestForwardReferenceResolves(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "A1", "=B1 + 1")
	if v := valueOf(t, s, "A1"); v.Code != CodeRef {
		t.Fatalf("expected #REF before B1 exists, got %v", v)
	}
	mustSet(t, s, "B1", "41")
	if v := valueOf(t, s, "A1"); v != Number(42) {
		t.Errorf("expected 42 once B1 exists, got %v", v)
	}
}

func TestRemoveTurnsReferencesIntoRef(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "a", "1")
	mustSet(t, s, "b", "=a * 2")

	if err := s.Remove("a"); err != nil {
		t.Fatal(err)
	}
	if v := valueOf(t, s, "b"); v.Code != CodeRef {
		t.Errorf("expected #REF, got %v", v)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Remove("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestCycleIsReportedAndRecovers(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "A", "=B + 1")

	err := s.Set("B", "=A + 1")
	if !errors.Is(err, reactive.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
	if v := valueOf(t, s, "A"); v.Code != CodeCycle {
		t.Errorf("expected A to be #CYCLE, got %v", v)
	}

	mustSet(t, s, "B", "5")
	if v := valueOf(t, s, "A"); v != Number(6) {
		t.Errorf("expected A=6 after breaking the cycle, got %v", v)
	}
}

func TestSelfReference(t *testing.T) {
	s := newTestSheet(t)
	err := s.Set("x", "=x + 1")
	if !errors.Is(err, reactive.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
	if v := valueOf(t, s, "x"); v.Code != CodeCycle {
		t.Errorf("expected #CYCLE, got %v", v)
	}
	mustSet(t, s, "x", "1")
	if v := valueOf(t, s, "x"); v != Number(1) {
		t.Errorf("expected 1, got %v", v)
	}
}

func TestIfReadsOnlyTakenBranch(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "flag", "1")
	mustSet(t, s, "yes", "10")
	mustSet(t, s, "no", "20")
	mustSet(t, s, "pick", "=IF(flag, yes, no)")

	var updates []string
	stop := s.Watch(func(name string, v Value) {
		updates = append(updates, name+"="+v.String())
	})
	defer stop()
	updates = nil

	mustSet(t, s, "no", "21")
	if !slices.Equal(updates, []string{"no=21"}) {
		t.Errorf("untaken branch re-evaluated pick: %v", updates)
	}

	mustSet(t, s, "flag", "0")
	if v := valueOf(t, s, "pick"); v != Number(21) {
		t.Errorf("expected 21, got %v", v)
	}
}

func TestErrorsPropagateAsValues(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "zero", "0")
	mustSet(t, s, "bad", "=1 / zero")
	mustSet(t, s, "uses", "=bad + 1")
	mustSet(t, s, "broken", "=1 +")
	mustSet(t, s, "word", "abc")
	mustSet(t, s, "math", "=word * 2")

	for _, name := range []string{"bad", "uses", "broken", "math"} {
		if v := valueOf(t, s, name); v.Code != CodeErr {
			t.Errorf("%s: expected #ERR, got %+v", name, v)
		}
	}
	mustSet(t, s, "zero", "4")
	if v := valueOf(t, s, "uses"); v != Number(1.25) {
		t.Errorf("expected 1.25, got %v", v)
	}
}

func TestWatchReportsChanges(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "a", "1")

	var updates []string
	stop := s.Watch(func(name string, v Value) {
		updates = append(updates, name+"="+v.String())
	})

	mustSet(t, s, "b", "=a + 1")
	mustSet(t, s, "a", "2")
	s.Remove("b")
	stop()
	mustSet(t, s, "a", "3")

	want := []string{"a=1", "b=2", "a=2", "b=3", "b="}
	if !slices.Equal(updates, want) {
		t.Errorf("expected %v, got %v", want, updates)
	}
}

func TestSetManyIsOneBatch(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "a", "1")
	mustSet(t, s, "b", "2")
	mustSet(t, s, "sum", "=a + b")

	sums := 0
	stop := s.Watch(func(name string, v Value) {
		if name == "sum" {
			sums++
		}
	})
	defer stop()
	sums = 0

	if err := s.SetMany(map[string]string{"a": "10", "b": "20"}); err != nil {
		t.Fatal(err)
	}
	if sums != 1 {
		t.Errorf("expected sum to update once, got %d", sums)
	}
	if v := valueOf(t, s, "sum"); v != Number(30) {
		t.Errorf("expected 30, got %v", v)
	}
}

func TestSetManyNewEntrySeesBatchedWrites(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "A", "1")
	mustSet(t, s, "C", "=A")

	var seen []string
	stop := s.Watch(func(name string, v Value) {
		if name == "B" {
			seen = append(seen, v.String())
		}
	})
	defer stop()

	if err := s.SetMany(map[string]string{"A": "5", "B": "=C*2"}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(seen, []string{"10"}) {
		t.Errorf("expected B to be reported once as 10, got %v", seen)
	}
}

func TestRestoreNewEntrySeesBatchedWrites(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "A", "1")
	mustSet(t, s, "C", "=A + 1")

	var seen []string
	stop := s.Watch(func(name string, v Value) {
		if name == "D" {
			seen = append(seen, v.String())
		}
	})
	defer stop()

	if err := s.Restore(map[string]string{"A": "7", "C": "=A + 1", "D": "=C * 10"}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(seen, []string{"80"}) {
		t.Errorf("expected D to be reported once as 80, got %v", seen)
	}
}

func TestInvalidNames(t *testing.T) {
	s := newTestSheet(t)
	for _, name := range []string{"", "1abc", "a-b", "SUM", "if"} {
		if err := s.Set(name, "1"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Set(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
	if err := s.SetMany(map[string]string{"ok": "1", "not ok": "2"}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName from SetMany, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected no entries, got %v", s.Names())
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := newTestSheet(t)
	mustSet(t, s, "a", "1")
	mustSet(t, s, "b", "=a + 1")
	mustSet(t, s, "gone", "x")

	snap := s.Snapshot()
	delete(snap, "gone")
	snap["a"] = "5"

	other := newTestSheet(t)
	mustSet(t, other, "stale", "1")
	if err := other.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if got := other.Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
	if v := valueOf(t, other, "b"); v != Number(6) {
		t.Errorf("expected 6, got %v", v)
	}
	if raw, _ := other.Raw("b"); raw != "=a + 1" {
		t.Errorf("expected raw formula, got %q", raw)
	}
}
