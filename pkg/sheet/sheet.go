// Package sheet implements a reactive spreadsheet on top of the reactive
// engine. Every entry owns a raw text cell and a memo that evaluates it, so
// a change to one entry re-evaluates exactly the entries that read it.
//
// All methods must be called on the runtime's goroutine.
package sheet

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vango-dev/reactive/pkg/reactive"
)

var (
	// ErrNotFound is returned for operations on names that have no entry.
	ErrNotFound = errors.New("sheet: no such entry")

	// ErrInvalidName is returned when a name cannot be referenced from a
	// formula.
	ErrInvalidName = errors.New("sheet: invalid entry name")
)

// Sheet is a set of named, reactively evaluated entries.
type Sheet struct {
	scope  *reactive.Scope
	rt     *reactive.Runtime
	logger *slog.Logger

	entries map[string]*entry

	// version changes whenever an entry is added or removed.
	version    reactive.Cell[uint64]
	setVersion reactive.Setter[uint64]

	watchers []watcher
	nextID   int
}

type watcher struct {
	id int
	fn func(name string, v Value)
}

type entry struct {
	name  string
	scope *reactive.Scope

	raw    reactive.Cell[string]
	setRaw reactive.Setter[string]
	value  reactive.Memo[Value]

	// Parse cache for the formula last evaluated.
	parsedRaw string
	parsed    expr
	parseErr  error
}

// New creates an empty sheet owned by scope.
func New(scope *reactive.Scope) *Sheet {
	s := &Sheet{
		scope:   scope,
		rt:      scope.Runtime(),
		logger:  scope.Runtime().Logger(),
		entries: make(map[string]*entry),
	}
	s.version, s.setVersion = reactive.NewCell(scope, uint64(0), reactive.WithLabel("sheet.names"))
	return s
}

// Set assigns raw text to name, creating the entry if needed. The returned
// error reports engine failures of the resulting propagation, such as a
// circular reference.
func (s *Sheet) Set(name, raw string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	err := s.rt.Batch(func() error {
		return s.assign(name, raw)
	})
	if err != nil {
		return fmt.Errorf("sheet: set %s: %w", name, err)
	}
	return nil
}

// SetMany assigns several entries in one batch. Names are validated before
// anything changes.
func (s *Sheet) SetMany(values map[string]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		if !ValidName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	err := s.rt.Batch(func() error {
		for _, name := range names {
			if err := s.assign(name, values[name]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sheet: set %d entries: %w", len(names), err)
	}
	return nil
}

// assign must run inside a batch.
func (s *Sheet) assign(name, raw string) error {
	if e, ok := s.entries[name]; ok {
		return e.setRaw.Set(raw)
	}
	s.add(name, raw)
	return s.setVersion.Update(func(v uint64) uint64 { return v + 1 })
}

func (s *Sheet) add(name, raw string) {
	e := &entry{name: name, scope: s.scope.NewChild()}

	e.raw, e.setRaw = reactive.NewCell(e.scope, raw, reactive.WithLabel(name+".raw"))
	e.value = reactive.NewMemoFunc(e.scope, func(tc *reactive.Tracker) Value {
		return s.evaluate(e, tc)
	}, Value.Equal, reactive.WithLabel(name))
	// Formulas evaluated before this point see name as unknown; the version
	// bump in assign re-evaluates them.
	s.entries[name] = e
	reactive.NewEffect(e.scope, func(tc *reactive.Tracker) reactive.Cleanup {
		s.notify(name, e.value.Get(tc))
		return nil
	}, reactive.WithLabel(name+".watch"))

	s.logger.Debug("sheet entry created", "name", name)
}

// evaluate computes an entry's value from its raw text.
func (s *Sheet) evaluate(e *entry, tc *reactive.Tracker) Value {
	raw := e.raw.Get(tc)
	body, isFormula := formulaBody(raw)
	if !isFormula {
		return literal(raw)
	}

	if e.parsedRaw != raw || e.parsed == nil && e.parseErr == nil {
		e.parsedRaw = raw
		e.parsed, e.parseErr = parse(body)
	}
	if e.parseErr != nil {
		return errorValue(CodeErr, e.parseErr.Error())
	}
	ev := &evaluator{sheet: s, tc: tc}
	return ev.eval(e.parsed)
}

func (s *Sheet) notify(name string, v Value) {
	for _, w := range s.watchers {
		w.fn(name, v)
	}
}

// Get returns the current value of name.
func (s *Sheet) Get(name string) (Value, error) {
	e, ok := s.entries[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e.value.Peek()
}

// Raw returns the raw text of name.
func (s *Sheet) Raw(name string) (string, error) {
	e, ok := s.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e.raw.Peek()
}

// Remove deletes name. Formulas that referenced it evaluate to #REF.
func (s *Sheet) Remove(name string) error {
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	err := s.rt.Batch(func() error {
		delete(s.entries, name)
		e.scope.Dispose()
		s.notify(name, Value{})
		return s.setVersion.Update(func(v uint64) uint64 { return v + 1 })
	})
	if err != nil {
		return fmt.Errorf("sheet: remove %s: %w", name, err)
	}
	s.logger.Debug("sheet entry removed", "name", name)
	return nil
}

// Names returns the entry names in sorted order.
func (s *Sheet) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (s *Sheet) Len() int {
	return len(s.entries)
}

// Snapshot returns the raw text of every entry.
func (s *Sheet) Snapshot() map[string]string {
	out := make(map[string]string, len(s.entries))
	for name, e := range s.entries {
		raw, _ := e.raw.Peek()
		out[name] = raw
	}
	return out
}

// Restore replaces the sheet's contents with snap in one batch. Entries not
// in snap are removed.
func (s *Sheet) Restore(snap map[string]string) error {
	names := make([]string, 0, len(snap))
	for name := range snap {
		if !ValidName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	err := s.rt.Batch(func() error {
		removed := false
		for name, e := range s.entries {
			if _, keep := snap[name]; keep {
				continue
			}
			delete(s.entries, name)
			e.scope.Dispose()
			s.notify(name, Value{})
			removed = true
		}
		if removed {
			if err := s.setVersion.Update(func(v uint64) uint64 { return v + 1 }); err != nil {
				return err
			}
		}
		for _, name := range names {
			if err := s.assign(name, snap[name]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sheet: restore: %w", err)
	}
	return nil
}

// Watch calls fn with an entry's name and value when the entry is created,
// whenever its value changes, and with the empty Value when it is removed.
// Existing entries are reported immediately. The returned function stops
// the watch.
func (s *Sheet) Watch(fn func(name string, v Value)) (stop func()) {
	s.nextID++
	id := s.nextID
	s.watchers = append(s.watchers, watcher{id: id, fn: fn})

	for _, name := range s.Names() {
		v, err := s.entries[name].value.Peek()
		if err != nil {
			continue
		}
		fn(name, v)
	}

	return func() {
		for i, w := range s.watchers {
			if w.id == id {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				return
			}
		}
	}
}
