package reactive

import "fmt"

// Row is one keyed entry of a KeyedList. A row keeps its scope, cells and
// computations for as long as its key stays in the list.
type Row[K comparable, V any] struct {
	Key K

	// Scope owns everything created by render for this row. It is disposed
	// when the key leaves the list.
	Scope *Scope

	// Item holds the row's current item; Index its position in the list.
	Item  Cell[V]
	Index Cell[int]

	setItem  Setter[V]
	setIndex Setter[int]
}

// ListDiff reports what a Reconcile call did.
type ListDiff struct {
	Added   int
	Removed int
	Reused  int

	// Moved counts reused rows whose index changed.
	Moved int
}

// KeyedList maintains one Row per distinct key of a sequence of items.
//
// Example:
//
//	list := reactive.NewKeyedList(root,
//	    func(t Todo) int { return t.ID },
//	    reactive.Equal[Todo](),
//	    func(row *reactive.Row[int, Todo]) reactive.Memo[string] {
//	        return reactive.NewMemo(row.Scope, func(tc *reactive.Tracker) string {
//	            return row.Item.Get(tc).Title
//	        })
//	    },
//	)
//	diff, err := list.Reconcile(todos)
type KeyedList[K comparable, V any, R any] struct {
	scope  *Scope
	key    func(V) K
	eq     EqualFunc[V]
	render func(*Row[K, V]) R

	rows    []*Row[K, V]
	outputs []R
	byKey   map[K]int
}

// NewKeyedList creates an empty list owned by parent. render runs once per
// added row; eq decides whether a reused row's Item cell propagates.
func NewKeyedList[K comparable, V any, R any](parent *Scope, key func(V) K, eq EqualFunc[V], render func(*Row[K, V]) R) *KeyedList[K, V, R] {
	return &KeyedList[K, V, R]{
		scope:  parent,
		key:    key,
		eq:     eq,
		render: render,
		byKey:  make(map[K]int),
	}
}

// Reconcile matches items against the current rows by key, in one batch.
// Reused rows get their Item and Index cells updated, rows whose key is
// gone are disposed, and new keys get a fresh child scope and a render. A
// row whose scope was disposed from outside is rendered again.
// A duplicate key fails the whole call before anything changes.
func (l *KeyedList[K, V, R]) Reconcile(items []V) (ListDiff, error) {
	var diff ListDiff
	if l.scope == nil || l.scope.Disposed() {
		return diff, newError("reconcile", nil, ErrUseAfterDispose)
	}

	keys := make([]K, len(items))
	seen := make(map[K]int, len(items))
	for i, item := range items {
		k := l.key(item)
		if j, dup := seen[k]; dup {
			e := newError("reconcile", nil, ErrDuplicateKey)
			e.Detail = fmt.Sprintf("key %v at positions %d and %d", k, j, i)
			return diff, e
		}
		seen[k] = i
		keys[i] = k
	}

	err := l.scope.rt.Batch(func() error {
		l.dropRows(seen, &diff)

		rows := make([]*Row[K, V], len(items))
		outputs := make([]R, len(items))
		byKey := make(map[K]int, len(items))
		var added []*Row[K, V]
		for i, item := range items {
			k := keys[i]
			if j, ok := l.byKey[k]; ok {
				row := l.rows[j]
				if err := row.setItem.Set(item); err != nil {
					return l.abort(added, err)
				}
				if old, _ := row.Index.Peek(); old != i {
					if err := row.setIndex.Set(i); err != nil {
						return l.abort(added, err)
					}
					diff.Moved++
				}
				diff.Reused++
				rows[i] = row
				outputs[i] = l.outputs[j]
			} else {
				row := l.newRow(k, item, i)
				added = append(added, row)
				rows[i] = row
				outputs[i] = l.render(row)
				diff.Added++
			}
			byKey[k] = i
		}

		l.rows = rows
		l.outputs = outputs
		l.byKey = byKey
		return nil
	})
	return diff, err
}

// dropRows disposes rows whose key is not in keep, and rows whose scope was
// disposed from outside so their key renders again. The remaining rows are
// compacted in order.
func (l *KeyedList[K, V, R]) dropRows(keep map[K]int, diff *ListDiff) {
	rows := make([]*Row[K, V], 0, len(l.rows))
	outputs := make([]R, 0, len(l.rows))
	byKey := make(map[K]int, len(l.rows))
	for i, row := range l.rows {
		if _, ok := keep[row.Key]; ok && row.setItem.Live() {
			byKey[row.Key] = len(rows)
			rows = append(rows, row)
			outputs = append(outputs, l.outputs[i])
			continue
		}
		row.Scope.Dispose()
		diff.Removed++
	}
	l.rows = rows
	l.outputs = outputs
	l.byKey = byKey
}

// abort disposes the rows added by a failed Reconcile. The list keeps the
// rows that survived dropRows.
func (l *KeyedList[K, V, R]) abort(added []*Row[K, V], err error) error {
	for _, row := range added {
		row.Scope.Dispose()
	}
	return err
}

func (l *KeyedList[K, V, R]) newRow(k K, item V, index int) *Row[K, V] {
	s := l.scope.NewChild()
	row := &Row[K, V]{Key: k, Scope: s}
	row.Item, row.setItem = NewCellFunc(s, item, l.eq)
	row.Index, row.setIndex = NewCell(s, index)
	return row
}

// Len returns the number of rows.
func (l *KeyedList[K, V, R]) Len() int {
	return len(l.rows)
}

// Rows returns the rows in list order.
func (l *KeyedList[K, V, R]) Rows() []*Row[K, V] {
	out := make([]*Row[K, V], len(l.rows))
	copy(out, l.rows)
	return out
}

// Outputs returns the render results in list order.
func (l *KeyedList[K, V, R]) Outputs() []R {
	out := make([]R, len(l.outputs))
	copy(out, l.outputs)
	return out
}

// Row returns the row for key k.
func (l *KeyedList[K, V, R]) Row(k K) (*Row[K, V], bool) {
	i, ok := l.byKey[k]
	if !ok {
		return nil, false
	}
	return l.rows[i], true
}
