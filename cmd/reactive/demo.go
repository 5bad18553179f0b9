package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/sheet"
)

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through the engine step by step",
		Long: `Run a short scripted tour of the engine: cells, memos and effects,
batching, keyed lists, cycle detection and async resources.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type todo struct {
	ID    int
	Title string
}

func runDemo(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := reactive.NewRuntime(reactive.WithLogger(logger))
	root := rt.NewScope()
	defer root.Dispose()

	step := func(title string) {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[36m── %s\033[0m\n", title)
	}

	step("Cells, memos and effects")
	count, setCount := reactive.NewCell(root, 1, reactive.WithLabel("count"))
	doubled := reactive.NewMemo(root, func(tc *reactive.Tracker) int {
		return count.Get(tc) * 2
	}, reactive.WithLabel("doubled"))
	reactive.NewEffect(root, func(tc *reactive.Tracker) reactive.Cleanup {
		fmt.Fprintf(w, "  effect: count=%d doubled=%d\n", count.Get(tc), doubled.Get(tc))
		return nil
	}, reactive.WithLabel("printer"))
	if err := setCount.Set(2); err != nil {
		return err
	}
	fmt.Fprintln(w, "  setting the same value again does nothing:")
	if err := setCount.Set(2); err != nil {
		return err
	}

	step("Batching")
	err := rt.Batch(func() error {
		for i := 3; i <= 5; i++ {
			if err := setCount.Set(i); err != nil {
				return err
			}
		}
		fmt.Fprintln(w, "  three writes inside one batch, effect runs once after it")
		return nil
	})
	if err != nil {
		return err
	}

	step("Keyed lists")
	list := reactive.NewKeyedList(root,
		func(t todo) int { return t.ID },
		reactive.Equal[todo](),
		func(row *reactive.Row[int, todo]) reactive.Memo[string] {
			return reactive.NewMemo(row.Scope, func(tc *reactive.Tracker) string {
				return fmt.Sprintf("%d. %s", row.Index.Get(tc)+1, row.Item.Get(tc).Title)
			})
		},
	)
	reconcile := func(items ...todo) error {
		diff, err := list.Reconcile(items)
		if err != nil {
			return err
		}
		var lines []string
		for _, m := range list.Outputs() {
			v, _ := m.Peek()
			lines = append(lines, v)
		}
		fmt.Fprintf(w, "  added=%d removed=%d reused=%d moved=%d  [%s]\n",
			diff.Added, diff.Removed, diff.Reused, diff.Moved, strings.Join(lines, ", "))
		return nil
	}
	if err := reconcile(todo{1, "write"}, todo{2, "test"}); err != nil {
		return err
	}
	if err := reconcile(todo{3, "plan"}, todo{1, "write"}, todo{2, "test"}); err != nil {
		return err
	}
	if err := reconcile(todo{3, "plan"}, todo{2, "ship"}); err != nil {
		return err
	}
	if _, err := list.Reconcile([]todo{{4, "a"}, {4, "b"}}); err != nil {
		fmt.Fprintf(w, "  duplicate keys are rejected: %s\n", reactive.CodeOf(err))
	}

	step("Cycle detection")
	sh := sheet.New(root.NewChild())
	if err := sh.SetMany(map[string]string{"A": "=B+1", "B": "=1"}); err != nil {
		return err
	}
	printEntries(w, sh)
	err = sh.Set("B", "=A+1")
	fmt.Fprintf(w, "  B = A+1 fails with %s\n", reactive.CodeOf(err))
	printEntries(w, sh)
	if err := sh.Set("B", "=10"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  B = 10 recovers:")
	printEntries(w, sh)

	step("Async resources")
	res := reactive.NewResource(root, func(ctx context.Context) (string, error) {
		return "loaded", nil
	}, reactive.WithLabel("greeting"))
	st, _ := res.Cell().Peek()
	fmt.Fprintf(w, "  status before the result arrives: %s\n", st.Status)
	if err := stepWithTimeout(ctx, rt); err != nil {
		return err
	}
	st, _ = res.Cell().Peek()
	fmt.Fprintf(w, "  status after one runtime step: %s (%q)\n", st.Status, st.Value)

	child := root.NewChild()
	late := reactive.NewResource(child, func(ctx context.Context) (string, error) {
		return "too late", nil
	})
	child.Dispose()
	if err := stepWithTimeout(ctx, rt); err != nil {
		return err
	}
	_, err = late.Cell().Peek()
	fmt.Fprintf(w, "  a result for a disposed scope is dropped; reading it gives %s\n", reactive.CodeOf(err))

	fmt.Fprintln(w)
	success(w, "Demo finished")
	return nil
}

// stepWithTimeout waits for one dispatched item.
func stepWithTimeout(ctx context.Context, rt *reactive.Runtime) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return rt.Step(ctx)
}

func printEntries(w io.Writer, sh *sheet.Sheet) {
	for _, name := range sh.Names() {
		v, _ := sh.Get(name)
		raw, _ := sh.Raw(name)
		fmt.Fprintf(w, "    %-2s %-6s → %s\n", name, raw, v)
	}
}
