package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/sheet"
)

func evalCmd() *cobra.Command {
	var (
		file    string
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "eval [name=raw ...]",
		Short: "Evaluate a sheet given on the command line",
		Long: `Evaluate a set of entries and print every value.

Each argument assigns raw text to a name. Text starting with "=" is a
formula; formulas may reference other entries, use + - * /, comparisons
and the functions SUM, MIN, MAX and IF. Assignments are applied in one
batch, so order does not matter.

Examples:
  reactive eval A=1 B=2 'Total==A+B'
  reactive eval --file budget.txt
  reactive eval --json Price=9.5 Qty=3 'Cost==Price*Qty'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			assignments, err := parseAssignments(args)
			if err != nil {
				return err
			}
			if file != "" {
				fromFile, err := readAssignments(file)
				if err != nil {
					return err
				}
				for name, raw := range assignments {
					fromFile[name] = raw
				}
				assignments = fromFile
			}
			if len(assignments) == 0 {
				return errors.New("E160").
					WithDetail("Nothing to evaluate").
					WithSuggestion("Pass assignments such as A=1 'B==A+1'")
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return runEval(assignments, asJSON, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read name=raw lines from a file (# starts a comment)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print values as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine activity")

	return cmd
}

// parseAssignments splits name=raw arguments at the first "=".
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.New("E123").WithDetail(fmt.Sprintf("%q is not of the form name=raw", arg))
		}
		if !sheet.ValidName(name) {
			return nil, errors.New("E120").WithDetail(fmt.Sprintf("%q cannot be used as an entry name", name))
		}
		out[name] = raw
	}
	return out, nil
}

func readAssignments(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("E160").WithDetail("Cannot read " + path).Wrap(err)
	}
	defer f.Close()

	var args []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args = append(args, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New("E160").WithDetail("Cannot read " + path).Wrap(err)
	}
	return parseAssignments(args)
}

// evalResult is one row of eval output.
type evalResult struct {
	Name  string `json:"name"`
	Raw   string `json:"raw"`
	Value string `json:"value"`
	Kind  string `json:"kind"`
	Error string `json:"error,omitempty"`
}

func runEval(assignments map[string]string, asJSON bool, stdout, stderr io.Writer, logger *slog.Logger) error {
	for name, raw := range assignments {
		if err := sheet.Check(raw); err != nil {
			fmt.Fprintln(stderr, errors.FromParseError(name, raw, err).FormatCompact())
		}
	}

	rt := reactive.NewRuntime(reactive.WithLogger(logger))
	root := rt.NewScope()
	defer root.Dispose()

	sh := sheet.New(root)
	setErr := sh.SetMany(assignments)

	names := sh.Names()
	results := make([]evalResult, 0, len(names))
	for _, name := range names {
		raw, _ := sh.Raw(name)
		v, _ := sh.Get(name)
		r := evalResult{Name: name, Raw: raw, Value: v.String(), Kind: v.Kind.String()}
		if v.IsError() {
			r.Error = v.Detail
		}
		results = append(results, r)
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tVALUE\tRAW")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Value, r.Raw)
		}
		tw.Flush()
	}

	if setErr != nil {
		return errors.FromError(setErr, "E100")
	}
	return nil
}
