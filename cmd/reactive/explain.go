package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vango-dev/reactive/internal/errors"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe an error code",
		Long: `Describe an error code, or list every code when none is given.

Examples:
  reactive explain
  reactive explain E102`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, code := range errors.GetAllCodes() {
					t, _ := errors.GetTemplate(code)
					fmt.Fprintf(w, "  %s  %-7s %s\n", code, t.Category, t.Message)
				}
				return nil
			}
			if _, ok := errors.GetTemplate(args[0]); !ok {
				return errors.New("E160").WithDetail("Unknown error code " + args[0])
			}
			fmt.Fprint(w, errors.New(args[0]).Format())
			return nil
		},
	}
}
