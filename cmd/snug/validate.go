package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	snug "github.com/rickhohler/snug"
	"github.com/rickhohler/snug/validator"
)

func newValidateCmd() *cobra.Command {
	var (
		strict bool
		quick  bool
	)

	cmd := &cobra.Command{
		Use:   "validate ARCHIVE",
		Short: "validate a snug archive against its content-addressable store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strict && quick {
				return fmt.Errorf("%w: --strict and --quick are mutually exclusive", errBadArgs)
			}
			level := validator.Default
			switch {
			case strict:
				level = validator.Strict
			case quick:
				level = validator.Quick
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("%w: reading %s: %v", errBadArgs, args[0], err)
			}

			store, err := openStore()
			if err != nil {
				return fmt.Errorf("validate: open store: %w", err)
			}

			m, err := snug.ParseManifest(data)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			v := validator.New(store)
			report, err := v.ValidateManifest(cmd.Context(), m, level)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			printReport(cmd, report)
			if !report.OK {
				return errValidationFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "re-hash every chunk's bytes against its digest")
	cmd.Flags().BoolVar(&quick, "quick", false, "check manifest structure only, without touching the store")
	return cmd
}

func printReport(cmd *cobra.Command, r validator.Report) {
	out := cmd.OutOrStdout()
	if r.OK {
		color.New(color.FgGreen).Fprintln(out, "OK")
	} else {
		color.New(color.FgRed).Fprintln(out, "FAILED")
	}
	fmt.Fprintf(out, "entries: %d files, %d dirs, %d symlinks\n", r.Counts.Files, r.Counts.Dirs, r.Counts.Symlinks)
	for _, h := range r.Missing {
		fmt.Fprintf(out, "  missing chunk: %s\n", h)
	}
	for _, h := range r.Mismatched {
		fmt.Fprintf(out, "  integrity mismatch: %s\n", h)
	}
	for _, p := range r.BadPaths {
		fmt.Fprintf(out, "  bad path: %s\n", p)
	}
}
