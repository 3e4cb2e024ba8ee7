package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	snug "github.com/rickhohler/snug"
	"github.com/rickhohler/snug/extractor"
)

func newExtractCmd() *cobra.Command {
	var (
		overwrite bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "extract ARCHIVE DST",
		Short: "extract a snug archive into a destination directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath, dst := args[0], args[1]

			data, err := os.ReadFile(archivePath)
			if err != nil {
				return fmt.Errorf("%w: reading %s: %v", errBadArgs, archivePath, err)
			}

			store, err := openStore()
			if err != nil {
				return fmt.Errorf("extract: open store: %w", err)
			}

			x := extractor.New(store, extractor.WithOverwrite(overwrite))
			m, err := snug.ParseManifest(data)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			if err := x.ExtractManifest(cmd.Context(), m, dst); err != nil {
				return fmt.Errorf("extract: %w", err)
			}

			if verbose {
				color.Green("extracted %d entries to %s\n", len(m.Entries), dst)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing files at the destination")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print a summary line after extraction")
	return cmd
}
