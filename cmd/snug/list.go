package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	snug "github.com/rickhohler/snug"
	"github.com/rickhohler/snug/manifest"
)

func newListCmd() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "list ARCHIVE",
		Short: "list the entries in a snug archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("%w: reading %s: %v", errBadArgs, args[0], err)
			}
			m, err := snug.ParseManifest(data)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, e := range m.Entries {
				if !detailed {
					fmt.Fprintln(out, e.Path)
					continue
				}
				fmt.Fprintf(out, "%-9s %10s  %s\n", typeLabel(e.Type), sizeLabel(e), e.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&detailed, "detailed", false, "show type and size alongside each path")
	return cmd
}

func typeLabel(t manifest.EntryType) string {
	switch t {
	case manifest.EntryDirectory:
		return "dir"
	case manifest.EntrySymlink:
		return "symlink"
	default:
		return "file"
	}
}

func sizeLabel(e manifest.Entry) string {
	if e.Type != manifest.EntryFile {
		return "-"
	}
	return humanize.Bytes(uint64(e.Size))
}
