package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	snug "github.com/rickhohler/snug"
	"github.com/rickhohler/snug/manifest"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info ARCHIVE",
		Short: "summarize a snug archive's format, version, and contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("%w: reading %s: %v", errBadArgs, args[0], err)
			}
			m, err := snug.ParseManifest(data)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "format:         %s\n", m.Format)
			fmt.Fprintf(out, "version:        %d\n", m.Version)
			fmt.Fprintf(out, "hash algorithm: %s\n", m.HashAlgorithm)
			fmt.Fprintf(out, "unique chunks:  %d\n", len(m.Hashes))
			fmt.Fprintf(out, "total size:     %s\n", humanize.Bytes(uint64(totalSize(m))))

			files, dirs, symlinks := 0, 0, 0
			for _, e := range m.Entries {
				switch e.Type {
				case manifest.EntryFile:
					files++
				case manifest.EntryDirectory:
					dirs++
				case manifest.EntrySymlink:
					symlinks++
				}
			}
			fmt.Fprintf(out, "entries:        %d files, %d directories, %d symlinks\n", files, dirs, symlinks)
			return nil
		},
	}
	return cmd
}

func totalSize(m manifest.Manifest) int64 {
	var total int64
	for _, h := range m.Hashes {
		total += h.Size
	}
	return total
}
