package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	snug "github.com/rickhohler/snug"
	"github.com/rickhohler/snug/archiver"
	"github.com/rickhohler/snug/hash"
	"github.com/rickhohler/snug/internal/atomicfile"
)

func newArchiveCmd() *cobra.Command {
	var (
		hashAlgorithm  string
		ignoreFile     string
		followSymlinks bool
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "archive SRC OUT",
		Short: "archive a directory tree into a snug archive file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, out := args[0], args[1]

			algo, err := hash.ParseAlgorithm(hashAlgorithm)
			if err != nil {
				return fmt.Errorf("%w: %v", errBadArgs, err)
			}

			var patterns []string
			if ignoreFile != "" {
				data, err := os.ReadFile(ignoreFile)
				if err != nil {
					return fmt.Errorf("%w: reading ignore file: %v", errBadArgs, err)
				}
				patterns = splitLines(string(data))
			}

			store, err := openStore()
			if err != nil {
				return fmt.Errorf("archive: open store: %w", err)
			}

			a := archiver.New(store, nil,
				archiver.WithHashAlgorithm(algo),
				archiver.WithIgnorePatterns(patterns),
				archiver.WithFollowSymlinks(followSymlinks),
				archiver.WithLogger(newRunLogger(verbose)),
			)

			m, err := a.Archive(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}

			data, err := snug.EmitManifest(m)
			if err != nil {
				return fmt.Errorf("archive: emit manifest: %w", err)
			}
			if err := atomicfile.WriteBytes(out, data, 0o644); err != nil {
				return fmt.Errorf("archive: write %s: %w", out, err)
			}

			if verbose {
				color.Green("archived %d entries to %s\n", len(m.Entries), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&hashAlgorithm, "hash-algorithm", string(hash.SHA256), "digest algorithm (sha256, sha1)")
	cmd.Flags().StringVar(&ignoreFile, "ignore-file", "", "path to a gitignore-style pattern file")
	cmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", false, "follow symlinks instead of archiving them as links")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "emit progress and correlation-id logging to stderr")
	return cmd
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, trimCR(s[start:]))
	}
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
