// Command snug is a thin CLI wrapper over the core archive engine. The
// cobra command-tree shape (root command + one file per subcommand,
// SilenceUsage/SilenceErrors, explicit exit codes) follows
// distribution-distribution's registry/root.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "snug",
		Short:         "snug archives and extracts content-addressable trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newArchiveCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newInfoCmd())
	return root
}
