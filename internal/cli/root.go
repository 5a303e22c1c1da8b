// Package cli implements the meowd command-line entrypoint: a thin
// cobra wrapper around internal/runner, internal/fsmonitor,
// internal/sockmonitor, internal/handler, and internal/config — it
// parses flags, wires the components together, and hands off to the
// runner's blocking lifecycle.
//
// Grounded on the teacher's internal/cli/root.go (package-level rootCmd,
// flags bound in init(), Execute()) and internal/cli/serve.go (RunE
// wiring a long-running component, signal-driven graceful shutdown).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meowd",
	Short: "MEOW event-to-job engine",
	Long:  "Watches a directory tree (and, optionally, a set of socket ports) for events, matches them against declared patterns and recipes, and materialises jobs for downstream execution.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
