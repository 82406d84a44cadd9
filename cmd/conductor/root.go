package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Agent work orchestrator",
	Long: `Conductor dispatches work items to an external agent executor and
composes dispatches into higher-level workflows.

Core capabilities:
- Executes single work items against a capability-specific agent executor
- Runs dependency-ordered sequential workflows with per-item checkpoints
- Runs bounded-concurrency pools over independent work items
- Aggregates results with conflict detection and run metrics`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
