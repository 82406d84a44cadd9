package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/internal/dispatch"
	"github.com/conductor-dev/conductor/internal/telemetry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dispatch counters and recent runs",
	Long: `Display the persisted state of the conductor work directory.

Shows:
  - Aggregate dispatch counters from the bridge state file
  - Per-capability and per-status breakdowns
  - Recent workflow checkpoints
  - Telemetry event counts`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	statePath := cfg.Paths.BridgeStatePath()
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		fmt.Println("No dispatch state found. Run 'conductor run <plan.yaml>' to start.")
		return nil
	}

	state, err := dispatch.LoadBridgeState(statePath)
	if err != nil {
		return fmt.Errorf("load bridge state: %w", err)
	}

	displayBridgeState(state)
	displayCheckpoints(cfg.Paths.CheckpointDir())
	return displayTelemetry(cfg.Paths.TelemetryDBPath())
}

func displayBridgeState(state *dispatch.BridgeState) {
	color.Cyan("Dispatch Counters")
	fmt.Printf("  dispatched: %d (%d completed, %d failed, %d retries)\n",
		state.TotalDispatched, state.TotalCompleted, state.TotalFailed, state.TotalRetried)
	if !state.UpdatedAt.IsZero() {
		fmt.Printf("  last update: %s ago\n", formatDuration(time.Since(state.UpdatedAt)))
	}

	if len(state.PerCapability) > 0 {
		fmt.Println("  by capability:")
		for _, k := range sortedKeys(state.PerCapability) {
			fmt.Printf("    %-10s %d\n", k, state.PerCapability[k])
		}
	}
	if len(state.PerStatus) > 0 {
		fmt.Println("  by status:")
		for _, k := range sortedKeys(state.PerStatus) {
			fmt.Printf("    %-10s %d\n", k, state.PerStatus[k])
		}
	}
}

// displayCheckpoints lists the most recent checkpoint files, newest first.
func displayCheckpoints(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return
	}

	type checkpointFile struct {
		name    string
		modTime time.Time
	}
	var files []checkpointFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, checkpointFile{name: entry.Name(), modTime: info.ModTime()})
	}
	if len(files) == 0 {
		return
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	if len(files) > 5 {
		files = files[:5]
	}

	fmt.Println()
	color.Cyan("Recent Checkpoints")
	for _, f := range files {
		id := strings.TrimSuffix(f.name, ".json")
		fmt.Printf("  %s (%s ago)\n", id, formatDuration(time.Since(f.modTime)))
	}
}

func displayTelemetry(dbPath string) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil
	}

	store, err := telemetry.OpenStore(dbPath)
	if err != nil {
		return fmt.Errorf("open telemetry store: %w", err)
	}
	defer store.Close()

	counts, err := store.CountsByCapability()
	if err != nil {
		return fmt.Errorf("query telemetry counts: %w", err)
	}
	if len(counts) == 0 {
		return nil
	}

	fmt.Println()
	color.Cyan("Telemetry Events")
	for _, k := range sortedKeys(counts) {
		fmt.Printf("  %-10s %d\n", k, counts[k])
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
