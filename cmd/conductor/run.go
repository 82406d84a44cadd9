package main

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conductor-dev/conductor/internal/aggregate"
	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/internal/dispatch"
	"github.com/conductor-dev/conductor/internal/telemetry"
	"github.com/conductor-dev/conductor/internal/workflow"
	"github.com/conductor-dev/conductor/pkg/models"
)

// timeRound is the display precision for durations.
const timeRound = time.Millisecond

var runWorkers int

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute a workflow plan",
	Long: `Execute the workflow described by a plan file.

Sequential plans run items one at a time in dependency order with a
checkpoint after each item. Parallel plans run all items concurrently
under a bounded worker pool with a single batch checkpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Worker count for parallel plans (0 = config default, capped at 10)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	plan, err := workflow.LoadPlan(args[0])
	if err != nil {
		return err
	}

	store, err := telemetry.OpenStore(cfg.Paths.TelemetryDBPath())
	if err != nil {
		return fmt.Errorf("open telemetry store: %w", err)
	}
	defer store.Close()

	dispatcher, err := dispatch.New(dispatch.Config{
		Runner:     dispatch.NewExecRunner(cfg.Executor.Command),
		Recorder:   store,
		Timeout:    cfg.Dispatch.Timeout,
		MaxRetries: cfg.Dispatch.MaxRetries,
		StatePath:  cfg.Paths.BridgeStatePath(),
	})
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	checkpoints := workflow.NewCheckpointWriter(cfg.Paths.CheckpointDir())

	onComplete := func(item *models.WorkItem) {
		color.Green("✓ %s (%s) completed in %s", item.ID, item.Capability, item.Duration().Round(timeRound))
	}
	onFailed := func(item *models.WorkItem) {
		color.Red("✗ %s (%s) failed: %s", item.ID, item.Capability, item.Error)
	}

	ctx := context.Background()

	var ok bool
	var results workflow.Results
	var aggregated *models.AggregatedResult
	agg := aggregate.New()

	if plan.Parallel {
		workers := runWorkers
		if workers == 0 {
			workers = cfg.Pool.MaxWorkers
		}
		pool, err := plan.BuildPool(dispatcher, checkpoints, workers, cfg.Pool.Timeout)
		if err != nil {
			return err
		}
		log.Printf("[run] pool %s: %d items, %d workers", pool.ID(), len(plan.Items), pool.Workers())

		ok, err = pool.Execute(ctx, onComplete, onFailed)
		if err != nil {
			return fmt.Errorf("execute pool: %w", err)
		}
		results = pool.Results()
		if collected := collectResults(results); len(collected) > 0 {
			aggregated, err = agg.AggregateParallel(collected, plan.Name)
			if err != nil {
				return fmt.Errorf("aggregate results: %w", err)
			}
		}
	} else {
		wf, err := plan.BuildSequential(dispatcher, checkpoints)
		if err != nil {
			return err
		}
		log.Printf("[run] workflow %s: %d items", wf.ID(), len(plan.Items))

		ok, err = wf.Execute(ctx, onComplete, onFailed)
		if err != nil {
			return fmt.Errorf("execute workflow: %w", err)
		}
		results = wf.Results()
		if collected := collectResults(results); len(collected) > 0 {
			aggregated, err = agg.AggregateSequential(collected, plan.Name)
			if err != nil {
				return fmt.Errorf("aggregate results: %w", err)
			}
		}
	}

	printReport(results, aggregated, ok)

	if !ok {
		return fmt.Errorf("%d of %d items failed", results.Stats.FailedItems, results.Stats.TotalItems)
	}
	return nil
}

// collectResults gathers dispatch results from terminal items, ordered
// by item start time so sequential aggregation sees phase order.
func collectResults(results workflow.Results) []*models.DispatchResult {
	items := append([]*models.WorkItem{}, results.Completed...)
	items = append(items, results.Failed...)
	sort.Slice(items, func(i, j int) bool {
		return items[i].StartedAt.Before(items[j].StartedAt)
	})

	var out []*models.DispatchResult
	for _, item := range items {
		if item.Result != nil {
			out = append(out, item.Result)
		}
	}
	return out
}

// printReport renders the aggregated run report.
func printReport(results workflow.Results, aggregated *models.AggregatedResult, ok bool) {
	fmt.Println()
	summary := "no results"
	if aggregated != nil {
		summary = aggregated.Summary
	}
	if ok {
		color.Green("Run completed: %s", summary)
	} else {
		color.Red("Run failed: %s", summary)
	}

	fmt.Printf("  items: %d completed, %d failed, %d pending\n",
		results.Stats.CompletedItems, results.Stats.FailedItems,
		results.Stats.TotalItems-results.Stats.CompletedItems-results.Stats.FailedItems)
	fmt.Printf("  duration: %s (avg item %s)\n",
		results.Stats.TotalDuration.Round(timeRound), results.Stats.AverageItemDuration.Round(timeRound))
	if aggregated == nil {
		return
	}
	fmt.Printf("  files: %d created, %d modified\n",
		len(aggregated.FilesCreated), len(aggregated.FilesModified))

	if len(aggregated.Conflicts) > 0 {
		color.Yellow("  conflicts:")
		for _, c := range aggregated.Conflicts {
			color.Yellow("    - %s", c)
		}
	}
}
