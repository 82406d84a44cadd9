// Package workflow composes dispatches into higher-level workflows:
// a dependency-ordered sequence or a bounded-concurrency pool, both with
// checkpointed progress.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-dev/conductor/pkg/models"
)

// Common errors for workflow construction misuse. Per-item failures never
// surface as errors; they are recorded on the items themselves.
var (
	// ErrAlreadyRunning indicates Execute was called on a running engine.
	ErrAlreadyRunning = errors.New("workflow already running")
	// ErrNoItems indicates Execute was called with no items added.
	ErrNoItems = errors.New("workflow has no items")
)

// depsNotMetReason is recorded on items whose dependencies were not
// satisfied at their scheduled execution time.
const depsNotMetReason = "dependencies not met"

// Status represents the current state of a workflow or pool run.
type Status string

const (
	// StatusPending indicates execution has not started.
	StatusPending Status = "pending"
	// StatusRunning indicates execution is in progress.
	StatusRunning Status = "running"
	// StatusCompleted indicates every item completed successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates at least one item failed.
	StatusFailed Status = "failed"
	// StatusCancelled indicates an external cancel signal was received.
	StatusCancelled Status = "cancelled"
	// StatusPaused indicates an external pause signal was received.
	StatusPaused Status = "paused"
)

// ItemDispatcher executes one work item against the external agent
// executor. Implemented by dispatch.Dispatcher.
type ItemDispatcher interface {
	Dispatch(ctx context.Context, task *models.Task, capability models.CapabilityKind, instruction, extraContext string) (*models.Assignment, error)
}

// ItemCallback is invoked when an item reaches a terminal state.
type ItemCallback func(item *models.WorkItem)

// ItemOption configures an item at add time.
type ItemOption func(*models.WorkItem)

// WithContext attaches optional free-text context to an item.
func WithContext(context string) ItemOption {
	return func(item *models.WorkItem) {
		item.Context = context
	}
}

// WithDependencies declares the item IDs this item depends on.
// Dependencies must belong to the same workflow; forward references are
// allowed but will simply never become ready.
func WithDependencies(ids ...string) ItemOption {
	return func(item *models.WorkItem) {
		item.DependsOn = append(item.DependsOn, ids...)
	}
}

// newItem builds a pending work item with a generated ID.
func newItem(capability models.CapabilityKind, task *models.Task, instruction string, opts ...ItemOption) (*models.WorkItem, error) {
	if task == nil {
		return nil, fmt.Errorf("task is required")
	}
	if !capability.Valid() {
		return nil, fmt.Errorf("invalid capability kind: %q", capability)
	}

	item := &models.WorkItem{
		ID:          uuid.New().String()[:8],
		Capability:  capability,
		Instruction: instruction,
		Task:        task,
		State:       models.ItemStatePending,
	}
	for _, opt := range opts {
		opt(item)
	}
	return item, nil
}

// Results partitions a run's items by terminal state.
type Results struct {
	// Completed lists items that finished successfully.
	Completed []*models.WorkItem
	// Failed lists items that finished unsuccessfully.
	Failed []*models.WorkItem
	// Pending lists items that never reached a terminal state.
	Pending []*models.WorkItem
	// Stats summarizes the run.
	Stats Stats
}

// Stats is the running statistics block for a workflow or pool.
type Stats struct {
	// TotalItems is the number of items in the run.
	TotalItems int
	// CompletedItems is the number of items that completed successfully.
	CompletedItems int
	// FailedItems is the number of items that failed.
	FailedItems int
	// TotalDuration is the wall-clock duration of the whole run.
	TotalDuration time.Duration
	// AverageItemDuration is the mean duration of terminal items.
	AverageItemDuration time.Duration
}

// partitionResults builds Results from items in the given order.
func partitionResults(items map[string]*models.WorkItem, order []string, totalDuration time.Duration) Results {
	var results Results
	var terminal int
	var itemTotal time.Duration

	for _, id := range order {
		item := items[id]
		copy := *item
		switch item.State {
		case models.ItemStateCompleted:
			results.Completed = append(results.Completed, &copy)
		case models.ItemStateFailed:
			results.Failed = append(results.Failed, &copy)
		default:
			results.Pending = append(results.Pending, &copy)
		}
		if item.Terminal() {
			terminal++
			itemTotal += item.Duration()
		}
	}

	results.Stats = Stats{
		TotalItems:     len(order),
		CompletedItems: len(results.Completed),
		FailedItems:    len(results.Failed),
		TotalDuration:  totalDuration,
	}
	if terminal > 0 {
		results.Stats.AverageItemDuration = itemTotal / time.Duration(terminal)
	}
	return results
}

// buildCheckpoint snapshots progress for the given run.
func buildCheckpoint(workflowID, phase string, status Status, items map[string]*models.WorkItem, order []string) *models.Checkpoint {
	var completed []string
	var failed int
	for _, id := range order {
		switch items[id].State {
		case models.ItemStateCompleted:
			completed = append(completed, id)
		case models.ItemStateFailed:
			failed++
		}
	}
	if completed == nil {
		completed = []string{}
	}

	return &models.Checkpoint{
		ID:             uuid.New().String(),
		WorkflowID:     workflowID,
		Phase:          phase,
		CompletedItems: completed,
		Timestamp:      time.Now(),
		State: models.CheckpointState{
			Status:         string(status),
			TotalItems:     len(order),
			CompletedItems: len(completed),
			FailedItems:    failed,
		},
	}
}
