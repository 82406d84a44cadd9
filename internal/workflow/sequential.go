package workflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-dev/conductor/pkg/models"
)

// Sequential executes work items one at a time in dependency order,
// strictly on the caller's goroutine, writing a checkpoint after each
// item reaches a terminal state.
type Sequential struct {
	id          string
	name        string
	dispatcher  ItemDispatcher
	checkpoints *CheckpointWriter

	mu        sync.RWMutex
	status    Status
	items     map[string]*models.WorkItem
	order     []string
	completed map[string]bool
	duration  time.Duration
	debugLog  func(format string, args ...interface{})
}

// NewSequential creates a sequential workflow engine.
// The checkpoint writer may be nil to disable checkpointing (tests).
func NewSequential(name string, dispatcher ItemDispatcher, checkpoints *CheckpointWriter) *Sequential {
	return &Sequential{
		id:          uuid.New().String()[:8],
		name:        name,
		dispatcher:  dispatcher,
		checkpoints: checkpoints,
		status:      StatusPending,
		items:       make(map[string]*models.WorkItem),
		completed:   make(map[string]bool),
		debugLog:    func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (s *Sequential) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		s.debugLog = fn
	}
}

// ID returns the workflow run ID.
func (s *Sequential) ID() string {
	return s.id
}

// Name returns the workflow name.
func (s *Sequential) Name() string {
	return s.name
}

// Status returns the current workflow status.
func (s *Sequential) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// AddItem registers a work item and returns its ID. Dependencies should
// reference already-added item IDs; forward references are allowed but
// will simply never become ready.
func (s *Sequential) AddItem(capability models.CapabilityKind, task *models.Task, instruction string, opts ...ItemOption) (string, error) {
	item, err := newItem(capability, task, instruction, opts...)
	if err != nil {
		return "", fmt.Errorf("add item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
	s.debugLog("[workflow %s] added item %s (%s) deps=%v", s.id, item.ID, item.Capability, item.DependsOn)
	return item.ID, nil
}

// Cancel signals the workflow to stop after the current item. Items not
// yet started remain pending. Cancel does not interrupt an in-flight
// dispatch.
func (s *Sequential) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning || s.status == StatusPending || s.status == StatusPaused {
		s.status = StatusCancelled
	}
}

// Execute runs every item in dependency order. Per-item failures are
// contained: a failed item is recorded and its siblings continue. Execute
// returns true only if no item failed. It returns an error only for
// construction misuse (already running, no items).
func (s *Sequential) Execute(ctx context.Context, onComplete, onFailed ItemCallback) (bool, error) {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.mu.Unlock()
		return false, ErrAlreadyRunning
	}
	if len(s.items) == 0 {
		s.mu.Unlock()
		return false, ErrNoItems
	}
	s.status = StatusRunning
	execOrder := s.resolveOrderLocked()
	s.mu.Unlock()

	started := time.Now()
	s.debugLog("[workflow %s] executing %d items in order %v", s.id, len(execOrder), execOrder)

	allOK := true
	for _, id := range execOrder {
		// Honor an external cancel signal between items.
		if s.Status() == StatusCancelled {
			s.debugLog("[workflow %s] cancelled, %s and later items stay pending", s.id, id)
			break
		}

		item := s.item(id)

		if !s.dependenciesSatisfied(item) {
			s.failItem(item, depsNotMetReason)
			allOK = false
			if onFailed != nil {
				onFailed(s.item(id))
			}
			s.writeCheckpoint(id)
			continue
		}

		s.startItem(item)
		assignment, err := s.dispatcher.Dispatch(ctx, item.Task, item.Capability, item.Instruction, item.Context)

		switch {
		case err != nil:
			s.failItem(item, err.Error())
			allOK = false
			if onFailed != nil {
				onFailed(s.item(id))
			}
		case assignment.Result != nil && assignment.Result.Success:
			s.completeItem(item, assignment.Result)
			if onComplete != nil {
				onComplete(s.item(id))
			}
		default:
			s.failItemWithResult(item, assignment.Result)
			allOK = false
			if onFailed != nil {
				onFailed(s.item(id))
			}
		}

		// Checkpoint before the next item starts; this is the ordering
		// guarantee for sequential workflows.
		s.writeCheckpoint(id)
	}

	s.mu.Lock()
	s.duration = time.Since(started)
	if s.status == StatusRunning {
		if allOK {
			s.status = StatusCompleted
		} else {
			s.status = StatusFailed
		}
	}
	s.mu.Unlock()

	return allOK, nil
}

// Results returns the items partitioned into completed, failed, and
// pending, with per-item durations and run statistics.
func (s *Sequential) Results() Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return partitionResults(s.items, s.order, s.duration)
}

// resolveOrderLocked computes the execution order via repeated ready-set
// expansion: a round adds every item whose dependencies are already
// ordered. When a round adds nothing (cycle or dependency on an item
// that was never added), the remaining items are appended as-is and
// fail the dependency check at execution time. Best-effort ordering on
// unsatisfiable graphs. Caller must hold s.mu.
func (s *Sequential) resolveOrderLocked() []string {
	ordered := make([]string, 0, len(s.items))
	placed := make(map[string]bool, len(s.items))

	for len(ordered) < len(s.items) {
		var ready []string
		for _, id := range s.order {
			if placed[id] {
				continue
			}
			satisfied := true
			for _, dep := range s.items[id].DependsOn {
				if !placed[dep] {
					satisfied = false
					break
				}
			}
			if satisfied {
				ready = append(ready, id)
			}
		}

		if len(ready) == 0 {
			var remaining []string
			for _, id := range s.order {
				if !placed[id] {
					remaining = append(remaining, id)
					placed[id] = true
				}
			}
			s.debugLog("[workflow %s] no item became ready, appending %d remaining unordered", s.id, len(remaining))
			ordered = append(ordered, remaining...)
			break
		}

		for _, id := range ready {
			ordered = append(ordered, id)
			placed[id] = true
		}
	}

	return ordered
}

// dependenciesSatisfied reports whether every dependency of the item has
// completed at this point of execution.
func (s *Sequential) dependenciesSatisfied(item *models.WorkItem) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, dep := range item.DependsOn {
		if !s.completed[dep] {
			return false
		}
	}
	return true
}

// item returns a copy of the item for callbacks and reads.
func (s *Sequential) item(id string) *models.WorkItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copy := *s.items[id]
	return &copy
}

// startItem transitions an item to dispatched.
func (s *Sequential) startItem(item *models.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.State = models.ItemStateDispatched
	item.StartedAt = time.Now()
}

// completeItem records a successful terminal state.
func (s *Sequential) completeItem(item *models.WorkItem, result *models.DispatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.State = models.ItemStateCompleted
	item.Result = result
	item.CompletedAt = time.Now()
	s.completed[item.ID] = true
}

// failItem records a failed terminal state with a reason.
func (s *Sequential) failItem(item *models.WorkItem, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.State = models.ItemStateFailed
	item.Error = reason
	item.CompletedAt = time.Now()
	log.Printf("[workflow %s] item %s failed: %s", s.id, item.ID, reason)
}

// failItemWithResult records a failed terminal state carrying the result.
func (s *Sequential) failItemWithResult(item *models.WorkItem, result *models.DispatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.State = models.ItemStateFailed
	item.Result = result
	item.CompletedAt = time.Now()
	if result != nil && len(result.Errors) > 0 {
		item.Error = result.Errors[0]
	}
}

// writeCheckpoint snapshots progress after an item reached a terminal
// state. The phase marker is the item just finished.
func (s *Sequential) writeCheckpoint(phase string) {
	if s.checkpoints == nil {
		return
	}

	s.mu.RLock()
	cp := buildCheckpoint(s.id, phase, s.status, s.items, s.order)
	s.mu.RUnlock()

	if err := s.checkpoints.Write(cp); err != nil {
		log.Printf("[workflow %s] write checkpoint: %v", s.id, err)
	}
}
