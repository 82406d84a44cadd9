// Package dispatch executes single work items against the external
// agent-executor process, with bounded retry, response parsing, and
// telemetry emission.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-dev/conductor/internal/telemetry"
	"github.com/conductor-dev/conductor/pkg/models"
)

// teardownBuffer is added to the executor timeout so the process gets a
// chance to exit 124 on its own before the context kills it.
const teardownBuffer = 10 * time.Second

// defaultTimeout is the wall-clock budget for one external execution.
const defaultTimeout = 300 * time.Second

// defaultMaxRetries is the retry ceiling for dispatch-layer errors.
const defaultMaxRetries = 3

// Config contains configuration options for the Dispatcher.
type Config struct {
	// Runner launches the external agent-executor process. Required.
	Runner ProcessRunner
	// Recorder receives one telemetry event per completed or errored
	// dispatch. If nil, events are discarded.
	Recorder telemetry.Recorder
	// Timeout is the wall-clock budget for one execution. Default 300s.
	Timeout time.Duration
	// MaxRetries is the retry ceiling for dispatch-layer errors. Default 3.
	MaxRetries int
	// StatePath is the assignment-bridge state file. Aggregate counters are
	// read from it once at construction and rewritten after every dispatch.
	// Empty disables persistence.
	StatePath string
}

// Dispatcher executes one work item at a time against the external
// agent-executor process and records an Assignment per dispatch.
// Safe for concurrent use by pool workers.
type Dispatcher struct {
	runner     ProcessRunner
	recorder   telemetry.Recorder
	timeout    time.Duration
	maxRetries int
	statePath  string

	mu          sync.RWMutex
	assignments map[string]*models.Assignment
	order       []string
	state       *BridgeState
}

// New creates a Dispatcher from the given configuration, loading any
// persisted bridge counters.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = telemetry.NopRecorder{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	state := newBridgeState()
	if cfg.StatePath != "" {
		loaded, err := loadBridgeState(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("load bridge state: %w", err)
		}
		state = loaded
	}

	return &Dispatcher{
		runner:      cfg.Runner,
		recorder:    recorder,
		timeout:     timeout,
		maxRetries:  maxRetries,
		statePath:   cfg.StatePath,
		assignments: make(map[string]*models.Assignment),
		state:       state,
	}, nil
}

// Dispatch executes one work item against the external agent executor
// and returns the assignment holding its result.
//
// Dispatch-layer errors (launch failures) are retried with exponential
// backoff up to the configured maximum, then propagated. Timeouts are not
// retried; they surface as a DispatchResult with timeout status.
func (d *Dispatcher) Dispatch(ctx context.Context, task *models.Task, capability models.CapabilityKind, instruction, extraContext string) (*models.Assignment, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if !capability.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCapability, capability)
	}

	assignment := &models.Assignment{
		ID:         uuid.New().String(),
		TaskID:     task.ID,
		Capability: capability,
		CreatedAt:  time.Now(),
		MaxRetries: d.maxRetries,
	}

	d.mu.Lock()
	d.assignments[assignment.ID] = assignment
	d.order = append(d.order, assignment.ID)
	d.mu.Unlock()

	inv := Invocation{
		Capability: capability,
		TaskID:     task.ID,
		Prompt:     buildPrompt(task, capability, instruction, extraContext),
		Timeout:    d.timeout,
	}

	d.mu.Lock()
	assignment.StartedAt = time.Now()
	d.mu.Unlock()

	// Explicit bounded retry loop. The retry counter never exceeds the
	// configured maximum before the error is propagated.
	for {
		started := time.Now()
		out, err := d.run(ctx, inv)
		if err != nil {
			retries := d.retryCount(assignment.ID)
			if retries >= assignment.MaxRetries {
				d.finishError(assignment, err, time.Since(started))
				return assignment, fmt.Errorf("dispatch task %s: %w", task.ID, err)
			}

			backoff := time.Duration(1<<uint(retries)) * time.Second
			log.Printf("[dispatch] task %s: attempt %d failed (%v), retrying in %s", task.ID, retries+1, err, backoff)
			d.incrementRetry(assignment.ID)

			select {
			case <-ctx.Done():
				d.finishError(assignment, ctx.Err(), time.Since(started))
				return assignment, fmt.Errorf("dispatch task %s: %w", task.ID, ctx.Err())
			case <-time.After(backoff):
			}
			continue
		}

		result := parseResult(inv, out, time.Since(started))
		d.finish(assignment, result)
		return assignment, nil
	}
}

// run launches one executor attempt under the configured timeout plus a
// small teardown buffer.
func (d *Dispatcher) run(ctx context.Context, inv Invocation) (*ProcessOutput, error) {
	runCtx, cancel := context.WithTimeout(ctx, d.timeout+teardownBuffer)
	defer cancel()
	return d.runner.Run(runCtx, inv)
}

// retryCount returns the current retry counter for an assignment.
func (d *Dispatcher) retryCount(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if a, ok := d.assignments[id]; ok {
		return a.RetryCount
	}
	return 0
}

// incrementRetry bumps the assignment retry counter and the persisted
// retry total.
func (d *Dispatcher) incrementRetry(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.assignments[id]; ok {
		a.RetryCount++
	}
	d.state.TotalRetried++
}

// finish records a terminal result, updates counters, persists bridge
// state, and emits a telemetry event.
func (d *Dispatcher) finish(assignment *models.Assignment, result *models.DispatchResult) {
	d.mu.Lock()
	assignment.Result = result
	assignment.CompletedAt = time.Now()

	d.state.TotalDispatched++
	d.state.PerCapability[string(result.Capability)]++
	d.state.PerStatus[string(result.Status)]++
	if result.Success {
		d.state.TotalCompleted++
	} else {
		d.state.TotalFailed++
	}
	d.mu.Unlock()

	d.persistState()

	kind := telemetry.EventTaskCompleted
	errMsg := ""
	if !result.Success {
		kind = telemetry.EventTaskFailed
		if len(result.Errors) > 0 {
			errMsg = result.Errors[0]
		}
	}

	d.recorder.Record(telemetry.Event{
		Kind:       kind,
		TaskID:     assignment.TaskID,
		Capability: string(assignment.Capability),
		Success:    result.Success,
		Duration:   result.Duration,
		TokensUsed: result.TokensUsed,
		Error:      errMsg,
		Metadata: map[string]string{
			"assignment_id":  assignment.ID,
			"status":         string(result.Status),
			"files_created":  fmt.Sprintf("%d", len(result.FilesCreated)),
			"files_modified": fmt.Sprintf("%d", len(result.FilesModified)),
		},
		Timestamp: time.Now(),
	})
}

// finishError records a dispatch-layer failure after retries are exhausted.
func (d *Dispatcher) finishError(assignment *models.Assignment, err error, duration time.Duration) {
	d.mu.Lock()
	assignment.CompletedAt = time.Now()
	d.state.TotalDispatched++
	d.state.TotalFailed++
	d.state.PerCapability[string(assignment.Capability)]++
	d.state.PerStatus[string(models.DispatchFailed)]++
	d.mu.Unlock()

	d.persistState()

	d.recorder.Record(telemetry.Event{
		Kind:       telemetry.EventError,
		TaskID:     assignment.TaskID,
		Capability: string(assignment.Capability),
		Duration:   duration,
		Error:      err.Error(),
		Metadata: map[string]string{
			"assignment_id": assignment.ID,
			"retries":       fmt.Sprintf("%d", assignment.RetryCount),
		},
		Timestamp: time.Now(),
	})
}

// persistState rewrites the bridge state file if persistence is enabled.
func (d *Dispatcher) persistState() {
	if d.statePath == "" {
		return
	}

	d.mu.Lock()
	d.state.UpdatedAt = time.Now()
	snapshot := d.state.clone()
	d.mu.Unlock()

	if err := saveBridgeState(d.statePath, snapshot); err != nil {
		log.Printf("[dispatch] persist bridge state: %v", err)
	}
}

// GetAssignment returns a copy of the assignment with the given ID.
func (d *Dispatcher) GetAssignment(id string) (*models.Assignment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.assignments[id]
	if !ok {
		return nil, ErrAssignmentNotFound
	}

	// Return a copy to avoid race conditions. Results are immutable, so
	// sharing the Result pointer is safe.
	copy := *a
	return &copy, nil
}

// ListAssignments returns up to limit assignments, newest first.
// A limit of zero or less returns all assignments.
func (d *Dispatcher) ListAssignments(limit int) []*models.Assignment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := len(d.order)
	if limit <= 0 || limit > n {
		limit = n
	}

	assignments := make([]*models.Assignment, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		copy := *d.assignments[d.order[i]]
		assignments = append(assignments, &copy)
	}
	return assignments
}

// CancelAssignment flips a completed assignment's recorded status to
// cancelled for bookkeeping. It does not interrupt an in-flight process.
func (d *Dispatcher) CancelAssignment(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.assignments[id]
	if !ok {
		return ErrAssignmentNotFound
	}
	if a.Result == nil {
		return fmt.Errorf("assignment %s has no recorded result to cancel", id)
	}

	cancelled := *a.Result
	cancelled.Status = models.DispatchCancelled
	a.Result = &cancelled
	return nil
}

// Stats returns a snapshot of the aggregate dispatch counters plus the
// number of assignments tracked in memory.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		Counters:    *d.state.clone(),
		Assignments: len(d.assignments),
	}
}

// Stats is the observable dispatcher state.
type Stats struct {
	// Counters are the persisted aggregate counters.
	Counters BridgeState
	// Assignments is the number of assignments held in memory.
	Assignments int
}
