package workflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/conductor-dev/conductor/pkg/models"
)

// maxPoolWorkers is the hard cap on concurrent pool workers.
const maxPoolWorkers = 10

// defaultPoolWorkers is the worker count used when none is requested.
const defaultPoolWorkers = 3

// defaultPoolTimeout bounds the overall wait for one pool batch.
const defaultPoolTimeout = 30 * time.Minute

// joinGrace is how long Execute waits for workers to join after the
// overall timeout before reporting missing results as failures.
const joinGrace = 10 * time.Second

// Pool executes an independent set of work items concurrently under a
// bounded worker count, with one checkpoint written for the whole batch.
// Items in a pool carry no dependencies.
type Pool struct {
	id          string
	name        string
	dispatcher  ItemDispatcher
	checkpoints *CheckpointWriter
	workers     int
	timeout     time.Duration

	mu       sync.RWMutex
	status   Status
	items    map[string]*models.WorkItem
	order    []string
	duration time.Duration
	debugLog func(format string, args ...interface{})
}

// NewPool creates a parallel pool engine. A requested worker count of
// zero or less uses the default (3); requests above the hard cap are
// clamped to 10. A timeout of zero uses the default (30m).
func NewPool(name string, dispatcher ItemDispatcher, checkpoints *CheckpointWriter, workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = defaultPoolWorkers
	}
	if workers > maxPoolWorkers {
		workers = maxPoolWorkers
	}
	if timeout <= 0 {
		timeout = defaultPoolTimeout
	}

	return &Pool{
		id:          uuid.New().String()[:8],
		name:        name,
		dispatcher:  dispatcher,
		checkpoints: checkpoints,
		workers:     workers,
		timeout:     timeout,
		status:      StatusPending,
		items:       make(map[string]*models.WorkItem),
		debugLog:    func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (p *Pool) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.debugLog = fn
	}
}

// ID returns the pool run ID.
func (p *Pool) ID() string {
	return p.id
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Workers returns the effective worker count after clamping.
func (p *Pool) Workers() int {
	return p.workers
}

// Status returns the current pool status.
func (p *Pool) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// AddItem registers an independent work item and returns its ID.
// Pool items carry no dependencies; all items are assumed independent.
func (p *Pool) AddItem(capability models.CapabilityKind, task *models.Task, instruction string, opts ...ItemOption) (string, error) {
	item, err := newItem(capability, task, instruction, opts...)
	if err != nil {
		return "", fmt.Errorf("add item: %w", err)
	}
	item.DependsOn = nil

	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[item.ID] = item
	p.order = append(p.order, item.ID)
	p.debugLog("[pool %s] added item %s (%s)", p.id, item.ID, item.Capability)
	return item.ID, nil
}

// Execute submits every item to the worker pool and waits for all of
// them within the overall timeout. Each worker writes only its own
// item's result; the statistics and checkpoint step runs after the
// workers have joined. Items whose result did not arrive before the
// timeout are reported as failed. Returns true only if zero items
// failed; errors are reserved for construction misuse.
func (p *Pool) Execute(ctx context.Context, onComplete, onFailed ItemCallback) (bool, error) {
	p.mu.Lock()
	if p.status == StatusRunning {
		p.mu.Unlock()
		return false, ErrAlreadyRunning
	}
	if len(p.items) == 0 {
		p.mu.Unlock()
		return false, ErrNoItems
	}
	p.status = StatusRunning
	ids := make([]string, len(p.order))
	copy(ids, p.order)
	p.mu.Unlock()

	started := time.Now()
	p.debugLog("[pool %s] executing %d items with %d workers", p.id, len(ids), p.workers)

	poolCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	g := &errgroup.Group{}
	g.SetLimit(p.workers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			p.runItem(poolCtx, id, onComplete, onFailed)
			// Per-item failures are contained; never cancel siblings.
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-poolCtx.Done():
		// Overall timeout. The dispatcher honors the pool context, so
		// give the workers a short grace period to join before reading
		// across all items.
		p.debugLog("[pool %s] overall timeout after %s", p.id, p.timeout)
		select {
		case <-done:
		case <-time.After(joinGrace):
			log.Printf("[pool %s] workers did not join within grace period", p.id)
		}
	}

	p.mu.Lock()
	allOK := true
	for _, id := range ids {
		item := p.items[id]
		if !item.Terminal() {
			item.State = models.ItemStateFailed
			item.Error = fmt.Sprintf("pool timed out after %s", p.timeout)
			item.CompletedAt = time.Now()
		}
		if item.State == models.ItemStateFailed {
			allOK = false
		}
	}
	p.duration = time.Since(started)
	if allOK {
		p.status = StatusCompleted
	} else {
		p.status = StatusFailed
	}
	p.mu.Unlock()

	p.writeCheckpoint()

	return allOK, nil
}

// runItem dispatches a single item and records its terminal state.
// Runs on a pool worker goroutine; writes only its own item's result.
func (p *Pool) runItem(ctx context.Context, id string, onComplete, onFailed ItemCallback) {
	p.mu.Lock()
	item := p.items[id]
	item.State = models.ItemStateDispatched
	item.StartedAt = time.Now()
	task := item.Task
	capability := item.Capability
	instruction := item.Instruction
	extraContext := item.Context
	p.mu.Unlock()

	assignment, err := p.dispatcher.Dispatch(ctx, task, capability, instruction, extraContext)

	p.mu.Lock()
	item.CompletedAt = time.Now()
	switch {
	case err != nil:
		item.State = models.ItemStateFailed
		item.Error = err.Error()
	case assignment.Result != nil && assignment.Result.Success:
		item.State = models.ItemStateCompleted
		item.Result = assignment.Result
	default:
		item.State = models.ItemStateFailed
		item.Result = assignment.Result
		if assignment.Result != nil && len(assignment.Result.Errors) > 0 {
			item.Error = assignment.Result.Errors[0]
		}
	}
	state := item.State
	copy := *item
	p.mu.Unlock()

	if state == models.ItemStateCompleted {
		if onComplete != nil {
			onComplete(&copy)
		}
	} else if onFailed != nil {
		onFailed(&copy)
	}
}

// Results returns the items partitioned into completed, failed, and
// pending, with per-item durations and run statistics.
func (p *Pool) Results() Results {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return partitionResults(p.items, p.order, p.duration)
}

// writeCheckpoint writes the single batch checkpoint containing every
// item's terminal state.
func (p *Pool) writeCheckpoint() {
	if p.checkpoints == nil {
		return
	}

	p.mu.RLock()
	cp := buildCheckpoint(p.id, "batch", p.status, p.items, p.order)
	p.mu.RUnlock()

	if err := p.checkpoints.Write(cp); err != nil {
		log.Printf("[pool %s] write checkpoint: %v", p.id, err)
	}
}
