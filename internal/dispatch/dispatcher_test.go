package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/conductor-dev/conductor/internal/telemetry"
	"github.com/conductor-dev/conductor/pkg/models"
)

// fakeRunner returns scripted outputs in order, then repeats the last one.
type fakeRunner struct {
	mu      sync.Mutex
	outputs []*ProcessOutput
	errs    []error
	calls   int
	prompts []string
}

func (f *fakeRunner) Run(ctx context.Context, inv Invocation) (*ProcessOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	if i >= len(f.outputs) {
		i = len(f.outputs) - 1
	}
	f.calls++
	f.prompts = append(f.prompts, inv.Prompt)
	return f.outputs[i], f.errs[i]
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// captureRecorder collects telemetry events.
type captureRecorder struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureRecorder) Record(event telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureRecorder) last() telemetry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func testTask() *models.Task {
	return &models.Task{ID: "task-1", Name: "Test task"}
}

func TestNew_RequiresRunner(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New should reject a nil Runner")
	}
}

func TestDispatcher_Dispatch_Success(t *testing.T) {
	runner := &fakeRunner{
		outputs: []*ProcessOutput{{Stdout: `done {"files_created": ["a.py"]}`}},
		errs:    []error{nil},
	}
	recorder := &captureRecorder{}
	d, err := New(Config{Runner: runner, Recorder: recorder})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	assignment, err := d.Dispatch(context.Background(), testTask(), models.CapabilityImplement, "do it", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if assignment.Result == nil {
		t.Fatal("assignment has no result")
	}
	if assignment.Result.Status != models.DispatchCompleted {
		t.Errorf("Status = %q, want completed", assignment.Result.Status)
	}
	if len(assignment.Result.FilesCreated) != 1 || assignment.Result.FilesCreated[0] != "a.py" {
		t.Errorf("FilesCreated = %v, want [a.py]", assignment.Result.FilesCreated)
	}
	if assignment.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", assignment.RetryCount)
	}

	event := recorder.last()
	if event.Kind != telemetry.EventTaskCompleted {
		t.Errorf("event kind = %q, want task_completed", event.Kind)
	}
	if event.TaskID != "task-1" {
		t.Errorf("event task = %q, want task-1", event.TaskID)
	}
}

func TestDispatcher_Dispatch_Timeout(t *testing.T) {
	runner := &fakeRunner{
		outputs: []*ProcessOutput{{ExitCode: timeoutExitCode}},
		errs:    []error{nil},
	}
	d, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	assignment, err := d.Dispatch(context.Background(), testTask(), models.CapabilityTest, "run tests", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if assignment.Result.Status != models.DispatchTimeout {
		t.Errorf("Status = %q, want timeout", assignment.Result.Status)
	}
	if assignment.Result.Success {
		t.Error("timeout should not be a success")
	}
	// Timeouts are terminal outcomes, never retried.
	if runner.callCount() != 1 {
		t.Errorf("runner calls = %d, want 1", runner.callCount())
	}
}

func TestDispatcher_Dispatch_RetriesLaunchFailure(t *testing.T) {
	launchErr := &ProcessError{Command: "agentctl", Err: errors.New("executable not found")}
	runner := &fakeRunner{
		outputs: []*ProcessOutput{nil, {Stdout: "ok"}},
		errs:    []error{launchErr, nil},
	}
	d, err := New(Config{Runner: runner, MaxRetries: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	assignment, err := d.Dispatch(context.Background(), testTask(), models.CapabilityImplement, "do it", "")
	if err != nil {
		t.Fatalf("Dispatch should succeed after retry: %v", err)
	}

	if runner.callCount() != 2 {
		t.Errorf("runner calls = %d, want 2", runner.callCount())
	}
	if assignment.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", assignment.RetryCount)
	}
	if !assignment.Result.Success {
		t.Error("result should be successful after retry")
	}
}

func TestDispatcher_Dispatch_RetriesExhausted(t *testing.T) {
	launchErr := &ProcessError{Command: "agentctl", Err: errors.New("fork failed")}
	runner := &fakeRunner{
		outputs: []*ProcessOutput{nil},
		errs:    []error{launchErr},
	}
	recorder := &captureRecorder{}
	d, err := New(Config{Runner: runner, Recorder: recorder, MaxRetries: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	assignment, err := d.Dispatch(context.Background(), testTask(), models.CapabilityImplement, "do it", "")
	if err == nil {
		t.Fatal("Dispatch should fail once retries are exhausted")
	}
	if !errors.Is(err, launchErr) {
		t.Errorf("error should wrap the launch failure, got %v", err)
	}

	// One initial attempt plus one retry.
	if runner.callCount() != 2 {
		t.Errorf("runner calls = %d, want 2", runner.callCount())
	}
	if assignment.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", assignment.RetryCount)
	}

	event := recorder.last()
	if event.Kind != telemetry.EventError {
		t.Errorf("event kind = %q, want error", event.Kind)
	}
}

func TestDispatcher_Dispatch_ValidatesInput(t *testing.T) {
	runner := &fakeRunner{outputs: []*ProcessOutput{{}}, errs: []error{nil}}
	d, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := d.Dispatch(context.Background(), nil, models.CapabilityTest, "x", ""); !errors.Is(err, ErrNilTask) {
		t.Errorf("nil task error = %v, want ErrNilTask", err)
	}
	if _, err := d.Dispatch(context.Background(), testTask(), "deploy", "x", ""); !errors.Is(err, ErrInvalidCapability) {
		t.Errorf("invalid capability error = %v, want ErrInvalidCapability", err)
	}
	if runner.callCount() != 0 {
		t.Error("runner should not be invoked for invalid input")
	}
}

func TestDispatcher_GetAssignment(t *testing.T) {
	runner := &fakeRunner{outputs: []*ProcessOutput{{Stdout: "ok"}}, errs: []error{nil}}
	d, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	assignment, err := d.Dispatch(context.Background(), testTask(), models.CapabilityReview, "review", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got, err := d.GetAssignment(assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if got.ID != assignment.ID {
		t.Errorf("ID = %q, want %q", got.ID, assignment.ID)
	}

	if _, err := d.GetAssignment("nope"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("unknown id error = %v, want ErrAssignmentNotFound", err)
	}
}

func TestDispatcher_ListAssignments(t *testing.T) {
	runner := &fakeRunner{outputs: []*ProcessOutput{{Stdout: "ok"}}, errs: []error{nil}}
	d, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		a, err := d.Dispatch(context.Background(), testTask(), models.CapabilityExplore, "look", "")
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		ids = append(ids, a.ID)
	}

	all := d.ListAssignments(0)
	if len(all) != 3 {
		t.Fatalf("ListAssignments(0) returned %d, want 3", len(all))
	}
	// Newest first.
	if all[0].ID != ids[2] {
		t.Errorf("first listed = %s, want newest %s", all[0].ID, ids[2])
	}

	limited := d.ListAssignments(2)
	if len(limited) != 2 {
		t.Errorf("ListAssignments(2) returned %d, want 2", len(limited))
	}
}

func TestDispatcher_CancelAssignment(t *testing.T) {
	runner := &fakeRunner{outputs: []*ProcessOutput{{Stdout: "ok"}}, errs: []error{nil}}
	d, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	assignment, err := d.Dispatch(context.Background(), testTask(), models.CapabilityTest, "run", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if err := d.CancelAssignment(assignment.ID); err != nil {
		t.Fatalf("CancelAssignment: %v", err)
	}

	got, err := d.GetAssignment(assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if got.Result.Status != models.DispatchCancelled {
		t.Errorf("Status = %q, want cancelled", got.Result.Status)
	}

	if err := d.CancelAssignment("nope"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("unknown id error = %v, want ErrAssignmentNotFound", err)
	}
}

func TestDispatcher_Stats(t *testing.T) {
	runner := &fakeRunner{
		outputs: []*ProcessOutput{{Stdout: "ok"}, {ExitCode: 1, Stderr: "boom"}},
		errs:    []error{nil, nil},
	}
	d, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := d.Dispatch(context.Background(), testTask(), models.CapabilityImplement, "a", ""); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), testTask(), models.CapabilityTest, "b", ""); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	stats := d.Stats()
	if stats.Counters.TotalDispatched != 2 {
		t.Errorf("TotalDispatched = %d, want 2", stats.Counters.TotalDispatched)
	}
	if stats.Counters.TotalCompleted != 1 {
		t.Errorf("TotalCompleted = %d, want 1", stats.Counters.TotalCompleted)
	}
	if stats.Counters.TotalFailed != 1 {
		t.Errorf("TotalFailed = %d, want 1", stats.Counters.TotalFailed)
	}
	if stats.Counters.PerCapability["implement"] != 1 {
		t.Errorf("PerCapability[implement] = %d, want 1", stats.Counters.PerCapability["implement"])
	}
	if stats.Assignments != 2 {
		t.Errorf("Assignments = %d, want 2", stats.Assignments)
	}
}

func TestDispatcher_ConcurrentDispatch(t *testing.T) {
	runner := &fakeRunner{outputs: []*ProcessOutput{{Stdout: "ok"}}, errs: []error{nil}}
	d, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Dispatch(context.Background(), testTask(), models.CapabilityExplore, "look", ""); err != nil {
				t.Errorf("Dispatch: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent dispatches did not finish")
	}

	if got := d.Stats().Counters.TotalDispatched; got != 8 {
		t.Errorf("TotalDispatched = %d, want 8", got)
	}
}
