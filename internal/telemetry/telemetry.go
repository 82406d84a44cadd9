// Package telemetry provides the event sink consumed by the dispatcher.
// The orchestration core only depends on the Recorder interface; the
// SQLite-backed store in this package is one implementation of it.
package telemetry

import "time"

// EventKind represents the type of telemetry event.
type EventKind string

const (
	// EventTaskCompleted indicates a dispatch completed successfully.
	EventTaskCompleted EventKind = "task_completed"
	// EventTaskFailed indicates a dispatch completed unsuccessfully.
	EventTaskFailed EventKind = "task_failed"
	// EventError indicates a dispatch-layer error occurred.
	EventError EventKind = "error"
)

// Event is one telemetry record emitted per dispatch.
type Event struct {
	// Kind is the type of event.
	Kind EventKind
	// TaskID is the task the dispatch ran against.
	TaskID string
	// Capability is the kind of agent invocation.
	Capability string
	// Success indicates whether the dispatch succeeded.
	Success bool
	// Duration is how long the dispatch took.
	Duration time.Duration
	// TokensUsed is the consumed-resource count for the dispatch.
	TokensUsed int64
	// Error contains the error message for failure events.
	Error string
	// Metadata is a free-form map of extra event details.
	Metadata map[string]string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Recorder is the sink interface the dispatcher emits events to.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// Record persists one event. Errors are the implementation's concern;
	// the dispatcher does not consume a return value.
	Record(event Event)
}

// NopRecorder discards all events.
type NopRecorder struct{}

// Record implements Recorder by doing nothing.
func (NopRecorder) Record(Event) {}

// Verify NopRecorder implements Recorder at compile time.
var _ Recorder = NopRecorder{}
