package models

import "time"

// DispatchStatus is the terminal status of one external execution.
type DispatchStatus string

const (
	// DispatchCompleted indicates the external process finished successfully.
	DispatchCompleted DispatchStatus = "completed"
	// DispatchFailed indicates the external process finished unsuccessfully.
	DispatchFailed DispatchStatus = "failed"
	// DispatchTimeout indicates the external process exceeded its wall-clock budget.
	DispatchTimeout DispatchStatus = "timeout"
	// DispatchCancelled indicates the assignment was cancelled after the fact.
	DispatchCancelled DispatchStatus = "cancelled"
)

// DispatchResult is the parsed outcome of one external process execution.
// It is immutable once produced.
type DispatchResult struct {
	// Capability is the kind of agent invocation that produced this result.
	Capability CapabilityKind `json:"capability"`
	// TaskID is the task the execution ran against.
	TaskID string `json:"task_id"`
	// Status is the terminal status of the execution.
	Status DispatchStatus `json:"status"`
	// Success indicates whether the execution completed successfully.
	Success bool `json:"success"`
	// Output is the raw textual output from the process.
	Output string `json:"output"`
	// FilesCreated lists file paths the agent reported creating.
	FilesCreated []string `json:"files_created,omitempty"`
	// FilesModified lists file paths the agent reported modifying.
	FilesModified []string `json:"files_modified,omitempty"`
	// Errors lists error strings captured from the execution.
	Errors []string `json:"errors,omitempty"`
	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`
	// TokensUsed is the consumed-resource count reported for the execution.
	TokensUsed int64 `json:"tokens_used"`
	// Metadata is a free-form map of extra execution details.
	Metadata map[string]string `json:"metadata,omitempty"`
	// Timestamp is when the result was produced.
	Timestamp time.Time `json:"timestamp"`
}

// Assignment is the dispatcher's record of one execution attempt of a
// work item, including retries. A workflow item references an assignment
// but does not own it.
type Assignment struct {
	// ID is the unique identifier for this assignment.
	ID string `json:"id"`
	// TaskID is the task being executed.
	TaskID string `json:"task_id"`
	// Capability is the kind of agent invocation.
	Capability CapabilityKind `json:"capability"`
	// CreatedAt is when the assignment was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the external process was first launched.
	StartedAt time.Time `json:"started_at,omitzero"`
	// CompletedAt is when the assignment reached a terminal state.
	CompletedAt time.Time `json:"completed_at,omitzero"`
	// Result holds the dispatch outcome once available.
	Result *DispatchResult `json:"result,omitempty"`
	// RetryCount is the number of retries performed, bounded by MaxRetries.
	RetryCount int `json:"retry_count"`
	// MaxRetries is the configured retry ceiling for this assignment.
	MaxRetries int `json:"max_retries"`
}
