package dispatch

import (
	"errors"
	"fmt"
)

// Common errors for dispatch operations.
var (
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrInvalidCapability indicates an unknown capability kind was requested.
	ErrInvalidCapability = errors.New("invalid capability kind")
	// ErrNilTask indicates a dispatch was requested without a task record.
	ErrNilTask = errors.New("task is required")
)

// ProcessError indicates the external process could not be launched or
// exited abnormally before producing a parseable result. Process errors
// are retried with exponential backoff up to the configured maximum.
type ProcessError struct {
	// Command is the executable that failed to run.
	Command string
	// Err is the underlying launch or wait error.
	Err error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	return fmt.Sprintf("executor process %q: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessError) Unwrap() error {
	return e.Err
}
