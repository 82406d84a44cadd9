// Package models defines the shared data model for conductor.
package models

// Task is the externally-owned task record a work item executes against.
// Conductor reads it but never mutates it; the task store lives elsewhere.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Name is the short human-readable name of the task.
	Name string `json:"name"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// AcceptanceCriteria is the ordered list of completion criteria.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
}
