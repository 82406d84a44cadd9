package models

import "time"

// Checkpoint is a persisted, point-in-time snapshot of workflow progress.
// It is written for external inspection only; engines never read it back.
type Checkpoint struct {
	// ID is the unique identifier for this checkpoint.
	ID string `json:"id"`
	// WorkflowID is the workflow or pool run this checkpoint belongs to.
	WorkflowID string `json:"workflow_id"`
	// Phase is the current phase marker at the time of the snapshot.
	Phase string `json:"phase"`
	// CompletedItems lists the IDs of items completed so far.
	CompletedItems []string `json:"completed_items"`
	// Timestamp is when the checkpoint was written.
	Timestamp time.Time `json:"timestamp"`
	// State summarizes workflow status and counts.
	State CheckpointState `json:"state"`
}

// CheckpointState is the small state summary carried by a checkpoint.
type CheckpointState struct {
	// Status is the workflow status at snapshot time.
	Status string `json:"status"`
	// TotalItems is the number of items in the workflow.
	TotalItems int `json:"total_items"`
	// CompletedItems is the number of items that completed successfully.
	CompletedItems int `json:"completed_items"`
	// FailedItems is the number of items that failed.
	FailedItems int `json:"failed_items"`
}
