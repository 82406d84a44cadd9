package models

import "time"

// ItemState represents the current state of a work item within a workflow.
type ItemState string

const (
	// ItemStatePending indicates the item has not been dispatched yet.
	ItemStatePending ItemState = "pending"
	// ItemStateDispatched indicates the item is executing externally.
	ItemStateDispatched ItemState = "dispatched"
	// ItemStateCompleted indicates the item finished successfully.
	ItemStateCompleted ItemState = "completed"
	// ItemStateFailed indicates the item finished unsuccessfully.
	ItemStateFailed ItemState = "failed"
)

// Valid returns true if the state is a known value.
func (s ItemState) Valid() bool {
	switch s {
	case ItemStatePending, ItemStateDispatched, ItemStateCompleted, ItemStateFailed:
		return true
	default:
		return false
	}
}

// validItemTransitions defines the allowed item state transitions.
// Items never move backward: pending -> dispatched -> completed|failed.
var validItemTransitions = map[ItemState]map[ItemState]bool{
	ItemStatePending: {
		ItemStateDispatched: true,
		ItemStateFailed:     true,
	},
	ItemStateDispatched: {
		ItemStateCompleted: true,
		ItemStateFailed:    true,
	},
	// Terminal states.
	ItemStateCompleted: {},
	ItemStateFailed:    {},
}

// CanTransitionItem checks if an item state transition is valid.
func CanTransitionItem(from, to ItemState) bool {
	targets, ok := validItemTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// WorkItem is one unit of orchestrated work inside a workflow or pool.
// It is owned exclusively by the engine that created it.
type WorkItem struct {
	// ID is the item identifier, unique within its workflow.
	ID string `json:"id"`
	// Capability is the kind of external agent invocation required.
	Capability CapabilityKind `json:"capability"`
	// Instruction is the caller-supplied free-text instruction.
	Instruction string `json:"instruction"`
	// Task is the externally-owned task record this item executes against.
	Task *Task `json:"task"`
	// Context is optional free-text context passed through to the agent.
	Context string `json:"context,omitempty"`
	// DependsOn lists item IDs that must complete before this item.
	DependsOn []string `json:"depends_on,omitempty"`
	// State is the current lifecycle state of the item.
	State ItemState `json:"state"`
	// Result holds the dispatch outcome once available.
	Result *DispatchResult `json:"result,omitempty"`
	// Error contains the failure reason if the item failed before dispatch.
	Error string `json:"error,omitempty"`
	// StartedAt is when the item began executing.
	StartedAt time.Time `json:"started_at,omitzero"`
	// CompletedAt is when the item reached a terminal state.
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// Duration returns how long the item executed, or zero if it never started.
func (w *WorkItem) Duration() time.Duration {
	if w.StartedAt.IsZero() || w.CompletedAt.IsZero() {
		return 0
	}
	return w.CompletedAt.Sub(w.StartedAt)
}

// Terminal returns true if the item reached a terminal state.
func (w *WorkItem) Terminal() bool {
	return w.State == ItemStateCompleted || w.State == ItemStateFailed
}
