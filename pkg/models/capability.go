package models

// CapabilityKind is the fixed category of an external agent invocation.
type CapabilityKind string

const (
	// CapabilityExplore investigates the codebase and gathers context.
	CapabilityExplore CapabilityKind = "explore"
	// CapabilityImplement writes the code for a task.
	CapabilityImplement CapabilityKind = "implement"
	// CapabilityTest writes and runs tests for a task.
	CapabilityTest CapabilityKind = "test"
	// CapabilityReview reviews completed work for quality issues.
	CapabilityReview CapabilityKind = "review"
	// CapabilityRefactor restructures code without changing behavior.
	CapabilityRefactor CapabilityKind = "refactor"
)

// Valid returns true if the capability kind is a known value.
func (k CapabilityKind) Valid() bool {
	switch k {
	case CapabilityExplore, CapabilityImplement, CapabilityTest, CapabilityReview, CapabilityRefactor:
		return true
	default:
		return false
	}
}
