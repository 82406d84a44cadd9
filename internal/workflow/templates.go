package workflow

import (
	"fmt"

	"github.com/conductor-dev/conductor/pkg/models"
)

// Phase instructions used by the workflow templates. One fixed
// instruction per phase; the task record carries the specifics.
const (
	investigateInstruction = "Investigate the codebase areas relevant to this task and summarize the approach to take."
	buildInstruction       = "Implement the task according to the investigation findings and the acceptance criteria."
	verifyInstruction      = "Verify the implementation against each acceptance criterion and report the outcome."
	reviewInstruction      = "Review the implemented changes for correctness, clarity, and regressions."
)

// NewFeatureWorkflow pre-populates a sequential workflow with the
// standard feature phase sequence: investigate, build, verify, review.
// Each phase depends on the previous one.
func NewFeatureWorkflow(dispatcher ItemDispatcher, checkpoints *CheckpointWriter, task *models.Task) (*Sequential, error) {
	wf := NewSequential("feature", dispatcher, checkpoints)

	investigate, err := wf.AddItem(models.CapabilityExplore, task, investigateInstruction)
	if err != nil {
		return nil, fmt.Errorf("feature workflow: %w", err)
	}
	build, err := wf.AddItem(models.CapabilityImplement, task, buildInstruction, WithDependencies(investigate))
	if err != nil {
		return nil, fmt.Errorf("feature workflow: %w", err)
	}
	verify, err := wf.AddItem(models.CapabilityTest, task, verifyInstruction, WithDependencies(build))
	if err != nil {
		return nil, fmt.Errorf("feature workflow: %w", err)
	}
	if _, err := wf.AddItem(models.CapabilityReview, task, reviewInstruction, WithDependencies(verify)); err != nil {
		return nil, fmt.Errorf("feature workflow: %w", err)
	}

	return wf, nil
}

// NewBugfixWorkflow pre-populates a sequential workflow with the bugfix
// phase sequence: investigate, build, verify.
func NewBugfixWorkflow(dispatcher ItemDispatcher, checkpoints *CheckpointWriter, task *models.Task) (*Sequential, error) {
	wf := NewSequential("bugfix", dispatcher, checkpoints)

	investigate, err := wf.AddItem(models.CapabilityExplore, task, investigateInstruction)
	if err != nil {
		return nil, fmt.Errorf("bugfix workflow: %w", err)
	}
	build, err := wf.AddItem(models.CapabilityImplement, task, buildInstruction, WithDependencies(investigate))
	if err != nil {
		return nil, fmt.Errorf("bugfix workflow: %w", err)
	}
	if _, err := wf.AddItem(models.CapabilityTest, task, verifyInstruction, WithDependencies(build)); err != nil {
		return nil, fmt.Errorf("bugfix workflow: %w", err)
	}

	return wf, nil
}

// NewReviewWorkflow pre-populates a sequential workflow with a single
// review phase.
func NewReviewWorkflow(dispatcher ItemDispatcher, checkpoints *CheckpointWriter, task *models.Task) (*Sequential, error) {
	wf := NewSequential("review", dispatcher, checkpoints)

	if _, err := wf.AddItem(models.CapabilityReview, task, reviewInstruction); err != nil {
		return nil, fmt.Errorf("review workflow: %w", err)
	}

	return wf, nil
}
