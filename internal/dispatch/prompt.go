package dispatch

import (
	"fmt"
	"strings"

	"github.com/conductor-dev/conductor/pkg/models"
)

// capabilityInstructions holds the fixed instruction block appended for
// each capability kind. One block per kind, never composed.
var capabilityInstructions = map[models.CapabilityKind]string{
	models.CapabilityExplore: "You are operating as an explore agent. " +
		"Investigate the codebase, gather relevant context, and report findings. Do not modify files.",
	models.CapabilityImplement: "You are operating as an implement agent. " +
		"Write the code required by the task and report every file you create or modify.",
	models.CapabilityTest: "You are operating as a test agent. " +
		"Write and run tests covering the task's acceptance criteria and report the outcome.",
	models.CapabilityReview: "You are operating as a review agent. " +
		"Review the completed work for correctness and quality issues. Do not modify files.",
	models.CapabilityRefactor: "You are operating as a refactor agent. " +
		"Restructure the code without changing behavior and report every file you modify.",
}

// buildPrompt constructs the composite prompt fed to the agent executor.
// It embeds the task record, enumerated acceptance criteria, the caller's
// instruction, optional context, and the capability instruction block.
func buildPrompt(task *models.Task, capability models.CapabilityKind, instruction, extraContext string) string {
	var sb strings.Builder

	sb.WriteString("You are working on a task.\n\n")
	sb.WriteString("Task ID: ")
	sb.WriteString(task.ID)
	sb.WriteString("\n")
	sb.WriteString("Name: ")
	sb.WriteString(task.Name)
	sb.WriteString("\n")

	if task.Description != "" {
		sb.WriteString("\nDescription:\n")
		sb.WriteString(task.Description)
		sb.WriteString("\n")
	}

	if len(task.AcceptanceCriteria) > 0 {
		sb.WriteString("\nAcceptance Criteria:\n")
		for i, criterion := range task.AcceptanceCriteria {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, criterion))
		}
	}

	sb.WriteString("\nInstruction:\n")
	sb.WriteString(instruction)
	sb.WriteString("\n")

	if extraContext != "" {
		sb.WriteString("\nContext:\n")
		sb.WriteString(extraContext)
		sb.WriteString("\n")
	}

	if block, ok := capabilityInstructions[capability]; ok {
		sb.WriteString("\n")
		sb.WriteString(block)
		sb.WriteString("\n")
	}

	sb.WriteString("\nWhen finished, provide a summary of what was done. ")
	sb.WriteString(`Include a JSON object with "files_created" and "files_modified" arrays listing any files you touched.` + "\n")

	return sb.String()
}
