package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conductor-dev/conductor/pkg/models"
)

// Plan is a declarative workflow definition loaded from YAML.
// Item aliases are file-local names; dependencies reference aliases of
// items declared earlier in the list.
type Plan struct {
	// Name is the workflow name.
	Name string `yaml:"name"`
	// Task is the task record every item executes against.
	Task PlanTask `yaml:"task"`
	// Parallel selects the pool engine instead of the sequential engine.
	// Parallel plans must not declare dependencies.
	Parallel bool `yaml:"parallel"`
	// Items are the work items, in declaration order.
	Items []PlanItem `yaml:"items"`
}

// PlanTask mirrors the externally-owned task record in plan files.
type PlanTask struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria"`
}

// PlanItem is one declared work item.
type PlanItem struct {
	// Alias is the file-local name other items reference in depends_on.
	Alias string `yaml:"alias"`
	// Capability is the agent capability kind.
	Capability string `yaml:"capability"`
	// Instruction is the free-text instruction for the agent.
	Instruction string `yaml:"instruction"`
	// Context is optional free-text context.
	Context string `yaml:"context"`
	// DependsOn lists aliases of items this item depends on.
	DependsOn []string `yaml:"depends_on"`
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	plan := &Plan{}
	if err := yaml.Unmarshal(data, plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	if err := plan.validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return plan, nil
}

// validate checks the plan for structural problems before any engine is
// built from it.
func (p *Plan) validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("plan has no items")
	}
	if p.Task.ID == "" {
		return fmt.Errorf("task id is required")
	}

	seen := make(map[string]bool)
	for i, item := range p.Items {
		if item.Alias == "" {
			return fmt.Errorf("item %d has no alias", i)
		}
		if seen[item.Alias] {
			return fmt.Errorf("duplicate item alias %q", item.Alias)
		}
		if !models.CapabilityKind(item.Capability).Valid() {
			return fmt.Errorf("item %q has invalid capability %q", item.Alias, item.Capability)
		}
		if p.Parallel && len(item.DependsOn) > 0 {
			return fmt.Errorf("item %q declares dependencies in a parallel plan", item.Alias)
		}
		for _, dep := range item.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("item %q depends on unknown or later item %q", item.Alias, dep)
			}
		}
		seen[item.Alias] = true
	}
	return nil
}

// task converts the plan task into the shared model.
func (p *Plan) task() *models.Task {
	return &models.Task{
		ID:                 p.Task.ID,
		Name:               p.Task.Name,
		Description:        p.Task.Description,
		AcceptanceCriteria: p.Task.AcceptanceCriteria,
	}
}

// BuildSequential constructs a sequential engine from the plan,
// translating item aliases to engine item IDs.
func (p *Plan) BuildSequential(dispatcher ItemDispatcher, checkpoints *CheckpointWriter) (*Sequential, error) {
	wf := NewSequential(p.Name, dispatcher, checkpoints)
	task := p.task()

	aliasToID := make(map[string]string, len(p.Items))
	for _, item := range p.Items {
		opts := []ItemOption{}
		if item.Context != "" {
			opts = append(opts, WithContext(item.Context))
		}
		if len(item.DependsOn) > 0 {
			deps := make([]string, 0, len(item.DependsOn))
			for _, dep := range item.DependsOn {
				deps = append(deps, aliasToID[dep])
			}
			opts = append(opts, WithDependencies(deps...))
		}

		id, err := wf.AddItem(models.CapabilityKind(item.Capability), task, item.Instruction, opts...)
		if err != nil {
			return nil, fmt.Errorf("build plan item %q: %w", item.Alias, err)
		}
		aliasToID[item.Alias] = id
	}

	return wf, nil
}

// BuildPool constructs a pool engine from the plan.
func (p *Plan) BuildPool(dispatcher ItemDispatcher, checkpoints *CheckpointWriter, workers int, timeout time.Duration) (*Pool, error) {
	pool := NewPool(p.Name, dispatcher, checkpoints, workers, timeout)
	task := p.task()

	for _, item := range p.Items {
		opts := []ItemOption{}
		if item.Context != "" {
			opts = append(opts, WithContext(item.Context))
		}
		if _, err := pool.AddItem(models.CapabilityKind(item.Capability), task, item.Instruction, opts...); err != nil {
			return nil, fmt.Errorf("build plan item %q: %w", item.Alias, err)
		}
	}

	return pool, nil
}
