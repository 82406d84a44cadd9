package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

const validSequentialPlan = `
name: auth-feature
task:
  id: task-9
  name: Add auth
  description: Add authentication to the API.
  acceptance_criteria:
    - login works
items:
  - alias: investigate
    capability: explore
    instruction: Look at the auth code.
  - alias: build
    capability: implement
    instruction: Implement auth.
    context: Reuse the session store.
    depends_on: [investigate]
  - alias: verify
    capability: test
    instruction: Test auth.
    depends_on: [build]
`

func TestLoadPlan_Valid(t *testing.T) {
	plan, err := LoadPlan(writePlanFile(t, validSequentialPlan))
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}

	if plan.Name != "auth-feature" {
		t.Errorf("Name = %q, want auth-feature", plan.Name)
	}
	if plan.Task.ID != "task-9" {
		t.Errorf("Task.ID = %q, want task-9", plan.Task.ID)
	}
	if len(plan.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(plan.Items))
	}
	if plan.Items[1].DependsOn[0] != "investigate" {
		t.Errorf("deps = %v, want [investigate]", plan.Items[1].DependsOn)
	}
}

func TestLoadPlan_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing file",
			content: "",
			wantErr: "read plan",
		},
		{
			name: "no items",
			content: `
name: empty
task:
  id: task-1
`,
			wantErr: "no items",
		},
		{
			name: "missing task id",
			content: `
name: x
items:
  - alias: a
    capability: explore
    instruction: look
`,
			wantErr: "task id",
		},
		{
			name: "duplicate alias",
			content: `
name: x
task:
  id: task-1
items:
  - alias: a
    capability: explore
    instruction: look
  - alias: a
    capability: test
    instruction: test
`,
			wantErr: "duplicate",
		},
		{
			name: "invalid capability",
			content: `
name: x
task:
  id: task-1
items:
  - alias: a
    capability: deploy
    instruction: ship it
`,
			wantErr: "invalid capability",
		},
		{
			name: "forward dependency",
			content: `
name: x
task:
  id: task-1
items:
  - alias: a
    capability: explore
    instruction: look
    depends_on: [b]
  - alias: b
    capability: test
    instruction: test
`,
			wantErr: "unknown or later",
		},
		{
			name: "parallel plan with dependencies",
			content: `
name: x
task:
  id: task-1
parallel: true
items:
  - alias: a
    capability: explore
    instruction: look
  - alias: b
    capability: test
    instruction: test
    depends_on: [a]
`,
			wantErr: "parallel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			if tt.content == "" {
				path = filepath.Join(t.TempDir(), "absent.yaml")
			} else {
				path = writePlanFile(t, tt.content)
			}

			_, err := LoadPlan(path)
			if err == nil {
				t.Fatal("LoadPlan should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestPlan_BuildSequential_TranslatesDependencies(t *testing.T) {
	plan, err := LoadPlan(writePlanFile(t, validSequentialPlan))
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}

	fd := &fakeDispatcher{}
	wf, err := plan.BuildSequential(fd, nil)
	if err != nil {
		t.Fatalf("BuildSequential: %v", err)
	}

	ok, err := wf.Execute(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !ok {
		t.Error("Execute should report success")
	}

	order := fd.dispatchOrder()
	want := []string{"Look at the auth code.", "Implement auth.", "Test auth."}
	if len(order) != len(want) {
		t.Fatalf("dispatched %d items, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("dispatch[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestPlan_BuildPool(t *testing.T) {
	content := `
name: review-batch
task:
  id: task-2
parallel: true
items:
  - alias: one
    capability: review
    instruction: Review package one.
  - alias: two
    capability: review
    instruction: Review package two.
`
	plan, err := LoadPlan(writePlanFile(t, content))
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if !plan.Parallel {
		t.Fatal("plan should be parallel")
	}

	fd := &fakeDispatcher{}
	pool, err := plan.BuildPool(fd, nil, 25, time.Minute)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if pool.Workers() != 10 {
		t.Errorf("Workers() = %d, want clamped 10", pool.Workers())
	}

	ok, err := pool.Execute(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !ok {
		t.Error("Execute should report success")
	}
	if got := len(pool.Results().Completed); got != 2 {
		t.Errorf("completed = %d, want 2", got)
	}
}
