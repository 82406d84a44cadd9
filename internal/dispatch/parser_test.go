package dispatch

import (
	"reflect"
	"testing"
	"time"

	"github.com/conductor-dev/conductor/pkg/models"
)

func TestParseResult_ExitCodes(t *testing.T) {
	tests := []struct {
		name        string
		exitCode    int
		wantStatus  models.DispatchStatus
		wantSuccess bool
	}{
		{"success", 0, models.DispatchCompleted, true},
		{"failure", 1, models.DispatchFailed, false},
		{"timeout", 124, models.DispatchTimeout, false},
		{"other nonzero", 2, models.DispatchFailed, false},
	}

	inv := Invocation{Capability: models.CapabilityImplement, TaskID: "task-1"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &ProcessOutput{Stdout: "done", ExitCode: tt.exitCode}
			result := parseResult(inv, out, time.Second)

			if result.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", result.Status, tt.wantStatus)
			}
			if result.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", result.Success, tt.wantSuccess)
			}
			if result.Metadata["exit_code"] == "" {
				t.Error("Metadata should record the exit code")
			}
		})
	}
}

func TestParseResult_EmbeddedPayload(t *testing.T) {
	inv := Invocation{Capability: models.CapabilityImplement, TaskID: "task-1"}
	out := &ProcessOutput{
		Stdout: `Implemented the feature.

{"files_created": ["auth.py", "auth_test.py"], "files_modified": ["app.py"], "tokens_used": 1200}

All criteria satisfied.`,
	}

	result := parseResult(inv, out, time.Second)

	if !reflect.DeepEqual(result.FilesCreated, []string{"auth.py", "auth_test.py"}) {
		t.Errorf("FilesCreated = %v, want [auth.py auth_test.py]", result.FilesCreated)
	}
	if !reflect.DeepEqual(result.FilesModified, []string{"app.py"}) {
		t.Errorf("FilesModified = %v, want [app.py]", result.FilesModified)
	}
	if result.TokensUsed != 1200 {
		t.Errorf("TokensUsed = %d, want 1200", result.TokensUsed)
	}
	if result.Output != out.Stdout {
		t.Error("Output should carry the raw stdout")
	}
}

func TestParseResult_NoPayload(t *testing.T) {
	inv := Invocation{Capability: models.CapabilityExplore, TaskID: "task-1"}
	out := &ProcessOutput{Stdout: "Looked around, found nothing notable."}

	result := parseResult(inv, out, time.Second)

	if len(result.FilesCreated) != 0 {
		t.Errorf("FilesCreated = %v, want empty", result.FilesCreated)
	}
	if len(result.FilesModified) != 0 {
		t.Errorf("FilesModified = %v, want empty", result.FilesModified)
	}
	if !result.Success {
		t.Error("missing payload should not fail a zero-exit dispatch")
	}
}

func TestParseResult_StderrLines(t *testing.T) {
	inv := Invocation{Capability: models.CapabilityTest, TaskID: "task-1"}
	out := &ProcessOutput{
		ExitCode: 1,
		Stderr:   "first error\n\n  second error  \n",
	}

	result := parseResult(inv, out, time.Second)

	want := []string{"first error", "second error"}
	if !reflect.DeepEqual(result.Errors, want) {
		t.Errorf("Errors = %v, want %v", result.Errors, want)
	}
}

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    *executorPayload
		wantNil bool
	}{
		{
			name:   "bare object",
			output: `{"files_created": ["a.go"]}`,
			want:   &executorPayload{FilesCreated: []string{"a.go"}},
		},
		{
			name:   "surrounded by prose",
			output: `Summary first. {"files_modified": ["b.go"], "tokens_used": 5} Trailing prose.`,
			want:   &executorPayload{FilesModified: []string{"b.go"}, TokensUsed: 5},
		},
		{
			name:   "decoy brace before payload",
			output: `struct { field } then {"tokens_used": 7}`,
			want:   &executorPayload{TokensUsed: 7},
		},
		{
			name:    "no payload fields",
			output:  `{"unrelated": true}`,
			wantNil: true,
		},
		{
			name:    "no json at all",
			output:  "plain text only",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPayload(tt.output)
			if tt.wantNil {
				if got != nil {
					t.Errorf("extractPayload() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("extractPayload() returned nil")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractPayload() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSplitErrorLines_Empty(t *testing.T) {
	if got := splitErrorLines("   \n  \n"); got != nil {
		t.Errorf("splitErrorLines() = %v, want nil", got)
	}
}
