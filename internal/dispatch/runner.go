package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/conductor-dev/conductor/pkg/models"
)

// timeoutExitCode is the exit code the executor contract uses to signal
// that the agent exceeded its wall-clock budget.
const timeoutExitCode = 124

// Invocation describes one external agent-executor run.
type Invocation struct {
	// Capability is the agent capability kind to invoke.
	Capability models.CapabilityKind
	// TaskID is passed to the executor as --task-id.
	TaskID string
	// Prompt is fed to the executor on standard input.
	Prompt string
	// Timeout is passed to the executor as --timeout, in whole seconds.
	Timeout time.Duration
}

// ProcessOutput is the raw outcome of one executor run.
type ProcessOutput struct {
	// Stdout is the captured standard output.
	Stdout string
	// Stderr is the captured standard error.
	Stderr string
	// ExitCode is the process exit code; 124 signals a timeout.
	ExitCode int
}

// ProcessRunner launches the external agent-executor process.
// Implementations return a *ProcessError when the process could not be
// launched; a nonzero exit is reported through ExitCode, not an error.
type ProcessRunner interface {
	Run(ctx context.Context, inv Invocation) (*ProcessOutput, error)
}

// ExecRunner implements ProcessRunner using os/exec.
// The executor contract is:
//
//	<command> agent <capability> --task-id <id> --timeout <seconds>
//
// with the composite prompt on standard input.
type ExecRunner struct {
	command string
}

// NewExecRunner creates an ExecRunner invoking the given executable.
func NewExecRunner(command string) *ExecRunner {
	return &ExecRunner{command: command}
}

// Run executes the agent-executor process and captures its output.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*ProcessOutput, error) {
	args := []string{
		"agent", string(inv.Capability),
		"--task-id", inv.TaskID,
		"--timeout", strconv.Itoa(int(inv.Timeout.Seconds())),
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Stdin = strings.NewReader(inv.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := &ProcessOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return out, nil
	}

	// Context expiry means the process outlived its budget plus teardown
	// buffer. Report it as a timeout rather than a launch failure.
	if ctx.Err() != nil {
		out.ExitCode = timeoutExitCode
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}

	// Launch failure (executable missing, fork failure, etc).
	return nil, &ProcessError{Command: r.command, Err: err}
}

// Verify ExecRunner implements ProcessRunner at compile time.
var _ ProcessRunner = (*ExecRunner)(nil)
