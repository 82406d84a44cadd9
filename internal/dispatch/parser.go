package dispatch

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/conductor-dev/conductor/pkg/models"
)

// executorPayload is the structured payload an agent may embed anywhere in
// its standard output. All fields are optional; missing fields default to
// empty collections rather than failing the parse.
type executorPayload struct {
	FilesCreated  []string `json:"files_created"`
	FilesModified []string `json:"files_modified"`
	TokensUsed    int64    `json:"tokens_used"`
}

// parseResult interprets the executor output as a DispatchResult.
// Success is exit code 0; exit code 124 maps to a timeout status; any
// other nonzero code maps to failure. Unparseable output never fails a
// dispatch, it only yields empty structured fields.
func parseResult(inv Invocation, out *ProcessOutput, duration time.Duration) *models.DispatchResult {
	result := &models.DispatchResult{
		Capability: inv.Capability,
		TaskID:     inv.TaskID,
		Output:     out.Stdout,
		Duration:   duration,
		Metadata: map[string]string{
			"exit_code": strconv.Itoa(out.ExitCode),
		},
		Timestamp: time.Now(),
	}

	switch out.ExitCode {
	case 0:
		result.Status = models.DispatchCompleted
		result.Success = true
	case timeoutExitCode:
		result.Status = models.DispatchTimeout
	default:
		result.Status = models.DispatchFailed
	}

	if payload := extractPayload(out.Stdout); payload != nil {
		result.FilesCreated = payload.FilesCreated
		result.FilesModified = payload.FilesModified
		result.TokensUsed = payload.TokensUsed
	}

	result.Errors = splitErrorLines(out.Stderr)

	return result
}

// extractPayload scans output for an embedded JSON object carrying the
// executor payload fields. It tries every '{' as a candidate start and
// returns the first object that decodes cleanly. Returns nil when no
// payload is found.
func extractPayload(output string) *executorPayload {
	for i := 0; i < len(output); i++ {
		if output[i] != '{' {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(output[i:]))
		var payload executorPayload
		if err := dec.Decode(&payload); err != nil {
			continue
		}

		if payload.FilesCreated != nil || payload.FilesModified != nil || payload.TokensUsed > 0 {
			return &payload
		}
	}
	return nil
}

// splitErrorLines converts stderr text into an error list, one entry per
// non-empty line.
func splitErrorLines(stderr string) []string {
	if strings.TrimSpace(stderr) == "" {
		return nil
	}

	var errs []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			errs = append(errs, line)
		}
	}
	return errs
}
