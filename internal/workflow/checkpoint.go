package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conductor-dev/conductor/pkg/models"
)

// CheckpointWriter persists workflow checkpoints as JSON files, one per
// workflow or pool run, named by run ID and overwritten on each write.
// Checkpoints are an externally-inspectable audit trail; no engine reads
// them back.
type CheckpointWriter struct {
	dir string
}

// NewCheckpointWriter creates a writer targeting the given directory.
func NewCheckpointWriter(dir string) *CheckpointWriter {
	return &CheckpointWriter{dir: dir}
}

// Dir returns the directory checkpoint files are written to.
func (w *CheckpointWriter) Dir() string {
	return w.dir
}

// Path returns the checkpoint file path for a run ID.
func (w *CheckpointWriter) Path(workflowID string) string {
	return filepath.Join(w.dir, workflowID+".json")
}

// Write persists a checkpoint, replacing any previous one for the same
// run. The write is atomic via a temp file rename so external readers
// never observe a partial checkpoint.
func (w *CheckpointWriter) Write(cp *models.Checkpoint) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	path := w.Path(cp.WorkflowID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
