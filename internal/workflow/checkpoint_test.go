package workflow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conductor-dev/conductor/pkg/models"
)

func TestCheckpointWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "checkpoints")
	writer := NewCheckpointWriter(dir)

	cp := &models.Checkpoint{
		ID:             "cp-1",
		WorkflowID:     "wf-1",
		Phase:          "item-a",
		CompletedItems: []string{"item-a"},
		Timestamp:      time.Now(),
		State: models.CheckpointState{
			Status:         "running",
			TotalItems:     3,
			CompletedItems: 1,
		},
	}

	if err := writer.Write(cp); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(writer.Path("wf-1"))
	if err != nil {
		t.Fatalf("read checkpoint: %v", err)
	}

	var got models.Checkpoint
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("parse checkpoint: %v", err)
	}
	if got.WorkflowID != "wf-1" || got.Phase != "item-a" {
		t.Errorf("checkpoint = %+v, want wf-1/item-a", got)
	}
}

func TestCheckpointWriter_Overwrites(t *testing.T) {
	writer := NewCheckpointWriter(t.TempDir())

	first := &models.Checkpoint{ID: "cp-1", WorkflowID: "wf-1", Phase: "item-a", CompletedItems: []string{"item-a"}}
	second := &models.Checkpoint{ID: "cp-2", WorkflowID: "wf-1", Phase: "item-b", CompletedItems: []string{"item-a", "item-b"}}

	if err := writer.Write(first); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := writer.Write(second); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(writer.Path("wf-1"))
	if err != nil {
		t.Fatalf("read checkpoint: %v", err)
	}

	var got models.Checkpoint
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("parse checkpoint: %v", err)
	}
	if got.ID != "cp-2" {
		t.Errorf("ID = %q, want cp-2; later writes replace earlier ones", got.ID)
	}
	if len(got.CompletedItems) != 2 {
		t.Errorf("CompletedItems = %v, want 2 entries", got.CompletedItems)
	}

	// No leftover temp file from the atomic rename.
	if _, err := os.Stat(writer.Path("wf-1") + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after Write")
	}
}
