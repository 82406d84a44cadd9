package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BridgeState holds the aggregate dispatch counters persisted to the
// assignment-bridge state file. Only counters are persisted, never
// per-assignment detail.
type BridgeState struct {
	// TotalDispatched is the number of dispatches that reached a terminal outcome.
	TotalDispatched int `json:"total_dispatched"`
	// TotalCompleted is the number of successful dispatches.
	TotalCompleted int `json:"total_completed"`
	// TotalFailed is the number of unsuccessful dispatches.
	TotalFailed int `json:"total_failed"`
	// TotalRetried is the number of retry attempts performed.
	TotalRetried int `json:"total_retried"`
	// PerCapability counts terminal dispatches by capability kind.
	PerCapability map[string]int `json:"per_capability"`
	// PerStatus counts terminal dispatches by dispatch status.
	PerStatus map[string]int `json:"per_status"`
	// UpdatedAt is when the state was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// newBridgeState returns an empty BridgeState with initialized maps.
func newBridgeState() *BridgeState {
	return &BridgeState{
		PerCapability: make(map[string]int),
		PerStatus:     make(map[string]int),
	}
}

// clone returns a deep copy of the state.
func (s *BridgeState) clone() *BridgeState {
	out := &BridgeState{
		TotalDispatched: s.TotalDispatched,
		TotalCompleted:  s.TotalCompleted,
		TotalFailed:     s.TotalFailed,
		TotalRetried:    s.TotalRetried,
		PerCapability:   make(map[string]int, len(s.PerCapability)),
		PerStatus:       make(map[string]int, len(s.PerStatus)),
		UpdatedAt:       s.UpdatedAt,
	}
	for k, v := range s.PerCapability {
		out.PerCapability[k] = v
	}
	for k, v := range s.PerStatus {
		out.PerStatus[k] = v
	}
	return out
}

// loadBridgeState reads the state file at path. A missing file yields an
// empty state; a corrupt file is an error.
func loadBridgeState(path string) (*BridgeState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newBridgeState(), nil
		}
		return nil, fmt.Errorf("read bridge state: %w", err)
	}

	state := newBridgeState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse bridge state: %w", err)
	}
	if state.PerCapability == nil {
		state.PerCapability = make(map[string]int)
	}
	if state.PerStatus == nil {
		state.PerStatus = make(map[string]int)
	}
	return state, nil
}

// LoadBridgeState reads the persisted dispatch counters for read-only
// inspection, such as the status command. A missing file yields an
// empty state.
func LoadBridgeState(path string) (*BridgeState, error) {
	return loadBridgeState(path)
}

// saveBridgeState writes the state file atomically via a temp file rename.
func saveBridgeState(path string, state *BridgeState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bridge state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write bridge state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace bridge state: %w", err)
	}
	return nil
}
