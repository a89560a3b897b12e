package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// DefaultStateFile is used when no state file is configured.
const DefaultStateFile = "sync-state.json"

// SyncState keeps track of which events have been written.
// The key is "<target>/<event UID>", and the value is the id assigned by the calendar.
type SyncState map[string]string

func stateKey(target, uid string) string {
	if target == "" {
		return uid
	}
	return target + "/" + uid
}

// loadState loads the sync state from a JSON file. A missing file is an
// empty state.
func loadState(path string) (SyncState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(SyncState), nil
	}
	if err != nil {
		return nil, err
	}
	state := make(SyncState)
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse sync state %s: %w", path, err)
	}
	if state == nil {
		state = make(SyncState)
	}
	return state, nil
}

// saveState writes the state as indented JSON.
func saveState(path string, state SyncState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
