package agentstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// agentStateData is the full on-disk representation of a snapshot: the
// agent table, metadata, and bounded history at the moment it was taken.
type agentStateData struct {
	Agents    map[string]coretypes.AgentStatus    `json:"agents"`
	Metadata  map[string]coretypes.AgentMetadata  `json:"agentMetadata"`
	History   []coretypes.StateTransition         `json:"stateHistory"`
	Timestamp time.Time                           `json:"timestamp"`
}

// Snapshot writes the current agent table, metadata, and history to a
// new file in the configured state directory. The write is atomic: data
// is written to a temp file in the same directory and renamed into
// place, so a reader never observes a partially written snapshot.
func (m *Manager) Snapshot() error {
	if m.cfg.StateDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.cfg.StateDir, 0o755); err != nil {
		return coretypes.NewTransientError(fmt.Sprintf("create state directory: %v", err))
	}

	m.mu.Lock()
	data := m.snapshotLocked()
	m.mu.Unlock()

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return coretypes.NewTransientError(fmt.Sprintf("marshal state: %v", err))
	}

	filename := fmt.Sprintf("agent_states_%s.json", data.Timestamp.Format("20060102_150405.000000000"))
	target := filepath.Join(m.cfg.StateDir, filename)

	tmp, err := os.CreateTemp(m.cfg.StateDir, ".agent_states_*.tmp")
	if err != nil {
		return coretypes.NewTransientError(fmt.Sprintf("create temp state file: %v", err))
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return coretypes.NewTransientError(fmt.Sprintf("write temp state file: %v", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return coretypes.NewTransientError(fmt.Sprintf("sync temp state file: %v", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return coretypes.NewTransientError(fmt.Sprintf("close temp state file: %v", err))
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return coretypes.NewTransientError(fmt.Sprintf("rename state file: %v", err))
	}

	return m.pruneOldSnapshots()
}

// snapshotFiles returns the state directory's snapshot files sorted
// newest-first by modification time.
func (m *Manager) snapshotFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(m.cfg.StateDir, "agent_states_*.json"))
	if err != nil {
		return nil, err
	}
	type entry struct {
		path    string
		modTime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: path, modTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.After(entries[j].modTime) })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.path
	}
	return out, nil
}

// pruneOldSnapshots deletes snapshot files beyond the configured retention
// count, oldest first.
func (m *Manager) pruneOldSnapshots() error {
	if m.cfg.MaxStateFiles <= 0 {
		return nil
	}
	files, err := m.snapshotFiles()
	if err != nil {
		return coretypes.NewTransientError(fmt.Sprintf("list state files: %v", err))
	}
	if len(files) <= m.cfg.MaxStateFiles {
		return nil
	}
	for _, path := range files[m.cfg.MaxStateFiles:] {
		_ = os.Remove(path)
	}
	return nil
}

// LoadLatestSnapshot loads the newest readable snapshot in the state
// directory. A snapshot that fails to parse (e.g. truncated by a crash
// mid-write, in the unlikely case the atomic rename itself did not
// complete) is skipped in favor of the next-newest file.
func (m *Manager) LoadLatestSnapshot() error {
	if m.cfg.StateDir == "" {
		return nil
	}
	if _, err := os.Stat(m.cfg.StateDir); os.IsNotExist(err) {
		return nil
	}

	files, err := m.snapshotFiles()
	if err != nil {
		return coretypes.NewTransientError(fmt.Sprintf("list state files: %v", err))
	}

	var lastErr error
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		var data agentStateData
		if err := json.Unmarshal(raw, &data); err != nil {
			lastErr = err
			continue
		}

		m.mu.Lock()
		m.agents = data.Agents
		if m.agents == nil {
			m.agents = make(map[string]coretypes.AgentStatus)
		}
		m.metadata = data.Metadata
		if m.metadata == nil {
			m.metadata = make(map[string]coretypes.AgentMetadata)
		}
		m.history = data.History
		m.mu.Unlock()
		return nil
	}

	if lastErr != nil {
		return coretypes.NewTransientError(fmt.Sprintf("no readable snapshot found: %v", lastErr))
	}
	return nil
}
