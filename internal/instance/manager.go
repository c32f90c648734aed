// Package instance guards against more than one rhema-coordinator
// daemon binding the same admin port on a host, adapted from the
// teacher's internal/instance (PID file + port conflict resolution),
// generalized from its Windows-only assumptions to run on any OS the
// coordinator targets.
package instance

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Manager handles lifecycle management for rhema-coordinator instances.
type Manager struct {
	pidFilePath  string
	port         int
	lockFile     *os.File
	acquiredLock bool
}

// Info describes a running (or recently running) instance.
type Info struct {
	PID          int
	Port         int
	StartTime    time.Time
	IsRunning    bool
	IsResponding bool
	Version      string
	BasePath     string
}

// pidFileData is the JSON structure persisted in the PID file.
type pidFileData struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"startedAt"`
	Version   string    `json:"version"`
	BasePath  string    `json:"basePath"`
	Hostname  string    `json:"hostname"`
}

// NewManager creates a new instance manager rooted at pidFilePath.
func NewManager(pidFilePath string, port int) *Manager {
	return &Manager{pidFilePath: pidFilePath, port: port}
}

// CheckExistingInstance reports whether another coordinator is already
// running per the PID file, cleaning up stale entries along the way.
func (m *Manager) CheckExistingInstance() (*Info, error) {
	data, err := m.readPIDFile()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("instance: read pid file: %w", err)
	}

	running, err := IsProcessRunning(data.PID)
	if err != nil {
		return nil, fmt.Errorf("instance: check process: %w", err)
	}
	if !running {
		m.RemovePIDFile()
		return nil, nil
	}

	name, err := GetProcessName(data.PID)
	if err == nil && !sameProcess(name) {
		// PID reused by an unrelated process.
		m.RemovePIDFile()
		return nil, nil
	}

	responding := HealthCheck(data.Port) == nil

	return &Info{
		PID:          data.PID,
		Port:         data.Port,
		StartTime:    data.StartedAt,
		IsRunning:    true,
		IsResponding: responding,
		Version:      data.Version,
		BasePath:     data.BasePath,
	}, nil
}

// WritePIDFile records this process's PID, port, and base path.
func (m *Manager) WritePIDFile(pid, port int, basePath string) error {
	hostname, _ := os.Hostname()
	data := pidFileData{
		PID:       pid,
		Port:      port,
		StartedAt: time.Now(),
		Version:   "1.0.0",
		BasePath:  basePath,
		Hostname:  hostname,
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("instance: marshal pid data: %w", err)
	}
	if err := os.WriteFile(m.pidFilePath, raw, 0644); err != nil {
		return fmt.Errorf("instance: write pid file: %w", err)
	}
	return nil
}

func (m *Manager) readPIDFile() (*pidFileData, error) {
	raw, err := os.ReadFile(m.pidFilePath)
	if err != nil {
		return nil, err
	}
	var data pidFileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("instance: parse pid file: %w", err)
	}
	return &data, nil
}

// RemovePIDFile deletes the PID file, if present.
func (m *Manager) RemovePIDFile() error {
	if err := os.Remove(m.pidFilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("instance: remove pid file: %w", err)
	}
	return nil
}

// GetPort returns the port this manager is configured for.
func (m *Manager) GetPort() int { return m.port }

// SetPort updates the port, used once the resolver picks a different one.
func (m *Manager) SetPort(port int) { m.port = port }

func sameProcess(name string) bool {
	return name == processImageName
}
