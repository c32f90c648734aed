// Package agentstate implements the Agent State Manager: agent
// admission, the Idle/Working/Blocked/Completed state machine, heartbeat
// and health tracking, and crash-safe snapshot persistence.
package agentstate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// Config bounds the manager's admission, timing, and persistence behavior.
type Config struct {
	MaxConcurrentAgents int
	MaxBlockTime        time.Duration
	MaxHeartbeatInterval time.Duration
	HealthCheckInterval  time.Duration
	CleanupInterval      time.Duration
	PersistInterval      time.Duration
	StateDir             string
	MaxStateFiles        int
	MaxHistorySize       int
}

// DefaultConfig mirrors the defaults carried over from the agent state
// manager this package is modeled on.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentAgents:  50,
		MaxBlockTime:         10 * time.Minute,
		MaxHeartbeatInterval: 60 * time.Second,
		HealthCheckInterval:  30 * time.Second,
		CleanupInterval:      5 * time.Minute,
		PersistInterval:      30 * time.Second,
		StateDir:             ".rhema/agent_states",
		MaxStateFiles:        10,
		MaxHistorySize:       1000,
	}
}

// Manager tracks every registered agent's current state, its bookkeeping
// metadata, and the append-only transition history, guarded by a single
// mutex in the manner of the teacher's mutex-guarded-map components.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	agents   map[string]coretypes.AgentStatus
	metadata map[string]coretypes.AgentMetadata
	history  []coretypes.StateTransition
}

// NewManager constructs an empty manager with the given configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		agents:   make(map[string]coretypes.AgentStatus),
		metadata: make(map[string]coretypes.AgentMetadata),
	}
}

var validTransitions = map[coretypes.AgentStatus]map[coretypes.AgentStatus]bool{
	coretypes.AgentIdle: {
		coretypes.AgentWorking:   true,
		coretypes.AgentCompleted: true,
	},
	coretypes.AgentWorking: {
		coretypes.AgentIdle:      true,
		coretypes.AgentBlocked:   true,
		coretypes.AgentCompleted: true,
	},
	coretypes.AgentBlocked: {
		coretypes.AgentIdle:      true,
		coretypes.AgentWorking:   true,
		coretypes.AgentCompleted: true,
	},
	coretypes.AgentCompleted: {},
}

// Join admits a new agent in the Idle state.
func (m *Manager) Join(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[id]; ok {
		return coretypes.NewAdmissionError(coretypes.ErrAgentAlreadyExists,
			fmt.Sprintf("agent %s already exists", id))
	}
	if len(m.agents) >= m.cfg.MaxConcurrentAgents {
		return coretypes.NewAdmissionError(coretypes.ErrMaxConcurrentAgentsExceeded,
			fmt.Sprintf("maximum concurrent agents (%d) exceeded", m.cfg.MaxConcurrentAgents))
	}

	m.agents[id] = coretypes.AgentIdle
	m.metadata[id] = coretypes.NewAgentMetadata()
	m.recordTransition(id, nil, coretypes.AgentIdle, "agent joined system")
	return nil
}

// Leave removes an agent provided it holds no active locks (is not
// currently Working or Blocked).
func (m *Manager) Leave(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.agents[id]
	if !ok {
		return coretypes.NewAdmissionError(coretypes.ErrAgentNotFound,
			fmt.Sprintf("agent %s not found", id))
	}
	if current == coretypes.AgentWorking || current == coretypes.AgentBlocked {
		return coretypes.NewAdmissionError(coretypes.ErrAgentHasActiveLocks,
			fmt.Sprintf("agent %s has active locks and cannot leave", id))
	}

	from := current
	m.recordTransition(id, &from, coretypes.AgentCompleted, "agent left system")
	delete(m.agents, id)
	delete(m.metadata, id)
	return nil
}

// SetState drives the agent's state machine, rejecting transitions not in
// the valid-transition table and updating scope/blocked-since bookkeeping
// for the destination state. task is the current-task reference to
// record when transitioning into Working, per spec §3's "An agent in
// Working has a current_task" invariant; it is optional when the agent
// already carries a current task forward from before a Blocked
// interruption, but a first entry into Working with no task (new or
// carried-forward) is rejected.
func (m *Manager) SetState(id string, next coretypes.AgentStatus, reason string, task ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.agents[id]
	if !ok {
		return coretypes.NewAdmissionError(coretypes.ErrAgentNotFound,
			fmt.Sprintf("agent %s not found", id))
	}
	if !validTransitions[current][next] {
		return coretypes.NewStateError(coretypes.ErrInvalidTransition,
			fmt.Sprintf("agent %s: invalid transition %s -> %s", id, current, next))
	}

	md := m.metadata[id]
	if next == coretypes.AgentWorking {
		if len(task) > 0 && task[0] != "" {
			md.CurrentTask = task[0]
		}
		if md.CurrentTask == "" {
			return coretypes.NewValidationError(
				fmt.Sprintf("agent %s: cannot transition to working without a current task", id))
		}
	}

	md.LastActive = time.Now()
	switch next {
	case coretypes.AgentWorking:
		md.OperationsCount++
		md.BlockedSince = nil
	case coretypes.AgentBlocked:
		now := time.Now()
		md.BlockedSince = &now
	case coretypes.AgentCompleted:
		md.BlockedSince = nil
	}
	m.metadata[id] = md

	from := current
	m.recordTransition(id, &from, next, reason)
	m.agents[id] = next
	return nil
}

// Heartbeat refreshes an agent's liveness timestamp and forces it
// healthy. task, if non-empty, updates the agent's current-task
// reference without requiring a state transition, e.g. a periodic
// heartbeat that reports the task an already-Working agent is on.
func (m *Manager) Heartbeat(id string, task ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.metadata[id]
	if !ok {
		return coretypes.NewAdmissionError(coretypes.ErrAgentNotFound,
			fmt.Sprintf("agent %s not found", id))
	}
	now := time.Now()
	md.LastHeartbeat = &now
	md.Health = coretypes.HealthHealthy
	if len(task) > 0 && task[0] != "" {
		md.CurrentTask = task[0]
	}
	m.metadata[id] = md
	return nil
}

// GetMetadata returns a copy of an agent's metadata.
func (m *Manager) GetMetadata(id string) (coretypes.AgentMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.metadata[id]
	if !ok {
		return coretypes.AgentMetadata{}, coretypes.NewAdmissionError(coretypes.ErrAgentNotFound,
			fmt.Sprintf("agent %s not found", id))
	}
	return md, nil
}

// GetState returns an agent's current state.
func (m *Manager) GetState(id string) (coretypes.AgentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.agents[id]
	if !ok {
		return "", coretypes.NewAdmissionError(coretypes.ErrAgentNotFound,
			fmt.Sprintf("agent %s not found", id))
	}
	return s, nil
}

// GetHistory returns the most recent transitions for an agent, newest
// first, bounded by limit.
func (m *Manager) GetHistory(id string, limit int) []coretypes.StateTransition {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []coretypes.StateTransition
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].AgentID == id {
			out = append(out, m.history[i])
		}
	}
	return out
}

// Statistics tallies agents by current state.
func (m *Manager) Statistics() coretypes.AgentStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s coretypes.AgentStatistics
	for _, state := range m.agents {
		s.Total++
		switch state {
		case coretypes.AgentIdle:
			s.Idle++
		case coretypes.AgentWorking:
			s.Working++
		case coretypes.AgentBlocked:
			s.Blocked++
		case coretypes.AgentCompleted:
			s.Completed++
		}
	}
	return s
}

// HealthStatistics tallies agents by health classification.
func (m *Manager) HealthStatistics() coretypes.HealthStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s coretypes.HealthStatistics
	for _, md := range m.metadata {
		s.Total++
		switch md.Health {
		case coretypes.HealthHealthy:
			s.Healthy++
		case coretypes.HealthDegraded:
			s.Degraded++
		case coretypes.HealthUnhealthy:
			s.Unhealthy++
		default:
			s.Unknown++
		}
	}
	return s
}

// Validate checks invariants that SetState does not itself enforce:
// every Blocked agent must carry a BlockedSince, every Working agent
// must carry a CurrentTask (spec §3, tested by §8's "∀ agent a with
// state=Working ⇒ metadata(a).current_task is set"), and history must
// only reference agents it recognizes. It never auto-repairs.
func (m *Manager) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, state := range m.agents {
		md, ok := m.metadata[id]
		if !ok {
			return coretypes.NewValidationError(fmt.Sprintf("agent %s has state but no metadata", id))
		}
		if state == coretypes.AgentBlocked && md.BlockedSince == nil {
			return coretypes.NewValidationError(
				fmt.Sprintf("agent %s is blocked but has no blocked_since timestamp", id))
		}
		if state == coretypes.AgentWorking && md.CurrentTask == "" {
			return coretypes.NewValidationError(
				fmt.Sprintf("agent %s is working but has no current_task", id))
		}
	}
	return nil
}

func (m *Manager) recordTransition(id string, from *coretypes.AgentStatus, to coretypes.AgentStatus, reason string) {
	m.history = append(m.history, coretypes.StateTransition{
		Timestamp: time.Now(),
		AgentID:   id,
		FromState: from,
		ToState:   to,
		Reason:    reason,
	})
}

// checkHealth marks Unhealthy any agent whose heartbeat is older than the
// configured max interval.
func (m *Manager) checkHealth() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, md := range m.metadata {
		if md.LastHeartbeat == nil {
			continue
		}
		if now.Sub(*md.LastHeartbeat) > m.cfg.MaxHeartbeatInterval {
			md.Health = coretypes.HealthUnhealthy
			m.metadata[id] = md
		}
	}
}

// checkProgress unblocks any agent that has been Blocked longer than the
// configured max block time.
func (m *Manager) checkProgress() {
	m.mu.Lock()
	var toUnblock []string
	now := time.Now()
	for id, state := range m.agents {
		if state != coretypes.AgentBlocked {
			continue
		}
		md := m.metadata[id]
		if md.BlockedSince != nil && now.Sub(*md.BlockedSince) > m.cfg.MaxBlockTime {
			toUnblock = append(toUnblock, id)
		}
	}
	m.mu.Unlock()

	for _, id := range toUnblock {
		_ = m.SetState(id, coretypes.AgentIdle, "unblocked after exceeding max block time")
	}
}

// cleanupStale removes agents whose heartbeat is older than 3x the
// configured max heartbeat interval.
func (m *Manager) cleanupStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	threshold := 3 * m.cfg.MaxHeartbeatInterval
	for id, md := range m.metadata {
		if md.LastHeartbeat != nil && now.Sub(*md.LastHeartbeat) > threshold {
			delete(m.agents, id)
			delete(m.metadata, id)
		}
	}
}

// cleanupHistory truncates the transition history to the configured
// maximum, dropping the oldest entries.
func (m *Manager) cleanupHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) > m.cfg.MaxHistorySize {
		drop := len(m.history) - m.cfg.MaxHistorySize
		m.history = append([]coretypes.StateTransition(nil), m.history[drop:]...)
	}
}

func (m *Manager) snapshotLocked() agentStateData {
	agents := make(map[string]coretypes.AgentStatus, len(m.agents))
	for k, v := range m.agents {
		agents[k] = v
	}
	metadata := make(map[string]coretypes.AgentMetadata, len(m.metadata))
	for k, v := range m.metadata {
		metadata[k] = v
	}
	history := append([]coretypes.StateTransition(nil), m.history...)
	sort.Slice(history, func(i, j int) bool { return history[i].Timestamp.Before(history[j].Timestamp) })
	return agentStateData{
		Agents:    agents,
		Metadata:  metadata,
		History:   history,
		Timestamp: time.Now(),
	}
}
