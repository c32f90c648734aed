package nats

import "time"

// Subject pattern constants for NATS messaging between coordinator
// processes (spec §4.2 Message Bus transport).
const (
	// SubjectAgentHeartbeat is the pattern for agent heartbeat messages.
	// Use fmt.Sprintf(SubjectAgentHeartbeat, agentID) to create specific subjects.
	SubjectAgentHeartbeat = "agent.%s.heartbeat"

	// SubjectAgentStatus is the pattern for agent state-transition updates.
	SubjectAgentStatus = "agent.%s.status"

	// SubjectAgentCommand is the pattern for direct messages sent to a
	// specific agent via the message bus.
	SubjectAgentCommand = "agent.%s.command"

	// SubjectAgentShutdown is the pattern for agent shutdown notifications.
	SubjectAgentShutdown = "agent.%s.shutdown"

	// SubjectAllHeartbeats subscribes to all agent heartbeats.
	SubjectAllHeartbeats = "agent.*.heartbeat"

	// SubjectAllStatus subscribes to all agent status updates.
	SubjectAllStatus = "agent.*.status"

	// SubjectSystemBroadcast is used for cluster-wide announcements
	// (coordinator restarts, config reloads, shutdown).
	SubjectSystemBroadcast = "system.broadcast"

	// SubjectConflictDetected is used when the Conflict Detector raises
	// a new conflict that remote coordinator processes must observe.
	SubjectConflictDetected = "conflict.detected"

	// SubjectConsensusVote is the pattern for consensus round vote
	// submissions. Use fmt.Sprintf(SubjectConsensusVote, conflictID).
	SubjectConsensusVote = "consensus.%s.vote"

	// SubjectEscalationCreate is used when a conflict first crosses the
	// escalation threshold and needs to be broadcast for human review.
	SubjectEscalationCreate = "escalation.create"

	// SubjectEscalationForward is used when the Resolution Coordinator
	// forwards an unresolved escalation to remote notification channels.
	SubjectEscalationForward = "escalation.forward"

	// SubjectEscalationResponse is the pattern for a human operator's
	// decision on an escalated conflict.
	// Use fmt.Sprintf(SubjectEscalationResponse, escalationID).
	SubjectEscalationResponse = "escalation.response.%s"
)

// HeartbeatMessage represents an agent heartbeat published to the bus.
type HeartbeatMessage struct {
	AgentID     string    `json:"agent_id"`
	SessionID   string    `json:"session_id"`
	ProjectPath string    `json:"project_path"`
	Status      string    `json:"status"`
	CurrentTask string    `json:"current_task"`
	Timestamp   time.Time `json:"timestamp"`
}

// StatusMessage represents an agent state-machine transition.
type StatusMessage struct {
	AgentID   string    `json:"agent_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandMessage represents a directed message sent to an agent.
type CommandMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// ShutdownMessage represents a shutdown request or notification.
type ShutdownMessage struct {
	Reason   string `json:"reason"`
	Approved bool   `json:"approved"`
	Force    bool   `json:"force"`
}

// ConflictDetectedMessage announces a newly detected conflict to remote
// coordinator processes sharing the same message bus.
type ConflictDetectedMessage struct {
	ConflictID     string    `json:"conflict_id"`
	ConflictType   string    `json:"conflict_type"`
	Severity       string    `json:"severity"`
	InvolvedAgents []string  `json:"involved_agents"`
	Resource       string    `json:"resource"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConsensusVoteMessage carries a single participant's vote in a
// consensus round being run across coordinator processes.
type ConsensusVoteMessage struct {
	ConflictID  string    `json:"conflict_id"`
	Participant string    `json:"participant"`
	Approve     bool      `json:"approve"`
	Weight      float64   `json:"weight"`
	Timestamp   time.Time `json:"timestamp"`
}

// EscalationCreateMessage represents a conflict crossing the escalation
// threshold for the first time.
type EscalationCreateMessage struct {
	ID        string                 `json:"id"`
	ConflictID string                `json:"conflict_id"`
	Reason    string                 `json:"reason"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EscalationForwardMessage represents the Resolution Coordinator
// forwarding an unresolved escalation for human review.
type EscalationForwardMessage struct {
	ID                 string    `json:"id"`
	ConflictID         string    `json:"conflict_id"`
	Reason             string    `json:"reason"`
	CoordinatorContext string    `json:"coordinator_context,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// EscalationResponseMessage represents a human operator's decision on
// an escalated conflict.
type EscalationResponseMessage struct {
	ID        string    `json:"id"`
	Response  string    `json:"response"`
	From      string    `json:"from"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemBroadcastMessage represents cluster-wide announcements.
type SystemBroadcastMessage struct {
	Type      string                 `json:"type"` // shutdown, config_reload, coordinator_joined
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
