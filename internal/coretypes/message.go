package coretypes

import (
	"encoding/json"
	"time"
)

// MessagePriority orders delivery within the message bus.
type MessagePriority int

const (
	PriorityLow MessagePriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String renders the priority the way it appears in logs and reports.
func (p MessagePriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MessageType is the closed message-type enum from spec §3, with an
// open Custom variant for values arriving from external sources.
type MessageType struct {
	kind   string
	custom string
}

var (
	MsgTaskAssignment      = MessageType{kind: "task_assignment"}
	MsgTaskCompletion       = MessageType{kind: "task_completion"}
	MsgTaskBlocked          = MessageType{kind: "task_blocked"}
	MsgResourceRequest      = MessageType{kind: "resource_request"}
	MsgResourceRelease      = MessageType{kind: "resource_release"}
	MsgConflictNotification = MessageType{kind: "conflict_notification"}
	MsgCoordinationRequest  = MessageType{kind: "coordination_request"}
	MsgStatusUpdate         = MessageType{kind: "status_update"}
	MsgKnowledgeShare       = MessageType{kind: "knowledge_share"}
	MsgDecisionRequest      = MessageType{kind: "decision_request"}
	MsgDecisionResponse     = MessageType{kind: "decision_response"}
)

var knownMessageTypes = map[string]MessageType{
	MsgTaskAssignment.kind:      MsgTaskAssignment,
	MsgTaskCompletion.kind:      MsgTaskCompletion,
	MsgTaskBlocked.kind:         MsgTaskBlocked,
	MsgResourceRequest.kind:     MsgResourceRequest,
	MsgResourceRelease.kind:     MsgResourceRelease,
	MsgConflictNotification.kind: MsgConflictNotification,
	MsgCoordinationRequest.kind: MsgCoordinationRequest,
	MsgStatusUpdate.kind:        MsgStatusUpdate,
	MsgKnowledgeShare.kind:      MsgKnowledgeShare,
	MsgDecisionRequest.kind:     MsgDecisionRequest,
	MsgDecisionResponse.kind:    MsgDecisionResponse,
}

// ParseMessageType maps a wire string to a MessageType, collapsing
// anything unrecognized into Custom(s) per spec §4.2 "Type dispatch".
func ParseMessageType(s string) MessageType {
	if t, ok := knownMessageTypes[s]; ok {
		return t
	}
	return MessageType{kind: "custom", custom: s}
}

// IsCustom reports whether this is an open Custom(string) variant.
func (t MessageType) IsCustom() bool { return t.kind == "custom" }

// String renders the wire form: the closed enum's tag, or the raw
// custom string for Custom variants.
func (t MessageType) String() string {
	if t.IsCustom() {
		return t.custom
	}
	return t.kind
}

// MarshalJSON renders the wire form (the closed enum's tag, or the raw
// custom string) as a plain JSON string, matching spec §6's "canonical
// form is JSON with camelCase keys" for the closed enums that carry an
// open Custom variant.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a wire string back into a MessageType via
// ParseMessageType, so unknown values round-trip as Custom instead of
// failing to decode.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseMessageType(s)
	return nil
}

// Message is a typed, prioritized, optionally-acked unit of delivery.
type Message struct {
	ID           string            `json:"id"`
	Type         MessageType       `json:"type"`
	Priority     MessagePriority   `json:"priority"`
	SenderID     string            `json:"senderId"`
	RecipientIDs []string          `json:"recipientIds,omitempty"`
	Content      string            `json:"content"`
	Payload      map[string]any    `json:"payload,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	RequiresAck  bool              `json:"requiresAck"`
	Expiry       *time.Duration    `json:"expiry,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// IsBroadcast reports whether the message has no explicit recipients.
func (m *Message) IsBroadcast() bool { return len(m.RecipientIDs) == 0 }

// Expired reports whether the message's expiry has elapsed as of now.
func (m *Message) Expired(now time.Time) bool {
	if m.Expiry == nil {
		return false
	}
	return m.Timestamp.Add(*m.Expiry).Before(now)
}

// BusStatistics is the running counter snapshot exposed by the bus.
type BusStatistics struct {
	Total                 int64   `json:"total"`
	Delivered              int64   `json:"delivered"`
	Failed                 int64   `json:"failed"`
	Expired                int64   `json:"expired"`
	ActiveAgents           int     `json:"activeAgents"`
	ActiveSessions         int     `json:"activeSessions"`
	AvgResponseTime        time.Duration `json:"avgResponseTime"`
	CoordinationEfficiency float64 `json:"coordinationEfficiency"`
}
