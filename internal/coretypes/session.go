package coretypes

import "time"

// SessionStatus is the lifecycle state of a coordination session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is a bounded conversation among a set of agents scoped to a topic.
type Session struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	Participants map[string]bool `json:"participants"`
	CreatedAt    time.Time     `json:"createdAt"`
	Status       SessionStatus `json:"status"`
	CompletionReason string    `json:"completionReason,omitempty"`
	Messages     []Message     `json:"messages,omitempty"`
}

// SessionInfo is the read-only view returned by the registry's info call.
type SessionInfo struct {
	ID               string        `json:"id"`
	Topic            string        `json:"topic"`
	Participants     []string      `json:"participants"`
	CreatedAt        time.Time     `json:"createdAt"`
	Status           SessionStatus `json:"status"`
	MessageCount     int           `json:"messageCount"`
	CompletionReason string        `json:"completionReason,omitempty"`
}
