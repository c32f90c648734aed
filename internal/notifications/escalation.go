package notifications

import (
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// Priority mirrors coretypes.MessagePriority as a small integer so
// channel filters (min-priority gates) can compare cheaply without
// importing the message-bus vocabulary.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityNormal:
		return "Normal"
	default:
		return "Low"
	}
}

// Escalation is the payload routed to every notification channel when
// the Resolution Coordinator gives up on automatic or consensus
// resolution and requests human intervention (spec §4.5 strategy 3),
// or when a resolution attempt errors out mid-execution (spec §4.5
// Failures). It is a deliberately narrow view of coretypes.Conflict so
// channels (Slack/Discord/email/toast/terminal/banner) don't need to
// know the full conflict-detection vocabulary.
type Escalation struct {
	ConflictID     string
	ConflictType   string
	Severity       coretypes.ConflictSeverity
	InvolvedAgents []string
	Scope          string
	Reason         string
	Priority       Priority
	Timestamp      time.Time
}

// NewEscalation builds an Escalation from a conflict the Resolution
// Coordinator has escalated, along with the human-readable reason it
// recorded on the Resolution's last step.
func NewEscalation(c coretypes.Conflict, reason string) Escalation {
	priority := PriorityNormal
	switch c.Severity {
	case coretypes.SeverityCritical:
		priority = PriorityCritical
	case coretypes.SeverityHigh:
		priority = PriorityHigh
	}
	return Escalation{
		ConflictID:     c.ID,
		ConflictType:   c.Type.String(),
		Severity:       c.Severity,
		InvolvedAgents: c.InvolvedAgents,
		Scope:          c.Resource,
		Reason:         reason,
		Priority:       priority,
		Timestamp:      time.Now(),
	}
}

// Summary renders a single-line human-readable description used by the
// terminal/toast/banner channels.
func (e Escalation) Summary() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "conflict " + e.ConflictID + " (" + e.ConflictType + ") needs human review"
}
