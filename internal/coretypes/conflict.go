package coretypes

import (
	"encoding/json"
	"time"
)

// ConflictType categorizes what kind of resource contention was detected,
// grounded on the Rust original's conflict-type enum plus an open variant.
type ConflictType struct {
	kind   string
	custom string
}

var (
	ConflictFileOverlap       = ConflictType{kind: "file_overlap"}
	ConflictResourceContention = ConflictType{kind: "resource_contention"}
	ConflictDependencyCycle   = ConflictType{kind: "dependency_cycle"}
	ConflictScopeOverlap      = ConflictType{kind: "scope_overlap"}
	ConflictConcurrentEdit    = ConflictType{kind: "concurrent_edit"}
	ConflictMergeConflict     = ConflictType{kind: "merge_conflict"}
)

// CustomConflictType builds an open conflict-type variant.
func CustomConflictType(name string) ConflictType { return ConflictType{kind: "custom", custom: name} }

func (c ConflictType) String() string {
	if c.kind == "custom" {
		return c.custom
	}
	return c.kind
}

var knownConflictTypes = map[string]ConflictType{
	ConflictFileOverlap.kind:        ConflictFileOverlap,
	ConflictResourceContention.kind: ConflictResourceContention,
	ConflictDependencyCycle.kind:    ConflictDependencyCycle,
	ConflictScopeOverlap.kind:       ConflictScopeOverlap,
	ConflictConcurrentEdit.kind:     ConflictConcurrentEdit,
	ConflictMergeConflict.kind:      ConflictMergeConflict,
}

// ParseConflictType maps a wire string to a ConflictType, collapsing
// anything unrecognized into a Custom variant.
func ParseConflictType(s string) ConflictType {
	if t, ok := knownConflictTypes[s]; ok {
		return t
	}
	return ConflictType{kind: "custom", custom: s}
}

// MarshalJSON renders the wire form as a plain JSON string.
func (c ConflictType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON parses a wire string back into a ConflictType via
// ParseConflictType.
func (c *ConflictType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseConflictType(s)
	return nil
}

// ConflictSeverity is a closed, ordered enum used for escalation and
// threshold comparisons (spec §4.3 severity thresholds).
type ConflictSeverity int

const (
	SeverityLow ConflictSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s ConflictSeverity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SeverityFromProbability buckets a predicted conflict probability into a
// severity: >= 0.85 Critical, >= 0.65 High, >= 0.4 Medium, else Low.
func SeverityFromProbability(p float64) ConflictSeverity {
	switch {
	case p >= 0.85:
		return SeverityCritical
	case p >= 0.65:
		return SeverityHigh
	case p >= 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ConflictStatus is the lifecycle of a detected or predicted conflict.
type ConflictStatus string

const (
	ConflictDetected    ConflictStatus = "detected"
	ConflictPredicted   ConflictStatus = "predicted"
	ConflictPreventing  ConflictStatus = "preventing"
	ConflictResolving   ConflictStatus = "resolving"
	ConflictUnderReview ConflictStatus = "under_review"
	ConflictResolved    ConflictStatus = "resolved"
	ConflictEscalated   ConflictStatus = "escalated"
	ConflictIgnored     ConflictStatus = "ignored"
)

// Conflict is a detected or predicted contention between two or more agents.
type Conflict struct {
	ID             string         `json:"id"`
	Type           ConflictType   `json:"type"`
	Severity       ConflictSeverity `json:"severity"`
	Status         ConflictStatus `json:"status"`
	InvolvedAgents []string       `json:"involvedAgents"`
	Resource       string         `json:"resource"`
	Description    string         `json:"description"`
	DetectedAt     time.Time      `json:"detectedAt"`
	ResolvedAt     *time.Time     `json:"resolvedAt,omitempty"`
	ResolutionNote string         `json:"resolutionNote,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ResolutionStrategy is the closed set of strategies the Resolution
// Coordinator may choose among for a given conflict (spec §4.3).
type ResolutionStrategy string

const (
	ResolveAutomatic ResolutionStrategy = "automatic"
	ResolveConsensus ResolutionStrategy = "consensus"
	ResolveManual    ResolutionStrategy = "manual"
)

// ResolutionStep records one action taken while resolving a conflict.
type ResolutionStep struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Actor       string    `json:"actor"`
	Outcome     string    `json:"outcome"`
}

// Resolution is the full record of how a conflict was (or was not) settled.
type Resolution struct {
	ConflictID string             `json:"conflictId"`
	Strategy   ResolutionStrategy `json:"strategy"`
	Steps      []ResolutionStep   `json:"steps"`
	Succeeded  bool               `json:"succeeded"`
	FinishedAt *time.Time         `json:"finishedAt,omitempty"`
}
