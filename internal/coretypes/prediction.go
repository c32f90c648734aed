package coretypes

import (
	"encoding/json"
	"time"
)

// PreventionActionType is the closed set of automated prevention actions,
// plus an open Custom variant, grounded on generate_prevention_actions in
// ml_conflict_prediction.rs.
type PreventionActionType struct {
	kind   string
	custom string
}

var (
	ActionRequestCoordination = PreventionActionType{kind: "request_coordination"}
	ActionNotifyAgents        = PreventionActionType{kind: "notify_agents"}
	ActionLockResource        = PreventionActionType{kind: "lock_resource"}
	ActionReorderTasks        = PreventionActionType{kind: "reorder_tasks"}
	ActionSuggestScopeSplit   = PreventionActionType{kind: "suggest_scope_split"}
)

// CustomActionType builds an open prevention-action-type variant.
func CustomActionType(name string) PreventionActionType {
	return PreventionActionType{kind: "custom", custom: name}
}

func (a PreventionActionType) String() string {
	if a.kind == "custom" {
		return a.custom
	}
	return a.kind
}

var knownActionTypes = map[string]PreventionActionType{
	ActionRequestCoordination.kind: ActionRequestCoordination,
	ActionNotifyAgents.kind:        ActionNotifyAgents,
	ActionLockResource.kind:        ActionLockResource,
	ActionReorderTasks.kind:        ActionReorderTasks,
	ActionSuggestScopeSplit.kind:   ActionSuggestScopeSplit,
}

// ParsePreventionActionType maps a wire string to a PreventionActionType,
// collapsing anything unrecognized into a Custom variant.
func ParsePreventionActionType(s string) PreventionActionType {
	if t, ok := knownActionTypes[s]; ok {
		return t
	}
	return PreventionActionType{kind: "custom", custom: s}
}

// MarshalJSON renders the wire form as a plain JSON string.
func (a PreventionActionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses a wire string back into a PreventionActionType
// via ParsePreventionActionType.
func (a *PreventionActionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = ParsePreventionActionType(s)
	return nil
}

// ActionCost is a coarse cost/effectiveness banding for a prevention action,
// matching the cost/effectiveness constants attached to each action kind.
type ActionCost struct {
	Cost          float64 `json:"cost"`
	Effectiveness float64 `json:"effectiveness"`
}

// DefaultActionCost returns the cost/effectiveness pair associated with a
// prevention action type, per the constants supplemented from the Rust
// original's generate_prevention_actions.
func DefaultActionCost(t PreventionActionType) ActionCost {
	switch t {
	case ActionRequestCoordination:
		return ActionCost{Cost: 0.3, Effectiveness: 0.9}
	case ActionNotifyAgents:
		return ActionCost{Cost: 0.1, Effectiveness: 0.7}
	case ActionLockResource:
		return ActionCost{Cost: 0.4, Effectiveness: 0.95}
	case ActionReorderTasks:
		return ActionCost{Cost: 0.5, Effectiveness: 0.7}
	case ActionSuggestScopeSplit:
		return ActionCost{Cost: 0.6, Effectiveness: 0.75}
	default:
		return ActionCost{Cost: 0.5, Effectiveness: 0.5}
	}
}

// WorkflowImpact classifies how disruptive a prevention action is expected
// to be to the agents it targets.
type WorkflowImpact string

const (
	ImpactNone     WorkflowImpact = "none"
	ImpactMinor    WorkflowImpact = "minor"
	ImpactModerate WorkflowImpact = "moderate"
	ImpactSevere   WorkflowImpact = "severe"
)

// PreventionAction is a single automated or recommended remediation,
// attached to a Prediction once its probability clears a threshold.
type PreventionAction struct {
	ID            string               `json:"id"`
	Type          PreventionActionType `json:"type"`
	TargetAgents  []string             `json:"targetAgents"`
	Priority      MessagePriority      `json:"priority"`
	Description   string               `json:"description"`
	Cost          ActionCost           `json:"cost"`
	Impact        WorkflowImpact       `json:"impact"`
	Executed      bool                 `json:"executed"`
	ExecutedAt    *time.Time           `json:"executedAt,omitempty"`
	Outcome       string               `json:"outcome,omitempty"`
}

// Prediction is the ML Predictor's forecast of a future conflict.
type Prediction struct {
	ID              string             `json:"id"`
	ConflictType    ConflictType       `json:"conflictType"`
	Probability     float64            `json:"probability"`
	Severity        ConflictSeverity   `json:"severity"`
	InvolvedAgents  []string           `json:"involvedAgents"`
	Resource        string             `json:"resource"`
	Features        map[string]float64 `json:"features"`
	PredictedAt     time.Time          `json:"predictedAt"`
	ModelID         string             `json:"modelId"`
	Actions         []PreventionAction `json:"actions,omitempty"`
	ActualOutcome   *bool              `json:"actualOutcome,omitempty"`
}

// FeatureExtractor computes zero or more named numeric signals from a
// JSON-like input for use by prediction models. Implementations
// correspond to the four default extractors supplemented from
// ml_conflict_prediction.rs: file modification, dependency, resource,
// and agent behavior. A failing extractor fails soft (spec §4.5):
// callers log the error and simply omit that extractor's features.
type FeatureExtractor interface {
	Name() string
	Extract(ctx FeatureContext) (map[string]float64, error)
}

// FeatureContext is the read-only view a FeatureExtractor inspects to
// compute its signal: the raw event payload (nested JSON-like data,
// keyed the way the reference extractors expect — "file_modification",
// "dependency", "resource", "agent_behavior") plus a snapshot of
// coordination state for extractors that need cross-agent context.
type FeatureContext struct {
	Raw             map[string]any
	Agents          []Agent
	RecentMessages  []Message
	ActiveConflicts []Conflict
	TargetResource  string
}
