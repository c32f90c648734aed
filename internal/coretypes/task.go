package coretypes

import (
	"encoding/json"
	"time"
)

// TaskType categorizes the kind of work a task represents.
type TaskType struct {
	kind   string
	custom string
}

var (
	TaskBugFix        = TaskType{kind: "bug_fix"}
	TaskFeature        = TaskType{kind: "feature"}
	TaskRefactor       = TaskType{kind: "refactor"}
	TaskDocumentation  = TaskType{kind: "documentation"}
	TaskTesting        = TaskType{kind: "testing"}
	TaskPerformance    = TaskType{kind: "performance"}
	TaskSecurity       = TaskType{kind: "security"}
	TaskMaintenance    = TaskType{kind: "maintenance"}
	TaskResearch       = TaskType{kind: "research"}
)

// CustomTaskType builds an open task-type variant.
func CustomTaskType(name string) TaskType { return TaskType{kind: "custom", custom: name} }

func (t TaskType) String() string {
	if t.kind == "custom" {
		return t.custom
	}
	return t.kind
}

var knownTaskTypes = map[string]TaskType{
	TaskBugFix.kind:       TaskBugFix,
	TaskFeature.kind:      TaskFeature,
	TaskRefactor.kind:     TaskRefactor,
	TaskDocumentation.kind: TaskDocumentation,
	TaskTesting.kind:      TaskTesting,
	TaskPerformance.kind:  TaskPerformance,
	TaskSecurity.kind:     TaskSecurity,
	TaskMaintenance.kind:  TaskMaintenance,
	TaskResearch.kind:     TaskResearch,
}

// ParseTaskType maps a wire string to a TaskType, collapsing anything
// unrecognized into a Custom variant, mirroring ParseMessageType.
func ParseTaskType(s string) TaskType {
	if t, ok := knownTaskTypes[s]; ok {
		return t
	}
	return TaskType{kind: "custom", custom: s}
}

// MarshalJSON renders the wire form as a plain JSON string.
func (t TaskType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a wire string back into a TaskType via
// ParseTaskType.
func (t *TaskType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseTaskType(s)
	return nil
}

// ParseTaskPriority maps a wire string to a TaskPriority, defaulting to
// TaskNormal for anything unrecognized.
func ParseTaskPriority(s string) TaskPriority {
	switch s {
	case "low":
		return TaskLow
	case "high":
		return TaskHigh
	case "critical":
		return TaskCritical
	case "emergency":
		return TaskEmergency
	default:
		return TaskNormal
	}
}

// TaskPriority is a closed, ordered enum.
type TaskPriority int

const (
	TaskLow TaskPriority = iota
	TaskNormal
	TaskHigh
	TaskCritical
	TaskEmergency
)

// Score maps the priority enum to the reference priority score per §4.4.
func (p TaskPriority) Score() float64 {
	switch p {
	case TaskLow:
		return 0.2
	case TaskNormal:
		return 0.4
	case TaskHigh:
		return 0.7
	case TaskCritical:
		return 0.9
	case TaskEmergency:
		return 1.0
	default:
		return 0.0
	}
}

func (p TaskPriority) String() string {
	switch p {
	case TaskLow:
		return "low"
	case TaskNormal:
		return "normal"
	case TaskHigh:
		return "high"
	case TaskCritical:
		return "critical"
	case TaskEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskFailed     TaskStatus = "failed"
)

// TaskComplexity is a closed, ordered enum.
type TaskComplexity int

const (
	ComplexitySimple TaskComplexity = iota
	ComplexityModerate
	ComplexityComplex
	ComplexityVeryComplex
)

// ScoringFactors holds the ten real-valued dimensions a task is scored on.
type ScoringFactors struct {
	BusinessValue        float64 `json:"businessValue"`
	TechnicalDebtImpact   float64 `json:"technicalDebtImpact"`
	UserImpact            float64 `json:"userImpact"`
	DependenciesCount     int     `json:"dependenciesCount"`
	EstimatedEffortHours  float64 `json:"estimatedEffortHours"`
	RiskLevel             float64 `json:"riskLevel"`
	Urgency               float64 `json:"urgency"`
	TeamCapacityImpact    float64 `json:"teamCapacityImpact"`
	LearningValue         float64 `json:"learningValue"`
	StrategicAlignment    float64 `json:"strategicAlignment"`
}

// Task is a unit of work tracked by the Task Scoring Engine.
type Task struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Type          TaskType       `json:"type"`
	Priority      TaskPriority   `json:"priority"`
	Status        TaskStatus     `json:"status"`
	Complexity    TaskComplexity `json:"complexity"`
	Factors       ScoringFactors `json:"scoringFactors"`
	Scope         string         `json:"scope"`
	AssignedTo    string         `json:"assignedTo,omitempty"`
	Dependencies  []string       `json:"dependencies,omitempty"`
	Blockers      []string       `json:"blockers,omitempty"`
	RelatedTasks  []string       `json:"relatedTasks,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	ModifiedAt    time.Time      `json:"modifiedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}

// TaskScore is the calculated result for a single task.
type TaskScore struct {
	TaskID                   string    `json:"taskId"`
	OverallScore             float64   `json:"overallScore"`
	PriorityScore            float64   `json:"priorityScore"`
	BusinessValueScore       float64   `json:"businessValueScore"`
	TechnicalDebtScore       float64   `json:"technicalDebtScore"`
	UserImpactScore          float64   `json:"userImpactScore"`
	DependencyScore          float64   `json:"dependencyScore"`
	EffortEfficiencyScore    float64   `json:"effortEfficiencyScore"`
	RiskAdjustedScore        float64   `json:"riskAdjustedScore"`
	UrgencyScore             float64   `json:"urgencyScore"`
	TeamCapacityScore        float64   `json:"teamCapacityScore"`
	LearningValueScore       float64   `json:"learningValueScore"`
	StrategicAlignmentScore  float64   `json:"strategicAlignmentScore"`
	CalculatedAt             time.Time `json:"calculatedAt"`
	Explanation              string    `json:"explanation"`
}

// PrioritizationStrategy is the closed set of prioritization strategies,
// plus an open Custom(name) variant.
type PrioritizationStrategy struct {
	kind   string
	custom string
}

var (
	StrategyWeightedScoring     = PrioritizationStrategy{kind: "weighted_scoring"}
	StrategyBusinessValueFirst  = PrioritizationStrategy{kind: "business_value_first"}
	StrategyTechnicalDebtFirst  = PrioritizationStrategy{kind: "technical_debt_first"}
	StrategyUserImpactFirst     = PrioritizationStrategy{kind: "user_impact_first"}
	StrategyRiskAdjustedReturn  = PrioritizationStrategy{kind: "risk_adjusted_return"}
	StrategyEffortEfficiency    = PrioritizationStrategy{kind: "effort_efficiency"}
	StrategyStrategicAlignment  = PrioritizationStrategy{kind: "strategic_alignment"}
)

// CustomStrategy builds an open prioritization-strategy variant.
func CustomStrategy(name string) PrioritizationStrategy {
	return PrioritizationStrategy{kind: "custom", custom: name}
}

func (s PrioritizationStrategy) String() string {
	if s.kind == "custom" {
		return s.custom
	}
	return s.kind
}

var knownStrategies = map[string]PrioritizationStrategy{
	StrategyWeightedScoring.kind:    StrategyWeightedScoring,
	StrategyBusinessValueFirst.kind: StrategyBusinessValueFirst,
	StrategyTechnicalDebtFirst.kind: StrategyTechnicalDebtFirst,
	StrategyUserImpactFirst.kind:    StrategyUserImpactFirst,
	StrategyRiskAdjustedReturn.kind: StrategyRiskAdjustedReturn,
	StrategyEffortEfficiency.kind:   StrategyEffortEfficiency,
	StrategyStrategicAlignment.kind: StrategyStrategicAlignment,
}

// MarshalJSON renders the wire form as a plain JSON string.
func (s PrioritizationStrategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a wire string back into a strategy via
// ParsePrioritizationStrategy.
func (s *PrioritizationStrategy) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParsePrioritizationStrategy(str)
	return nil
}

// ParsePrioritizationStrategy maps a wire string to a strategy,
// collapsing anything unrecognized into a Custom variant.
func ParsePrioritizationStrategy(s string) PrioritizationStrategy {
	if strat, ok := knownStrategies[s]; ok {
		return strat
	}
	return PrioritizationStrategy{kind: "custom", custom: s}
}

// ScoreBand buckets an overall score into one of five bands per §4.4.
func ScoreBand(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "medium_high"
	case score >= 0.4:
		return "medium"
	case score >= 0.2:
		return "low_medium"
	default:
		return "low"
	}
}

// PrioritizationStats summarizes a prioritization run.
type PrioritizationStats struct {
	Total               int             `json:"total"`
	AverageScore        float64         `json:"averageScore"`
	ScoreDistribution   map[string]int  `json:"scoreDistribution"`
}

// Prioritization is the full result of a prioritize() call.
type Prioritization struct {
	Tasks           []TaskScore            `json:"tasks"`
	Strategy        PrioritizationStrategy `json:"strategy"`
	Stats           PrioritizationStats    `json:"stats"`
	Recommendations []string               `json:"recommendations"`
}
