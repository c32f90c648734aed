// Package taskscoring implements the Task Scoring Engine: multi-factor
// weighted scoring across ten scoring dimensions, seven selectable
// prioritization strategies, and a dependency graph that rejects cycles
// by full reachability rather than a shallow self-reference check.
package taskscoring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// Weights are the per-dimension multipliers applied before normalization
// by their sum. Defaults mirror the weighting this engine's scoring
// formulas were modeled on.
type Weights struct {
	BusinessValue       float64
	TechnicalDebt       float64
	UserImpact          float64
	Dependency          float64
	EffortEfficiency    float64
	Risk                float64
	Urgency             float64
	TeamCapacity        float64
	LearningValue       float64
	StrategicAlignment  float64
}

// DefaultWeights is the engine's out-of-the-box weighting.
func DefaultWeights() Weights {
	return Weights{
		BusinessValue:      0.25,
		TechnicalDebt:      0.15,
		UserImpact:         0.20,
		Dependency:         0.10,
		EffortEfficiency:   0.10,
		Risk:               0.05,
		Urgency:            0.10,
		TeamCapacity:       0.02,
		LearningValue:      0.02,
		StrategicAlignment: 0.01,
	}
}

func (w Weights) total() float64 {
	return w.BusinessValue + w.TechnicalDebt + w.UserImpact + w.Dependency +
		w.EffortEfficiency + w.Risk + w.Urgency + w.TeamCapacity +
		w.LearningValue + w.StrategicAlignment
}

const maxReasonableDependencies = 10.0
const maxReasonableValuePerHour = 2.0

// Engine holds the task set, its dependency graph, a per-task score
// cache invalidated on mutation, and prioritization run history.
type Engine struct {
	mu           sync.Mutex
	weights      Weights
	tasks        map[string]*coretypes.Task
	scores       map[string]coretypes.TaskScore
	dependencies map[string][]string
	history      []coretypes.Prioritization
}

// NewEngine constructs an engine with the given weights.
func NewEngine(weights Weights) *Engine {
	return &Engine{
		weights:      weights,
		tasks:        make(map[string]*coretypes.Task),
		scores:       make(map[string]coretypes.TaskScore),
		dependencies: make(map[string][]string),
	}
}

// AddTask validates, cycle-checks, and inserts a task, invalidating its
// cached score.
func (e *Engine) AddTask(task coretypes.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.wouldCreateCycleLocked(task.ID, task.Dependencies) {
		return coretypes.NewStateError(coretypes.ErrCircularDependency,
			fmt.Sprintf("adding task %s would create a circular dependency", task.ID))
	}

	t := task
	e.tasks[task.ID] = &t
	e.dependencies[task.ID] = append([]string(nil), task.Dependencies...)
	delete(e.scores, task.ID)
	return nil
}

// RemoveTask deletes a task, refusing if another task still depends on it.
func (e *Engine) RemoveTask(taskID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tasks[taskID]; !ok {
		return coretypes.NewAdmissionError(coretypes.ErrTaskNotFound,
			fmt.Sprintf("task %s not found", taskID))
	}
	for _, deps := range e.dependencies {
		for _, d := range deps {
			if d == taskID {
				return coretypes.NewValidationError(
					fmt.Sprintf("cannot remove task %s: it is depended upon by another task", taskID))
			}
		}
	}

	delete(e.tasks, taskID)
	delete(e.scores, taskID)
	delete(e.dependencies, taskID)
	return nil
}

// GetTask returns a copy of a tracked task.
func (e *Engine) GetTask(taskID string) (coretypes.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return coretypes.Task{}, coretypes.NewAdmissionError(coretypes.ErrTaskNotFound,
			fmt.Sprintf("task %s not found", taskID))
	}
	return *t, nil
}

// ScopeTasks returns every task assigned to the given scope.
func (e *Engine) ScopeTasks(scope string) []coretypes.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []coretypes.Task
	for _, t := range e.tasks {
		if t.Scope == scope {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// wouldCreateCycleLocked reports whether adding taskID with the given
// dependencies would make the full dependency graph cyclic. It performs
// a real DFS reachability check rather than a shallow self-reference
// test: a cycle anywhere in the chain reachable from taskID is caught,
// not just taskID depending directly on itself.
func (e *Engine) wouldCreateCycleLocked(taskID string, dependencies []string) bool {
	graph := make(map[string][]string, len(e.dependencies)+1)
	for k, v := range e.dependencies {
		graph[k] = v
	}
	graph[taskID] = dependencies

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(graph))

	var dfs func(string) bool
	dfs = func(n string) bool {
		switch state[n] {
		case visiting:
			return true
		case done:
			return false
		}
		state[n] = visiting
		for _, dep := range graph[n] {
			if dfs(dep) {
				return true
			}
		}
		state[n] = done
		return false
	}

	return dfs(taskID)
}

// Score computes (or returns the cached) TaskScore for a task.
func (e *Engine) Score(taskID string) (coretypes.TaskScore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scoreLocked(taskID)
}

func (e *Engine) scoreLocked(taskID string) (coretypes.TaskScore, error) {
	if cached, ok := e.scores[taskID]; ok {
		return cached, nil
	}

	task, ok := e.tasks[taskID]
	if !ok {
		return coretypes.TaskScore{}, coretypes.NewAdmissionError(coretypes.ErrTaskNotFound,
			fmt.Sprintf("task %s not found", taskID))
	}

	f := task.Factors
	dependencyScore := e.dependencyScore(task)
	effortScore := effortEfficiencyScore(f)
	riskAdjusted := riskAdjustedScore(f)

	overall := (f.BusinessValue*e.weights.BusinessValue +
		f.TechnicalDebtImpact*e.weights.TechnicalDebt +
		f.UserImpact*e.weights.UserImpact +
		dependencyScore*e.weights.Dependency +
		effortScore*e.weights.EffortEfficiency +
		riskAdjusted*e.weights.Risk +
		f.Urgency*e.weights.Urgency +
		f.TeamCapacityImpact*e.weights.TeamCapacity +
		f.LearningValue*e.weights.LearningValue +
		f.StrategicAlignment*e.weights.StrategicAlignment) / e.weights.total()

	score := coretypes.TaskScore{
		TaskID:                  taskID,
		OverallScore:            overall,
		PriorityScore:           task.Priority.Score(),
		BusinessValueScore:      f.BusinessValue,
		TechnicalDebtScore:      f.TechnicalDebtImpact,
		UserImpactScore:         f.UserImpact,
		DependencyScore:         dependencyScore,
		EffortEfficiencyScore:   effortScore,
		RiskAdjustedScore:       riskAdjusted,
		UrgencyScore:            f.Urgency,
		TeamCapacityScore:       f.TeamCapacityImpact,
		LearningValueScore:      f.LearningValue,
		StrategicAlignmentScore: f.StrategicAlignment,
		CalculatedAt:            time.Now(),
		Explanation:             explain(task, overall),
	}
	e.scores[taskID] = score
	return score, nil
}

func (e *Engine) dependencyScore(task *coretypes.Task) float64 {
	if len(task.Dependencies) == 0 {
		return 1.0
	}
	count := float64(len(task.Dependencies))
	if count > maxReasonableDependencies {
		count = maxReasonableDependencies
	}
	return (maxReasonableDependencies - count) / maxReasonableDependencies
}

func effortEfficiencyScore(f coretypes.ScoringFactors) float64 {
	if f.EstimatedEffortHours <= 0 {
		return 0.5
	}
	valuePerHour := (f.BusinessValue + f.UserImpact) / f.EstimatedEffortHours
	score := valuePerHour / maxReasonableValuePerHour
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func riskAdjustedScore(f coretypes.ScoringFactors) float64 {
	return (f.BusinessValue + f.UserImpact) * (1.0 - f.RiskLevel)
}

func explain(task *coretypes.Task, overall float64) string {
	s := fmt.Sprintf("Task '%s' scored %.2f overall. ", task.Title, overall)
	f := task.Factors
	if f.BusinessValue > 0.7 {
		s += "High business value. "
	}
	if f.UserImpact > 0.7 {
		s += "High user impact. "
	}
	if f.TechnicalDebtImpact > 0.7 {
		s += "High technical debt impact. "
	}
	if f.Urgency > 0.7 {
		s += "High urgency. "
	}
	if f.RiskLevel > 0.7 {
		s += "High risk. "
	}
	if len(task.Dependencies) > 5 {
		s += "Many dependencies may slow progress. "
	}
	return s
}

func validateTask(task coretypes.Task) error {
	if task.ID == "" {
		return coretypes.NewValidationError("task id cannot be empty")
	}
	if task.Title == "" {
		return coretypes.NewValidationError("task title cannot be empty")
	}
	if task.Scope == "" {
		return coretypes.NewValidationError("task scope cannot be empty")
	}
	f := task.Factors
	for _, v := range []float64{f.BusinessValue, f.TechnicalDebtImpact, f.UserImpact,
		f.RiskLevel, f.Urgency, f.TeamCapacityImpact, f.LearningValue, f.StrategicAlignment} {
		if v < 0.0 || v > 1.0 {
			return coretypes.NewValidationError("scoring factors must be between 0.0 and 1.0")
		}
	}
	if f.EstimatedEffortHours < 0 {
		return coretypes.NewValidationError("estimated effort cannot be negative")
	}
	return nil
}

// ClearCache drops every cached score, forcing recomputation on next Score.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scores = make(map[string]coretypes.TaskScore)
}

// History returns every prioritization run recorded so far.
func (e *Engine) History() []coretypes.Prioritization {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]coretypes.Prioritization(nil), e.history...)
}
