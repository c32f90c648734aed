package taskscoring

import (
	"sort"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// scoreSelector extracts the dimension a PrioritizationStrategy ranks by.
type scoreSelector func(coretypes.TaskScore) float64

var strategySelectors = map[coretypes.PrioritizationStrategy]scoreSelector{
	coretypes.StrategyWeightedScoring:    func(s coretypes.TaskScore) float64 { return s.OverallScore },
	coretypes.StrategyBusinessValueFirst: func(s coretypes.TaskScore) float64 { return s.BusinessValueScore },
	coretypes.StrategyTechnicalDebtFirst: func(s coretypes.TaskScore) float64 { return s.TechnicalDebtScore },
	coretypes.StrategyUserImpactFirst:    func(s coretypes.TaskScore) float64 { return s.UserImpactScore },
	coretypes.StrategyRiskAdjustedReturn: func(s coretypes.TaskScore) float64 { return s.RiskAdjustedScore },
	coretypes.StrategyEffortEfficiency:   func(s coretypes.TaskScore) float64 { return s.EffortEfficiencyScore },
	coretypes.StrategyStrategicAlignment: func(s coretypes.TaskScore) float64 { return s.StrategicAlignmentScore },
}

// Prioritize scores every task in scope and orders them per strategy,
// highest first; ties on the ranked dimension break by ascending task id
// for a deterministic result. An unrecognized or Custom strategy falls
// back to weighted scoring.
func (e *Engine) Prioritize(scope string, strategy coretypes.PrioritizationStrategy) (coretypes.Prioritization, error) {
	e.mu.Lock()
	var taskIDs []string
	for id, t := range e.tasks {
		if t.Scope == scope {
			taskIDs = append(taskIDs, id)
		}
	}
	sort.Strings(taskIDs)

	scores := make([]coretypes.TaskScore, 0, len(taskIDs))
	for _, id := range taskIDs {
		s, err := e.scoreLocked(id)
		if err != nil {
			e.mu.Unlock()
			return coretypes.Prioritization{}, err
		}
		scores = append(scores, s)
	}
	e.mu.Unlock()

	selector, ok := strategySelectors[strategy]
	if !ok {
		selector = strategySelectors[coretypes.StrategyWeightedScoring]
	}

	sort.SliceStable(scores, func(i, j int) bool {
		si, sj := selector(scores[i]), selector(scores[j])
		if si != sj {
			return si > sj
		}
		return scores[i].TaskID < scores[j].TaskID
	})

	result := coretypes.Prioritization{
		Tasks:           scores,
		Strategy:        strategy,
		Stats:           computeStats(scores),
		Recommendations: recommendations(scores),
	}

	e.mu.Lock()
	e.history = append(e.history, result)
	e.mu.Unlock()

	return result, nil
}

func computeStats(scores []coretypes.TaskScore) coretypes.PrioritizationStats {
	dist := make(map[string]int)
	var sum float64
	for _, s := range scores {
		sum += s.OverallScore
		dist[coretypes.ScoreBand(s.OverallScore)]++
	}
	avg := 0.0
	if len(scores) > 0 {
		avg = sum / float64(len(scores))
	}
	return coretypes.PrioritizationStats{
		Total:             len(scores),
		AverageScore:      avg,
		ScoreDistribution: dist,
	}
}

func recommendations(scores []coretypes.TaskScore) []string {
	if len(scores) == 0 {
		return []string{"no tasks to prioritize"}
	}

	recs := []string{"review task priorities regularly and adjust based on changing requirements"}

	var sum float64
	for _, s := range scores {
		sum += s.OverallScore
	}
	avg := sum / float64(len(scores))
	if avg < 0.5 {
		recs = append(recs, "consider reviewing task scoring factors - average score is low")
	}

	top := scores
	if len(top) > 3 {
		top = top[:3]
	}
	if anyAbove(top, func(s coretypes.TaskScore) float64 { return s.BusinessValueScore }, 0.8) {
		recs = append(recs, "high business value tasks identified - consider fast-tracking")
	}
	if anyAbove(top, func(s coretypes.TaskScore) float64 { return s.TechnicalDebtScore }, 0.8) {
		recs = append(recs, "high technical debt impact tasks - consider addressing technical debt")
	}
	if anyBelow(top, func(s coretypes.TaskScore) float64 { return s.RiskAdjustedScore }, 0.3) {
		recs = append(recs, "high-risk tasks identified - consider risk mitigation strategies")
	}

	return recs
}

func anyAbove(scores []coretypes.TaskScore, f scoreSelector, threshold float64) bool {
	for _, s := range scores {
		if f(s) > threshold {
			return true
		}
	}
	return false
}

func anyBelow(scores []coretypes.TaskScore, f scoreSelector, threshold float64) bool {
	for _, s := range scores {
		if f(s) < threshold {
			return true
		}
	}
	return false
}
