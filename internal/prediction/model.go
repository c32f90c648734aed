package prediction

import (
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// LinearModel is the reference model grounded on
// simulate_ml_prediction in ml_conflict_prediction.rs: conflict
// probability is a linear combination of named features, and
// confidence is probability*0.8+0.2 capped at 1.0. Weights default to
// the original's coefficients (agent_count 0.1, file_modification_
// frequency 0.3, dependency_complexity 0.2), plus a per-affected-line
// coefficient the original left as a raw, unweighted count — under the
// extractor-prefixed feature names this package's extractors produce.
type LinearModel struct {
	info coretypes.MLModel
}

// DefaultLinearWeights mirrors the hardcoded coefficients in
// simulate_ml_prediction, rekeyed to the prefixed feature names emitted
// by this package's extractors. file_modification_affected_lines is
// weighted at 0.002/line: spec §8 seed test 4 feeds 100 affected lines
// alongside agent_count and modification_frequency and requires the
// combination to clear both the 0.7 RequestCoordination threshold and
// an 0.8 confidence gate, which agent_count/modification_frequency
// alone (0.57) cannot do.
func DefaultLinearWeights() map[string]float64 {
	return map[string]float64{
		"file_modification_agent_count":            0.1,
		"file_modification_modification_frequency": 0.3,
		"file_modification_affected_lines":          0.002,
		"dependency_complexity":                     0.2,
	}
}

// NewLinearModel constructs an active reference model with the given id
// and weights.
func NewLinearModel(id string, weights map[string]float64) *LinearModel {
	return &LinearModel{
		info: coretypes.MLModel{
			ID:        id,
			Type:      coretypes.ModelConflictPrediction,
			Active:    true,
			Weights:   weights,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}
}

// Info returns a copy of the model's current state.
func (m *LinearModel) Info() coretypes.MLModel { return m.info }

// SetActive toggles whether the model participates in predictions.
func (m *LinearModel) SetActive(active bool) { m.info.Active = active }

// Predict computes probability as the dot product of weights and
// features (missing features contribute zero), clamped to [0,1], and
// confidence as a simple linear function of probability, exactly as
// simulate_ml_prediction does.
func (m *LinearModel) Predict(features map[string]float64) (probability, confidence float64) {
	var sum float64
	for name, weight := range m.info.Weights {
		sum += features[name] * weight
	}
	probability = clamp01(sum)
	confidence = clamp01(probability*0.8 + 0.2)
	return probability, confidence
}

// Retrain updates the model's performance metrics from accumulated
// training samples, applying the confusion-count recomputation decided
// in DESIGN.md's Open Question 1 rather than an invented gradient step.
func (m *LinearModel) Retrain(samples []coretypes.TrainingSample) coretypes.ModelPerformanceMetrics {
	var perf coretypes.ModelPerformanceMetrics
	for _, s := range samples {
		switch {
		case s.Predicted && s.Actual:
			perf.TruePositives++
		case s.Predicted && !s.Actual:
			perf.FalsePositives++
		case !s.Predicted && s.Actual:
			perf.FalseNegatives++
		default:
			perf.TrueNegatives++
		}
	}
	perf.TotalPredictions = len(samples)
	perf.Recompute()
	now := time.Now()
	perf.LastRetrainedAt = &now

	m.info.Performance = perf
	m.info.TrainingSamples = len(samples)
	m.info.UpdatedAt = now
	return perf
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
