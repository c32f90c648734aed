package coretypes

import "time"

// MLModelType distinguishes the prediction model families the Learning
// Loop can retrain independently.
type MLModelType string

const (
	ModelConflictPrediction MLModelType = "conflict_prediction"
	ModelSeverityClassifier MLModelType = "severity_classifier"
	ModelActionRecommender  MLModelType = "action_recommender"
)

// ModelPerformanceMetrics tracks a model's observed predictive quality,
// updated by the Learning Loop as outcomes are confirmed.
type ModelPerformanceMetrics struct {
	TotalPredictions  int     `json:"totalPredictions"`
	TruePositives     int     `json:"truePositives"`
	FalsePositives    int     `json:"falsePositives"`
	TrueNegatives     int     `json:"trueNegatives"`
	FalseNegatives    int     `json:"falseNegatives"`
	Precision         float64 `json:"precision"`
	Recall            float64 `json:"recall"`
	F1Score           float64 `json:"f1Score"`
	LastRetrainedAt   *time.Time `json:"lastRetrainedAt,omitempty"`
	SamplesSinceRetrain int    `json:"samplesSinceRetrain"`
}

// Recompute derives precision/recall/F1 from the confusion counts.
// LinearModel.Retrain calls it once after tallying a batch of samples.
func (m *ModelPerformanceMetrics) Recompute() {
	if tp := m.TruePositives; tp+m.FalsePositives > 0 {
		m.Precision = float64(tp) / float64(tp+m.FalsePositives)
	} else {
		m.Precision = 0
	}
	if tp := m.TruePositives; tp+m.FalseNegatives > 0 {
		m.Recall = float64(tp) / float64(tp+m.FalseNegatives)
	} else {
		m.Recall = 0
	}
	if m.Precision+m.Recall > 0 {
		m.F1Score = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	} else {
		m.F1Score = 0
	}
}

// MLModel is the Learning Loop's handle on one predictive model: its
// identity, its extractor weights, and its running performance counters.
type MLModel struct {
	ID               string                  `json:"id"`
	Type             MLModelType             `json:"type"`
	Active           bool                    `json:"active"`
	Weights          map[string]float64      `json:"weights"`
	Performance      ModelPerformanceMetrics `json:"performance"`
	TrainingSamples  int                     `json:"trainingSamples"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// TrainingSample is one learned (features, outcome) pair fed back into a
// model after a prediction's actual outcome is confirmed.
type TrainingSample struct {
	PredictionID string             `json:"predictionId"`
	Features     map[string]float64 `json:"features"`
	Predicted    bool               `json:"predicted"`
	Actual       bool               `json:"actual"`
	RecordedAt   time.Time          `json:"recordedAt"`
}
