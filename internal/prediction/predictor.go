// Package prediction implements the ML Predictor: a registry of named
// feature extractors feeding a set of pluggable models that each
// produce a probabilistic conflict Prediction, grounded on
// original_source/agent/ml_conflict_prediction.rs's
// MLConflictPredictionSystem (simulate_ml_prediction,
// generate_prevention_actions, extract_features).
package prediction

import (
	"fmt"
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config bounds the predictor's admission and retention behavior.
type Config struct {
	ConfidenceThreshold float64
	HistoryLimit        int
}

// DefaultConfig mirrors the reference model's defaults.
func DefaultConfig() Config {
	return Config{ConfidenceThreshold: 0.5, HistoryLimit: 500}
}

// Model is a pluggable predictive model: predict(features)->Prediction,
// retrain(samples)->PerformanceMetrics, info()->ModelInfo, matching the
// §9 design note on polymorphic model dispatch.
type Model interface {
	Info() coretypes.MLModel
	SetActive(active bool)
	// Predict computes a raw probability and confidence from a named
	// feature vector. It does not know about extractors or thresholds;
	// those are the Predictor's concern.
	Predict(features map[string]float64) (probability, confidence float64)
}

// Predictor runs every active model against the features computed from
// an event by the registered extractors, discarding predictions below
// the confidence threshold and attaching threshold-rule prevention
// actions to the rest.
type Predictor struct {
	cfg        Config
	extractors []coretypes.FeatureExtractor
	logger     *zap.Logger

	mu      sync.Mutex
	models  map[string]Model
	history []coretypes.Prediction
}

// NewPredictor constructs a predictor with the given extractors (pass
// DefaultExtractors() for the four reference extractors).
func NewPredictor(cfg Config, extractors []coretypes.FeatureExtractor, logger *zap.Logger) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{
		cfg:        cfg,
		extractors: extractors,
		logger:     logger.Named("predictor"),
		models:     make(map[string]Model),
	}
}

// AddModel registers or replaces a model by its ID.
func (p *Predictor) AddModel(m Model) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models[m.Info().ID] = m
}

// RemoveModel unregisters a model.
func (p *Predictor) RemoveModel(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.models, id)
}

// Model returns a registered model's info by ID.
func (p *Predictor) Model(id string) (coretypes.MLModel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.models[id]
	if !ok {
		return coretypes.MLModel{}, false
	}
	return m.Info(), true
}

// ExtractFeatures runs every registered extractor over raw, prefixing
// each contributed key by the extractor's name to avoid collisions
// (spec §4.5). A failing extractor logs and contributes nothing.
func (p *Predictor) ExtractFeatures(raw map[string]any) map[string]float64 {
	ctx := coretypes.FeatureContext{Raw: raw}
	out := make(map[string]float64)
	for _, ex := range p.extractors {
		features, err := ex.Extract(ctx)
		if err != nil {
			p.logger.Warn("feature extraction failed", zap.String("extractor", ex.Name()), zap.Error(err))
			continue
		}
		for k, v := range features {
			out[fmt.Sprintf("%s_%s", ex.Name(), k)] = v
		}
	}
	return out
}

// Predict extracts features from raw and runs every active model,
// returning one Prediction per model whose confidence clears the
// configured threshold (spec §4.5 "Predictions below the configured
// confidence threshold are discarded").
func (p *Predictor) Predict(raw map[string]any, resource string, involvedAgents []string) []coretypes.Prediction {
	features := p.ExtractFeatures(raw)

	p.mu.Lock()
	models := make([]Model, 0, len(p.models))
	for _, m := range p.models {
		if m.Info().Active {
			models = append(models, m)
		}
	}
	p.mu.Unlock()

	var out []coretypes.Prediction
	for _, m := range models {
		probability, confidence := m.Predict(features)
		if confidence < p.cfg.ConfidenceThreshold {
			continue
		}

		pred := coretypes.Prediction{
			ID:             uuid.NewString(),
			ConflictType:   coretypes.ConflictFileOverlap,
			Probability:    probability,
			Severity:       coretypes.SeverityFromProbability(probability),
			InvolvedAgents: involvedAgents,
			Resource:       resource,
			Features:       features,
			PredictedAt:    time.Now(),
			ModelID:        m.Info().ID,
			Actions:        generatePreventionActions(probability, involvedAgents),
		}
		out = append(out, pred)
	}

	if len(out) > 0 {
		p.mu.Lock()
		p.history = append(p.history, out...)
		if limit := p.cfg.HistoryLimit; limit > 0 && len(p.history) > limit {
			drop := len(p.history) - limit
			p.history = append([]coretypes.Prediction(nil), p.history[drop:]...)
		}
		p.mu.Unlock()
	}

	return out
}

// generatePreventionActions applies the two reference threshold rules
// from ml_conflict_prediction.rs::generate_prevention_actions: >0.7
// requests coordination at High priority; >0.5 (inclusive of the first
// bracket) notifies agents at Normal priority.
func generatePreventionActions(probability float64, agents []string) []coretypes.PreventionAction {
	var actions []coretypes.PreventionAction

	if probability > 0.7 {
		actions = append(actions, coretypes.PreventionAction{
			ID:           uuid.NewString(),
			Type:         coretypes.ActionRequestCoordination,
			TargetAgents: agents,
			Priority:     coretypes.PriorityHigh,
			Description:  "request immediate coordination between agents",
			Cost:         coretypes.ActionCost{Cost: 0.3, Effectiveness: 0.9},
			Impact:       coretypes.ImpactModerate,
		})
	}
	if probability > 0.5 {
		actions = append(actions, coretypes.PreventionAction{
			ID:           uuid.NewString(),
			Type:         coretypes.ActionNotifyAgents,
			TargetAgents: agents,
			Priority:     coretypes.PriorityNormal,
			Description:  "notify agents about potential conflict",
			Cost:         coretypes.ActionCost{Cost: 0.1, Effectiveness: 0.7},
			Impact:       coretypes.ImpactMinor,
		})
	}

	return actions
}

// History returns up to limit of the most recent predictions.
func (p *Predictor) History(limit int) []coretypes.Prediction {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]coretypes.Prediction, limit)
	copy(out, p.history[n-limit:])
	return out
}
