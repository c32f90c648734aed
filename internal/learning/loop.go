// Package learning implements the Learning Loop: it watches resolved
// conflicts, scores whether the ML Predictor's confidence matched the
// real outcome, accumulates training samples, and triggers retraining
// once a sample backlog and a minimum interval have both elapsed.
// Grounded on learn_from_conflict / should_retrain_models / retrain_model
// in original_source/agent/ml_conflict_prediction.rs.
package learning

import (
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
	"go.uber.org/zap"
)

// Config bounds history retention and the retraining trigger.
type Config struct {
	MaxConflictHistory      int
	MinSamplesForRetraining int
	RetrainingInterval      time.Duration
}

// DefaultConfig mirrors the reference system's defaults.
func DefaultConfig() Config {
	return Config{MaxConflictHistory: 1000, MinSamplesForRetraining: 50, RetrainingInterval: 24 * time.Hour}
}

// Retrainable is a model the loop can hand accumulated training
// samples to, matching internal/prediction.Model's Retrain method.
type Retrainable interface {
	Info() coretypes.MLModel
	Retrain(samples []coretypes.TrainingSample) coretypes.ModelPerformanceMetrics
}

// Metrics tracks the loop's own running tally, equivalent to the
// reference's LearningMetrics.
type Metrics struct {
	TotalSamples          int
	SuccessfulPredictions int
	FailedPredictions     int
	LastUpdate            time.Time
	LastRetraining        time.Time
}

// Loop is the Learning Loop itself.
type Loop struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	history []coretypes.Conflict
	metrics Metrics
	models  map[string]Retrainable
	samples map[string][]coretypes.TrainingSample
}

// New constructs a loop. Its zero value for LastRetraining is the zero
// time, so the very first Observe call after MinSamplesForRetraining is
// reached always triggers a retraining pass.
func New(cfg Config, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cfg:     cfg,
		logger:  logger.Named("learning"),
		models:  make(map[string]Retrainable),
		samples: make(map[string][]coretypes.TrainingSample),
	}
}

// AddModel registers a model so future retraining passes include it.
func (l *Loop) AddModel(m Retrainable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.models[m.Info().ID] = m
}

// Observe records a conflict's resolution outcome against the
// confidence the Resolution Coordinator used to choose a strategy for
// it, satisfying internal/resolution.LearningSink. A confidence at or
// above 0.5 is treated as "predicted needed action"; a match between
// that and whether resolution actually succeeded counts as a
// successful prediction, mirroring the reference's
// was_conflict == was_predicted comparison.
func (l *Loop) Observe(c coretypes.Conflict, confidence float64, succeeded bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, c)
	if limit := l.cfg.MaxConflictHistory; limit > 0 && len(l.history) > limit {
		drop := len(l.history) - limit
		l.history = append([]coretypes.Conflict(nil), l.history[drop:]...)
	}

	l.metrics.TotalSamples++
	l.metrics.LastUpdate = time.Now()

	predicted := confidence >= 0.5
	if predicted == succeeded {
		l.metrics.SuccessfulPredictions++
	} else {
		l.metrics.FailedPredictions++
	}

	sample := coretypes.TrainingSample{
		PredictionID: c.ID,
		Features:     nil,
		Predicted:    predicted,
		Actual:       succeeded,
		RecordedAt:   time.Now(),
	}
	for id := range l.models {
		l.samples[id] = append(l.samples[id], sample)
	}

	if l.shouldRetrainLocked() {
		l.retrainAllLocked()
	}
}

func (l *Loop) shouldRetrainLocked() bool {
	if l.metrics.TotalSamples < l.cfg.MinSamplesForRetraining {
		return false
	}
	return time.Since(l.metrics.LastRetraining) >= l.cfg.RetrainingInterval
}

// RetrainAll forces an immediate retraining pass over every registered
// model regardless of the backlog/interval trigger, for callers that
// want to drive retraining on a separate schedule (e.g. a CLI command).
func (l *Loop) RetrainAll() map[string]coretypes.ModelPerformanceMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retrainAllLocked()
}

func (l *Loop) retrainAllLocked() map[string]coretypes.ModelPerformanceMetrics {
	out := make(map[string]coretypes.ModelPerformanceMetrics, len(l.models))
	for id, m := range l.models {
		perf := m.Retrain(l.samples[id])
		out[id] = perf
		l.logger.Info("model retrained", zap.String("modelID", id), zap.Int("samples", len(l.samples[id])))
	}
	l.metrics.LastRetraining = time.Now()
	return out
}

// Metrics returns a copy of the loop's running tally.
func (l *Loop) Metrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metrics
}

// History returns up to limit of the most recently observed conflicts.
func (l *Loop) History(limit int) []coretypes.Conflict {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]coretypes.Conflict, limit)
	copy(out, l.history[n-limit:])
	return out
}
