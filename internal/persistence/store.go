// Package persistence implements the optional SQLite-backed store for
// conflict, prediction, and learning history (spec §6 "optional
// persistent stores"). Absent a configured path, the core operates
// entirely in-memory; every method here is additive durability, never a
// load-bearing dependency of the components it serves.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conflicts (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	detected_at TIMESTAMP NOT NULL,
	status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conflicts_detected_at ON conflicts(detected_at);

CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	predicted_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_predicted_at ON predictions(predicted_at);

CREATE TABLE IF NOT EXISTS training_samples (
	prediction_id TEXT NOT NULL,
	model_id TEXT NOT NULL,
	data TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_training_samples_model ON training_samples(model_id, recorded_at);
`

// Store is the durable history backing for conflict detection,
// prediction, and learning. It is self-describing per spec §6: the
// schema above is applied idempotently on open, so a fresh file and a
// pre-existing one converge to the same shape.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite file at path and ensures
// its schema, mirroring internal/memory/db.go's directory-then-open-
// then-migrate sequence.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("persistence: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	store := &Store{db: db}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: apply schema: %w", err)
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveConflict upserts a conflict record.
func (s *Store) SaveConflict(c coretypes.Conflict) error {
	blob, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("persistence: marshal conflict: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO conflicts (id, data, detected_at, status) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data=excluded.data, status=excluded.status`,
		c.ID, string(blob), c.DetectedAt, string(c.Status),
	)
	if err != nil {
		return fmt.Errorf("persistence: save conflict: %w", err)
	}
	return nil
}

// RecentConflicts returns up to limit conflicts, most recently detected first.
func (s *Store) RecentConflicts(limit int) ([]coretypes.Conflict, error) {
	rows, err := s.db.Query(
		`SELECT data FROM conflicts ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("persistence: query conflicts: %w", err)
	}
	defer rows.Close()

	var out []coretypes.Conflict
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("persistence: scan conflict: %w", err)
		}
		var c coretypes.Conflict
		if err := json.Unmarshal([]byte(blob), &c); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal conflict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SavePrediction persists a single prediction.
func (s *Store) SavePrediction(p coretypes.Prediction) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("persistence: marshal prediction: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO predictions (id, data, predicted_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data=excluded.data`,
		p.ID, string(blob), p.PredictedAt,
	)
	if err != nil {
		return fmt.Errorf("persistence: save prediction: %w", err)
	}
	return nil
}

// RecentPredictions returns up to limit predictions, most recent first.
func (s *Store) RecentPredictions(limit int) ([]coretypes.Prediction, error) {
	rows, err := s.db.Query(
		`SELECT data FROM predictions ORDER BY predicted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("persistence: query predictions: %w", err)
	}
	defer rows.Close()

	var out []coretypes.Prediction
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("persistence: scan prediction: %w", err)
		}
		var p coretypes.Prediction
		if err := json.Unmarshal([]byte(blob), &p); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveTrainingSample appends one learning sample for a model.
func (s *Store) SaveTrainingSample(modelID string, sample coretypes.TrainingSample) error {
	blob, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("persistence: marshal training sample: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO training_samples (prediction_id, model_id, data, recorded_at) VALUES (?, ?, ?, ?)`,
		sample.PredictionID, modelID, string(blob), sample.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("persistence: save training sample: %w", err)
	}
	return nil
}

// TrainingSamples returns every stored sample for a model, oldest first.
func (s *Store) TrainingSamples(modelID string) ([]coretypes.TrainingSample, error) {
	rows, err := s.db.Query(
		`SELECT data FROM training_samples WHERE model_id = ? ORDER BY recorded_at ASC`, modelID)
	if err != nil {
		return nil, fmt.Errorf("persistence: query training samples: %w", err)
	}
	defer rows.Close()

	var out []coretypes.TrainingSample
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("persistence: scan training sample: %w", err)
		}
		var sample coretypes.TrainingSample
		if err := json.Unmarshal([]byte(blob), &sample); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal training sample: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}
