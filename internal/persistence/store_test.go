package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_ConflictRoundTrip(t *testing.T) {
	store := openTestStore(t)

	c := coretypes.Conflict{
		ID:             "c1",
		Type:           coretypes.ConflictFileOverlap,
		Severity:       coretypes.SeverityHigh,
		Status:         coretypes.ConflictDetected,
		InvolvedAgents: []string{"a1", "a2"},
		DetectedAt:     time.Now().Truncate(time.Second),
	}
	if err := store.SaveConflict(c); err != nil {
		t.Fatalf("SaveConflict() error = %v", err)
	}

	got, err := store.RecentConflicts(10)
	if err != nil {
		t.Fatalf("RecentConflicts() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("RecentConflicts() = %+v, want one conflict c1", got)
	}

	c.Status = coretypes.ConflictResolved
	if err := store.SaveConflict(c); err != nil {
		t.Fatalf("SaveConflict() update error = %v", err)
	}
	got, _ = store.RecentConflicts(10)
	if len(got) != 1 || got[0].Status != coretypes.ConflictResolved {
		t.Fatalf("expected upsert to replace status, got %+v", got)
	}
}

func TestStore_PredictionRoundTrip(t *testing.T) {
	store := openTestStore(t)

	p := coretypes.Prediction{
		ID:          "p1",
		Probability: 0.8,
		PredictedAt: time.Now().Truncate(time.Second),
		Features:    map[string]float64{"file_modification_agent_count": 3},
	}
	if err := store.SavePrediction(p); err != nil {
		t.Fatalf("SavePrediction() error = %v", err)
	}

	got, err := store.RecentPredictions(10)
	if err != nil {
		t.Fatalf("RecentPredictions() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" || got[0].Features["file_modification_agent_count"] != 3 {
		t.Fatalf("RecentPredictions() = %+v", got)
	}
}

func TestStore_TrainingSamples(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		sample := coretypes.TrainingSample{
			PredictionID: "p1",
			Features:     map[string]float64{"x": float64(i)},
			RecordedAt:   time.Now(),
		}
		if err := store.SaveTrainingSample("model-1", sample); err != nil {
			t.Fatalf("SaveTrainingSample() error = %v", err)
		}
	}

	samples, err := store.TrainingSamples("model-1")
	if err != nil {
		t.Fatalf("TrainingSamples() error = %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("TrainingSamples() returned %d, want 3", len(samples))
	}

	none, err := store.TrainingSamples("unknown-model")
	if err != nil {
		t.Fatalf("TrainingSamples() error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("TrainingSamples() for unknown model = %v, want empty", none)
	}
}
