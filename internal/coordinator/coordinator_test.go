package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/rhema-sh/coordinator/internal/config"
	"github.com/rhema-sh/coordinator/internal/conflict"
	"github.com/rhema-sh/coordinator/internal/coretypes"
	"github.com/rhema-sh/coordinator/internal/prediction"
)

func newTestCoordinator(t *testing.T, confidentModel bool) *Coordinator {
	t.Helper()
	cfg := config.Default()
	cfg.ConsensusTimeoutSeconds = 0

	var model prediction.Model
	if confidentModel {
		model = prediction.NewLinearModel("confident", map[string]float64{
			"file_modification_agent_count":            1.0,
			"file_modification_modification_frequency": 0.3,
		})
	} else {
		model = prediction.NewLinearModel("unsure", map[string]float64{})
	}

	co := New(cfg, nil, []prediction.Model{model}, nil)
	if err := co.Agents.Join("a1"); err != nil {
		t.Fatalf("Join(a1) error = %v", err)
	}
	if err := co.Agents.Join("a2"); err != nil {
		t.Fatalf("Join(a2) error = %v", err)
	}
	return co
}

func fileModEvent() conflict.Event {
	return conflict.Event{
		Kind:      "file_modification",
		Agents:    []string{"a1", "a2"},
		Scope:     "shared-module",
		Details:   map[string]string{},
		Timestamp: time.Now(),
	}
}

func fileModRaw() map[string]any {
	return map[string]any{
		"file_modification": map[string]any{
			"agent_count":            1.0,
			"modification_frequency": 1.0,
		},
	}
}

func TestHandleEvent_HighConfidenceResolvesAutomatically(t *testing.T) {
	co := newTestCoordinator(t, true)

	c, res, detected, err := co.HandleEvent(context.Background(), fileModEvent(), fileModRaw())
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if !detected {
		t.Fatal("HandleEvent() detected = false, want true")
	}
	if res.Strategy != coretypes.ResolveAutomatic {
		t.Errorf("Strategy = %v, want automatic", res.Strategy)
	}
	if c.Status != coretypes.ConflictResolved {
		t.Errorf("Status = %v, want Resolved", c.Status)
	}
}

func TestHandleEvent_LowConfidenceLeavesUnderReviewOnQuorumMiss(t *testing.T) {
	co := newTestCoordinator(t, false)

	c, res, detected, err := co.HandleEvent(context.Background(), fileModEvent(), map[string]any{})
	if !detected {
		t.Fatal("HandleEvent() detected = false, want true")
	}
	if err == nil {
		t.Fatal("HandleEvent() error = nil, want a resolution error from quorum miss")
	}
	if res.Strategy != coretypes.ResolveConsensus {
		t.Errorf("Strategy = %v, want consensus", res.Strategy)
	}
	if c.Status != coretypes.ConflictUnderReview {
		t.Errorf("Status = %v, want UnderReview", c.Status)
	}
}

func TestHandleEvent_NoConflictWhenSingleAgent(t *testing.T) {
	co := newTestCoordinator(t, true)

	_, _, detected, err := co.HandleEvent(context.Background(), conflict.Event{
		Kind:   "file_modification",
		Agents: []string{"a1"},
		Scope:  "solo",
	}, fileModRaw())
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if detected {
		t.Error("HandleEvent() detected = true, want false for a single-agent event")
	}
}

func TestSubmitVote_ErrorsWithoutOpenRound(t *testing.T) {
	co := newTestCoordinator(t, true)
	if err := co.SubmitVote("nonexistent", "a1", true); err == nil {
		t.Error("SubmitVote() error = nil, want error for unknown conflict")
	}
}
