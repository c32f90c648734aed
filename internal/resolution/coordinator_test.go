package resolution

import (
	"context"
	"errors"
	"testing"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

type fakeResolver struct {
	outcome string
	err     error
}

func (f fakeResolver) Resolve(ctx context.Context, c coretypes.Conflict) (string, error) {
	return f.outcome, f.err
}

type fakeConsensus struct {
	approved bool
	err      error
}

func (f fakeConsensus) Decide(participants []string, votes map[string]bool) (bool, error) {
	return f.approved, f.err
}

type fakeLearning struct {
	observed   bool
	succeeded  bool
	confidence float64
}

func (f *fakeLearning) Observe(c coretypes.Conflict, confidence float64, succeeded bool) {
	f.observed = true
	f.succeeded = succeeded
	f.confidence = confidence
}

func TestCoordinator_SelectStrategy_AutomaticWhenConfident(t *testing.T) {
	c := New(DefaultConfig(), fakeResolver{outcome: "granted lock"}, fakeConsensus{approved: true}, nil, nil, nil)
	got := c.SelectStrategy(0.9, []string{"a", "b"})
	if got != coretypes.ResolveAutomatic {
		t.Errorf("SelectStrategy() = %v, want automatic", got)
	}
}

func TestCoordinator_SelectStrategy_ConsensusWhenNotConfidentButReachable(t *testing.T) {
	c := New(DefaultConfig(), fakeResolver{}, fakeConsensus{approved: true}, nil, nil, nil)
	got := c.SelectStrategy(0.4, []string{"a", "b"})
	if got != coretypes.ResolveConsensus {
		t.Errorf("SelectStrategy() = %v, want consensus", got)
	}
}

func TestCoordinator_SelectStrategy_ManualWhenNoOptionsLeft(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil, nil, nil)
	got := c.SelectStrategy(0.1, nil)
	if got != coretypes.ResolveManual {
		t.Errorf("SelectStrategy() = %v, want manual", got)
	}
}

func TestCoordinator_Resolve_AutomaticSuccess(t *testing.T) {
	learning := &fakeLearning{}
	c := New(DefaultConfig(), fakeResolver{outcome: "reassigned task"}, nil, learning, nil, nil)

	conflict := coretypes.Conflict{ID: "c1", InvolvedAgents: []string{"a1", "a2"}}
	updated, res, err := c.Resolve(context.Background(), conflict, 0.95, nil, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if updated.Status != coretypes.ConflictResolved {
		t.Errorf("Status = %v, want resolved", updated.Status)
	}
	if !res.Succeeded {
		t.Error("Succeeded = false, want true")
	}
	if !learning.observed || !learning.succeeded {
		t.Error("learning sink was not notified of success")
	}
}

func TestCoordinator_Resolve_AutomaticFailureLeavesUnderReview(t *testing.T) {
	learning := &fakeLearning{}
	c := New(DefaultConfig(), fakeResolver{err: errors.New("lock unavailable")}, nil, learning, nil, nil)

	conflict := coretypes.Conflict{ID: "c2"}
	updated, res, err := c.Resolve(context.Background(), conflict, 0.95, nil, nil)
	if err == nil {
		t.Fatal("Resolve() error = nil, want resolution error")
	}
	if updated.Status != coretypes.ConflictUnderReview {
		t.Errorf("Status = %v, want under_review", updated.Status)
	}
	if res.Succeeded {
		t.Error("Succeeded = true, want false")
	}
	if !learning.observed || learning.succeeded {
		t.Error("learning sink should be notified of a failed outcome")
	}
}

func TestCoordinator_Resolve_ConsensusRejectedLeavesUnderReview(t *testing.T) {
	c := New(DefaultConfig(), nil, fakeConsensus{approved: false}, nil, nil, nil)

	conflict := coretypes.Conflict{ID: "c3"}
	updated, res, err := c.Resolve(context.Background(), conflict, 0.2, []string{"a", "b"}, map[string]bool{"a": true, "b": false})
	if err == nil {
		t.Fatal("Resolve() error = nil, want resolution error for rejected consensus")
	}
	if updated.Status != coretypes.ConflictUnderReview {
		t.Errorf("Status = %v, want under_review", updated.Status)
	}
	if res.Strategy != coretypes.ResolveConsensus {
		t.Errorf("Strategy = %v, want consensus", res.Strategy)
	}
}

func TestCoordinator_Resolve_ManualAlwaysEscalates(t *testing.T) {
	learning := &fakeLearning{}
	c := New(DefaultConfig(), nil, nil, learning, nil, nil)

	conflict := coretypes.Conflict{ID: "c4"}
	updated, res, err := c.Resolve(context.Background(), conflict, 0.1, nil, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil for manual escalation", err)
	}
	if updated.Status != coretypes.ConflictEscalated {
		t.Errorf("Status = %v, want escalated", updated.Status)
	}
	if res.Strategy != coretypes.ResolveManual {
		t.Errorf("Strategy = %v, want manual", res.Strategy)
	}
	if !learning.observed || learning.succeeded {
		t.Error("learning sink should be notified of the manual-escalation outcome")
	}
}
