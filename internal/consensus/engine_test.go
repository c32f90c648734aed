package consensus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

func TestEngine_Decide_ApprovedByWeightedMajority(t *testing.T) {
	// Matches spec §8 seed test 5: quorum 0.75, votes {a,b,c: approve, d: reject}.
	e := NewEngine(Config{Quorum: 0.75, Weights: map[string]float64{}}, nil)

	votes := map[string]bool{"a": true, "b": true, "c": true, "d": false}
	outcome, err := e.Decide([]string{"a", "b", "c", "d"}, votes)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !outcome.Approved {
		t.Errorf("Approved = false, want true")
	}
	if !outcome.QuorumMet {
		t.Errorf("QuorumMet = false, want true")
	}
}

func TestEngine_Decide_RejectedByWeightedMajority(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	votes := map[string]bool{"a": true, "b": false, "c": false, "d": false}
	outcome, err := e.Decide([]string{"a", "b", "c", "d"}, votes)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if outcome.Approved {
		t.Errorf("Approved = true, want false")
	}
}

func TestEngine_Decide_QuorumNotMetIsConsensusError(t *testing.T) {
	e := NewEngine(Config{Quorum: 0.75}, nil)

	votes := map[string]bool{"a": true}
	_, err := e.Decide([]string{"a", "b", "c", "d"}, votes)
	if err == nil {
		t.Fatal("Decide() error = nil, want quorum-not-met error")
	}
	if !errors.Is(err, coretypes.ErrConsensus) {
		t.Errorf("error = %v, want ConsensusError", err)
	}
}

func TestEngine_Decide_NoParticipantsIsError(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	if _, err := e.Decide(nil, nil); err == nil {
		t.Fatal("Decide() error = nil, want error for empty participant set")
	}
}

func TestEngine_Decide_PerParticipantWeightsApplied(t *testing.T) {
	// A single heavyweight voter can carry quorum and approval alone.
	e := NewEngine(Config{Quorum: 0.5, Weights: map[string]float64{"lead": 10.0}}, nil)

	votes := map[string]bool{"lead": true}
	outcome, err := e.Decide([]string{"lead", "a", "b"}, votes)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !outcome.Approved {
		t.Error("Approved = false, want true given lead's dominant weight")
	}
}

func TestEngine_SelectRule_HighestPriorityWins(t *testing.T) {
	e := NewEngine(DefaultConfig(), []Rule{
		{Name: "low", Priority: 1, Condition: func(coretypes.Conflict) bool { return true }, Action: "low-action"},
		{Name: "high", Priority: 10, Condition: func(coretypes.Conflict) bool { return true }, Action: "high-action"},
	})

	rule, ok := e.SelectRule(coretypes.Conflict{})
	if !ok {
		t.Fatal("SelectRule() ok = false, want true")
	}
	if rule.Name != "high" {
		t.Errorf("SelectRule() = %q, want %q", rule.Name, "high")
	}
}

func TestEngine_SelectRule_NoMatch(t *testing.T) {
	e := NewEngine(DefaultConfig(), []Rule{
		{Name: "never", Priority: 1, Condition: func(coretypes.Conflict) bool { return false }},
	})
	if _, ok := e.SelectRule(coretypes.Conflict{}); ok {
		t.Error("SelectRule() ok = true, want false")
	}
}

func TestRound_CompletesWhenAllVotesIn(t *testing.T) {
	e := NewEngine(Config{Quorum: 0.75, Timeout: time.Second}, nil)
	r := e.NewRound([]string{"a", "b"})

	r.Submit("a", true)
	r.Submit("b", true)

	outcome, err := r.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if !outcome.Approved {
		t.Error("Approved = false, want true")
	}
}

func TestRound_TimesOutWithPartialVotes(t *testing.T) {
	e := NewEngine(Config{Quorum: 0.75, Timeout: 20 * time.Millisecond}, nil)
	r := e.NewRound([]string{"a", "b", "c", "d"})

	r.Submit("a", true)

	_, err := r.Await(context.Background())
	if err == nil {
		t.Fatal("Await() error = nil, want timeout/quorum error")
	}
}
