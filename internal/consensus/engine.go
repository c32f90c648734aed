// Package consensus implements the Consensus Engine: time-bounded,
// weighted-vote resolution among a configured participant set, plus a
// priority-ordered rule set mapping conflict conditions to actions.
// Grounded on the voting shape sketched by
// examples/advanced/enhanced_conflict_prevention_example.rs's
// ConsensusConfig (min_consensus_percentage, consensus_timeout_seconds,
// ConsensusRule) and on the §9 Open Question decision to treat vote
// weights as a configurable per-participant real-valued map.
package consensus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// Config bounds a consensus round's quorum and timeout.
type Config struct {
	Quorum  float64
	Timeout time.Duration
	Weights map[string]float64
}

// DefaultConfig matches the reference quorum (0.75) and timeout (120s)
// from enhanced_consensus_config.
func DefaultConfig() Config {
	return Config{Quorum: 0.75, Timeout: 120 * time.Second, Weights: map[string]float64{}}
}

func (c Config) weight(participant string) float64 {
	if w, ok := c.Weights[participant]; ok {
		return w
	}
	return 1.0
}

// Outcome is the result of a completed or timed-out consensus round.
type Outcome struct {
	Approved       bool
	QuorumMet      bool
	ApprovalWeight float64
	TotalWeight    float64
	Votes          map[string]bool
}

// Rule is one condition→action entry in the engine's priority-ordered
// rule set: the engine selects the highest-priority rule whose
// Condition matches the conflict under consideration.
type Rule struct {
	Name      string
	Priority  int
	Condition func(coretypes.Conflict) bool
	Action    string
}

// Engine runs consensus rounds and holds the configured rule set.
type Engine struct {
	cfg   Config
	rules []Rule
}

// NewEngine constructs an engine with the given config and rule set,
// sorted highest-priority first.
func NewEngine(cfg Config, rules []Rule) *Engine {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return &Engine{cfg: cfg, rules: sorted}
}

// SelectRule returns the highest-priority rule matching the conflict,
// or ok=false if none match.
func (e *Engine) SelectRule(c coretypes.Conflict) (Rule, bool) {
	for _, r := range e.rules {
		if r.Condition(c) {
			return r, true
		}
	}
	return Rule{}, false
}

// Decide evaluates a completed set of votes against the participant
// list: quorum is the fraction of total participant weight that voted
// at all; approval is a simple weighted majority among participants
// (non-voters count as weight present but not approving). A quorum
// miss or empty participant set is a ConsensusError.
func (e *Engine) Decide(participants []string, votes map[string]bool) (Outcome, error) {
	if len(participants) == 0 {
		return Outcome{}, coretypes.NewConsensusError("consensus: no participants configured")
	}

	var totalWeight, respondedWeight, approveWeight float64
	for _, p := range participants {
		w := e.cfg.weight(p)
		totalWeight += w
		if approve, voted := votes[p]; voted {
			respondedWeight += w
			if approve {
				approveWeight += w
			}
		}
	}

	quorumMet := totalWeight > 0 && respondedWeight/totalWeight >= e.cfg.Quorum
	if !quorumMet {
		return Outcome{QuorumMet: false, ApprovalWeight: approveWeight, TotalWeight: totalWeight, Votes: votes},
			coretypes.NewConsensusError(fmt.Sprintf("consensus: quorum not met (%.2f < %.2f)", respondedWeight/totalWeight, e.cfg.Quorum))
	}

	approved := totalWeight > 0 && approveWeight/totalWeight > 0.5
	return Outcome{
		Approved:       approved,
		QuorumMet:      true,
		ApprovalWeight: approveWeight,
		TotalWeight:    totalWeight,
		Votes:          votes,
	}, nil
}

// Round is a live, time-bounded vote collection: participants submit
// votes asynchronously and Await blocks until either every participant
// has voted or the round's deadline passes, whichever is first — the
// "explicit timeout" behavior §5 requires of consensus rounds.
type Round struct {
	engine       *Engine
	participants []string
	deadline     time.Time

	mu    sync.Mutex
	votes map[string]bool
	done  chan struct{}
	once  sync.Once
}

// NewRound opens a round against the given participant list with the
// engine's configured timeout.
func (e *Engine) NewRound(participants []string) *Round {
	return &Round{
		engine:       e,
		participants: participants,
		deadline:     time.Now().Add(e.cfg.Timeout),
		votes:        make(map[string]bool),
		done:         make(chan struct{}),
	}
}

// Submit records one participant's vote. Submitting after every
// participant has voted, or after the round has already completed, is a
// no-op.
func (r *Round) Submit(participant string, approve bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return
	default:
	}

	r.votes[participant] = approve
	if len(r.votes) >= len(r.participants) {
		r.once.Do(func() { close(r.done) })
	}
}

// Await blocks until the round completes (every participant voted) or
// either ctx or the round's own deadline elapses first. A round that
// times out is resolved against whatever votes were received by then;
// the caller (Resolution Coordinator) is expected to treat a failed
// quorum as escalation, per spec §4.5.
func (r *Round) Await(ctx context.Context) (Outcome, error) {
	timer := time.NewTimer(time.Until(r.deadline))
	defer timer.Stop()

	select {
	case <-r.done:
	case <-timer.C:
	case <-ctx.Done():
	}

	r.mu.Lock()
	votes := make(map[string]bool, len(r.votes))
	for k, v := range r.votes {
		votes[k] = v
	}
	r.mu.Unlock()

	outcome, err := r.engine.Decide(r.participants, votes)
	if err != nil {
		return outcome, coretypes.NewConsensusError(fmt.Sprintf("consensus round timed out or failed quorum: %v", err))
	}
	return outcome, nil
}
