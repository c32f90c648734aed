// Package resolution implements the Resolution Coordinator: a
// priority-ordered strategy selector (automatic / consensus / manual)
// grounded on the rule-based mode and escalation selection in
// internal/supervisor/decision.go's StandardDecisionEngine
// (SelectMode, RequiresEscalation), generalized from "recon findings"
// to conflicts and ML confidence.
package resolution

import (
	"context"
	"fmt"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
	"go.uber.org/zap"
)

// Config bounds strategy selection.
type Config struct {
	// AutoThreshold is the minimum ML confidence at which a conflict is
	// resolved automatically rather than escalated to consensus or a
	// human, per spec §4.5.
	AutoThreshold float64
	// ConsensusEnabled gates whether the consensus tier is attempted at
	// all before falling back to manual escalation.
	ConsensusEnabled bool
}

// DefaultConfig mirrors the severity/critical threshold used elsewhere
// for "this is confident enough to act on automatically".
func DefaultConfig() Config {
	return Config{AutoThreshold: 0.85, ConsensusEnabled: true}
}

// Resolver applies an automatic resolution to a conflict, e.g.
// reordering tasks or granting exclusive access to a resource.
type Resolver interface {
	Resolve(ctx context.Context, c coretypes.Conflict) (outcome string, err error)
}

// ConsensusDecider reaches a group decision among participants, as
// implemented by internal/consensus.Engine.Decide.
type ConsensusDecider interface {
	Decide(participants []string, votes map[string]bool) (approved bool, err error)
}

// LearningSink observes a completed (or failed) resolution so the
// Learning Loop can update its per-model counters.
type LearningSink interface {
	Observe(c coretypes.Conflict, confidence float64, succeeded bool)
}

// Escalator notifies a human operator when a conflict falls through to
// manual review or a resolution attempt fails outright, per
// internal/notifications.Manager.NotifyEscalation.
type Escalator interface {
	NotifyEscalation(e coretypes.Conflict, reason string) error
}

// Coordinator selects and executes a resolution strategy for each
// conflict handed to it.
type Coordinator struct {
	cfg       Config
	resolver  Resolver
	consensus ConsensusDecider
	learning  LearningSink
	escalator Escalator
	logger    *zap.Logger
}

// New constructs a coordinator. consensus, learning, and escalator may
// be nil — a nil consensus falls through to manual escalation, a nil
// learning sink simply isn't notified, and a nil escalator means
// escalated conflicts are logged but no external channel fires.
func New(cfg Config, resolver Resolver, consensus ConsensusDecider, learning LearningSink, escalator Escalator, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, resolver: resolver, consensus: consensus, learning: learning, escalator: escalator, logger: logger.Named("resolution")}
}

// SelectStrategy picks the resolution tier for a conflict given the ML
// predictor's confidence in the best available automatic fix and
// whether any consensus participants are reachable, per spec §4.5:
// automatic if confidence clears the threshold, else consensus if
// enabled and participants exist, else manual.
func (c *Coordinator) SelectStrategy(confidence float64, participants []string) coretypes.ResolutionStrategy {
	switch {
	case confidence >= c.cfg.AutoThreshold && c.resolver != nil:
		return coretypes.ResolveAutomatic
	case c.cfg.ConsensusEnabled && c.consensus != nil && len(participants) > 0:
		return coretypes.ResolveConsensus
	default:
		return coretypes.ResolveManual
	}
}

// Resolve executes the selected strategy against conflict, returning
// the updated conflict (status advanced to Resolved or Escalated, or
// left UnderReview with a ResolutionError when an attempt fails) and
// a full step-by-step Resolution record. votes, if non-nil, are used
// directly for the consensus tier rather than collected live — live
// collection is the caller's responsibility via consensus.Round.
func (c *Coordinator) Resolve(ctx context.Context, conflict coretypes.Conflict, confidence float64, participants []string, votes map[string]bool) (coretypes.Conflict, coretypes.Resolution, error) {
	strategy := c.SelectStrategy(confidence, participants)
	res := coretypes.Resolution{ConflictID: conflict.ID, Strategy: strategy}
	res.Steps = append(res.Steps, step("select_strategy", "coordinator", string(strategy)))

	conflict.Status = coretypes.ConflictResolving

	switch strategy {
	case coretypes.ResolveAutomatic:
		outcome, err := c.resolver.Resolve(ctx, conflict)
		if err != nil {
			return c.fail(conflict, res, confidence, fmt.Sprintf("automatic resolution failed: %v", err))
		}
		res.Steps = append(res.Steps, step("apply_automatic_resolution", "resolver", outcome))
		return c.succeed(conflict, res, confidence)

	case coretypes.ResolveConsensus:
		approved, err := c.consensus.Decide(participants, votes)
		if err != nil {
			return c.fail(conflict, res, confidence, fmt.Sprintf("consensus round failed: %v", err))
		}
		if !approved {
			return c.fail(conflict, res, confidence, "consensus rejected the proposed resolution")
		}
		res.Steps = append(res.Steps, step("consensus_approved", "consensus", "approved"))
		return c.succeed(conflict, res, confidence)

	default:
		reason := "no automatic resolver or consensus participants available"
		res.Steps = append(res.Steps, step("request_human_intervention", "coordinator", "escalated"))
		conflict.Status = coretypes.ConflictEscalated
		conflict.ResolutionNote = reason
		res.Succeeded = false
		now := time.Now()
		res.FinishedAt = &now
		if c.learning != nil {
			c.learning.Observe(conflict, confidence, false)
		}
		c.notifyEscalation(conflict, reason)
		return conflict, res, nil
	}
}

func (c *Coordinator) succeed(conflict coretypes.Conflict, res coretypes.Resolution, confidence float64) (coretypes.Conflict, coretypes.Resolution, error) {
	now := time.Now()
	conflict.Status = coretypes.ConflictResolved
	conflict.ResolvedAt = &now
	res.Succeeded = true
	res.FinishedAt = &now
	if c.learning != nil {
		c.learning.Observe(conflict, confidence, true)
	}
	return conflict, res, nil
}

// fail leaves the conflict UnderReview with diagnostic notes and
// notifies the learning loop with a failed outcome, per spec §4.5's
// "A resolution that errors mid-execution does not roll back already-
// dispatched messages; the Conflict is left in UnderReview with
// diagnostic notes" and §7's ResolutionError taxonomy. This is
// deliberately distinct from the no-strategy-available branch in
// Resolve, which routes straight to Escalated: UnderReview means the
// attempt itself failed and is still awaiting review or retry.
func (c *Coordinator) fail(conflict coretypes.Conflict, res coretypes.Resolution, confidence float64, reason string) (coretypes.Conflict, coretypes.Resolution, error) {
	conflict.Status = coretypes.ConflictUnderReview
	conflict.ResolutionNote = reason
	res.Steps = append(res.Steps, step("resolution_failed", "coordinator", reason))
	res.Succeeded = false
	now := time.Now()
	res.FinishedAt = &now
	if c.learning != nil {
		c.learning.Observe(conflict, confidence, false)
	}
	c.logger.Warn("resolution failed, leaving under review", zap.String("conflictID", conflict.ID), zap.String("reason", reason))
	c.notifyEscalation(conflict, reason)
	return conflict, res, coretypes.NewResolutionError(reason)
}

// notifyEscalation fans the escalation out to the configured Escalator,
// logging rather than failing the resolution if the channel errors.
func (c *Coordinator) notifyEscalation(conflict coretypes.Conflict, reason string) {
	if c.escalator == nil {
		return
	}
	if err := c.escalator.NotifyEscalation(conflict, reason); err != nil {
		c.logger.Warn("failed to notify escalation", zap.String("conflictID", conflict.ID), zap.Error(err))
	}
}

func step(action, actor, outcome string) coretypes.ResolutionStep {
	return coretypes.ResolutionStep{Timestamp: time.Now(), Action: action, Actor: actor, Outcome: outcome}
}
