package coordinator

import (
	"context"
	"time"

	"github.com/rhema-sh/coordinator/internal/agentstate"
	"github.com/rhema-sh/coordinator/internal/consensus"
	"github.com/rhema-sh/coordinator/internal/coretypes"
	"github.com/rhema-sh/coordinator/internal/messagebus"
	"github.com/rhema-sh/coordinator/internal/notifications"
	"github.com/rhema-sh/coordinator/internal/session"
	"github.com/google/uuid"
)

// agentExistence adapts agentstate.Manager to the narrow Exists(id) bool
// shape both messagebus.AgentLookup and conflict.AgentLookup expect,
// rather than having either package depend on agentstate directly.
type agentExistence struct {
	mgr *agentstate.Manager
}

func (a agentExistence) Exists(id string) bool {
	_, err := a.mgr.GetState(id)
	return err == nil
}

// sessionLookup adapts session.Registry to messagebus.SessionLookup. It
// is constructed before the registry exists (the bus needs a
// SessionLookup before the registry can be built, since the registry
// itself needs the bus as its Sender) and its reg field is filled in
// once the registry is built; both happen during single-threaded
// startup wiring, before Run.
type sessionLookup struct {
	reg *session.Registry
}

func (s *sessionLookup) Participants(id string) ([]string, bool) {
	if s.reg == nil {
		return nil, false
	}
	return s.reg.Participants(id)
}

// consensusAdapter narrows consensus.Engine.Decide's (Outcome, error)
// return to resolution.ConsensusDecider's (bool, error), keeping the
// resolution package decoupled from consensus's concrete Outcome type.
type consensusAdapter struct {
	engine *consensus.Engine
}

func (c consensusAdapter) Decide(participants []string, votes map[string]bool) (bool, error) {
	outcome, err := c.engine.Decide(participants, votes)
	return outcome.Approved, err
}

// ruleResolver implements resolution.Resolver by selecting the
// consensus engine's highest-priority matching rule for the conflict
// and dispatching its action to every involved agent over the message
// bus as a coordination request. A rule's action is a plain string that
// carries no priority of its own; the message is always sent at High
// priority.
type ruleResolver struct {
	engine *consensus.Engine
	bus    *messagebus.Bus
}

func (r *ruleResolver) Resolve(ctx context.Context, c coretypes.Conflict) (string, error) {
	rule, ok := r.engine.SelectRule(c)
	if !ok {
		return "", coretypes.NewResolutionError("no automatic-resolution rule matched conflict " + c.ID)
	}

	msg := coretypes.Message{
		ID:           uuid.NewString(),
		Type:         coretypes.MsgCoordinationRequest,
		Priority:     coretypes.PriorityHigh,
		SenderID:     "resolution-coordinator",
		RecipientIDs: c.InvolvedAgents,
		Content:      rule.Action,
		Timestamp:    time.Now(),
	}
	if err := r.bus.Send(msg); err != nil {
		return "", err
	}
	return rule.Action, nil
}

// escalationAdapter implements resolution.Escalator by translating a
// coretypes.Conflict into the narrower notifications.Escalation view
// and fanning it out through the notification manager's configured
// channels (toast, terminal, dashboard banner, Slack/Discord/email).
type escalationAdapter struct {
	mgr *notifications.Manager
}

func (e escalationAdapter) NotifyEscalation(c coretypes.Conflict, reason string) error {
	return e.mgr.NotifyEscalation(notifications.NewEscalation(c, reason))
}
