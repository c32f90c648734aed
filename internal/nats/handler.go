package nats

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// HandlerCallbacks defines the callbacks the handler uses to feed remote
// NATS traffic into the local subsystems (agentstate, messagebus,
// notifications) that own the actual coordination state.
type HandlerCallbacks struct {
	OnHeartbeat         func(agentID, status, task, sessionID, projectPath string) error
	OnStatusUpdate      func(agentID, status, message string) error
	OnShutdownNotify    func(agentID, reason string, approved, force bool) error
	OnConflictDetected  func(conflictID, conflictType, severity, resource string, involvedAgents []string) error
	OnConsensusVote     func(conflictID, participant string, approve bool, weight float64) error
	OnEscalationForward func(id, conflictID, reason, coordinatorContext string) error
	OnSystemBroadcast   func(msgType, message string, data map[string]interface{}) error
}

// Handler processes inbound NATS messages and delegates to callbacks
// that update local coordinator state.
type Handler struct {
	client    *Client
	callbacks HandlerCallbacks
	logger    *zap.Logger

	subs   []*nats.Subscription
	subsMu sync.Mutex

	running bool
	stopCh  chan struct{}
}

// NewHandler creates a new NATS message handler.
func NewHandler(client *Client, callbacks HandlerCallbacks, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		client:    client,
		callbacks: callbacks,
		logger:    logger,
		subs:      make([]*nats.Subscription, 0),
		stopCh:    make(chan struct{}),
	}
}

// Start begins processing NATS messages.
func (h *Handler) Start() error {
	if h.running {
		return fmt.Errorf("handler already running")
	}

	h.running = true

	subs := []struct {
		subject string
		fn      func(*Message)
	}{
		{SubjectAllHeartbeats, h.handleHeartbeat},
		{SubjectAllStatus, h.handleStatus},
		{SubjectConflictDetected, h.handleConflictDetected},
		{SubjectEscalationForward, h.handleEscalationForward},
		{SubjectSystemBroadcast, h.handleSystemBroadcast},
	}

	for _, s := range subs {
		sub, err := h.client.Subscribe(s.subject, s.fn)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
		}
		h.addSub(sub)
	}

	h.logger.Info("nats handler started", zap.Int("subscriptions", len(h.subs)))
	return nil
}

// Stop terminates message processing.
func (h *Handler) Stop() {
	if !h.running {
		return
	}

	close(h.stopCh)

	h.subsMu.Lock()
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
	h.subsMu.Unlock()

	h.running = false
	h.logger.Info("nats handler stopped")
}

func (h *Handler) addSub(sub *nats.Subscription) {
	h.subsMu.Lock()
	h.subs = append(h.subs, sub)
	h.subsMu.Unlock()
}

func (h *Handler) handleHeartbeat(msg *Message) {
	var hb HeartbeatMessage
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		h.logger.Warn("invalid heartbeat message", zap.Error(err))
		return
	}

	if h.callbacks.OnHeartbeat != nil {
		if err := h.callbacks.OnHeartbeat(hb.AgentID, hb.Status, hb.CurrentTask, hb.SessionID, hb.ProjectPath); err != nil {
			h.logger.Warn("heartbeat callback failed", zap.Error(err), zap.String("agent_id", hb.AgentID))
		}
	}
}

func (h *Handler) handleStatus(msg *Message) {
	var status StatusMessage
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		h.logger.Warn("invalid status message", zap.Error(err))
		return
	}

	if h.callbacks.OnStatusUpdate != nil {
		if err := h.callbacks.OnStatusUpdate(status.AgentID, status.Status, status.Message); err != nil {
			h.logger.Warn("status callback failed", zap.Error(err), zap.String("agent_id", status.AgentID))
		}
	}
}

func (h *Handler) handleConflictDetected(msg *Message) {
	var cd ConflictDetectedMessage
	if err := json.Unmarshal(msg.Data, &cd); err != nil {
		h.logger.Warn("invalid conflict-detected message", zap.Error(err))
		return
	}

	if h.callbacks.OnConflictDetected != nil {
		if err := h.callbacks.OnConflictDetected(cd.ConflictID, cd.ConflictType, cd.Severity, cd.Resource, cd.InvolvedAgents); err != nil {
			h.logger.Warn("conflict-detected callback failed", zap.Error(err), zap.String("conflict_id", cd.ConflictID))
		}
	}
}

func (h *Handler) handleEscalationForward(msg *Message) {
	var esc EscalationForwardMessage
	if err := json.Unmarshal(msg.Data, &esc); err != nil {
		h.logger.Warn("invalid escalation forward message", zap.Error(err))
		return
	}

	if h.callbacks.OnEscalationForward != nil {
		if err := h.callbacks.OnEscalationForward(esc.ID, esc.ConflictID, esc.Reason, esc.CoordinatorContext); err != nil {
			h.logger.Warn("escalation forward callback failed", zap.Error(err), zap.String("conflict_id", esc.ConflictID))
		}
	}
}

func (h *Handler) handleSystemBroadcast(msg *Message) {
	var broadcast SystemBroadcastMessage
	if err := json.Unmarshal(msg.Data, &broadcast); err != nil {
		h.logger.Warn("invalid system broadcast message", zap.Error(err))
		return
	}

	if h.callbacks.OnSystemBroadcast != nil {
		if err := h.callbacks.OnSystemBroadcast(broadcast.Type, broadcast.Message, broadcast.Data); err != nil {
			h.logger.Warn("system broadcast callback failed", zap.Error(err))
		}
	}
}

// PublishConsensusVote publishes a participant's vote for a conflict's
// consensus round so other coordinator processes observe it.
func (h *Handler) PublishConsensusVote(v ConsensusVoteMessage) error {
	subject := fmt.Sprintf(SubjectConsensusVote, v.ConflictID)
	return h.client.PublishJSON(subject, v)
}

// SubscribeConsensusVotes subscribes to votes for a specific conflict's
// consensus round.
func (h *Handler) SubscribeConsensusVotes(conflictID string) (*nats.Subscription, error) {
	subject := fmt.Sprintf(SubjectConsensusVote, conflictID)
	sub, err := h.client.Subscribe(subject, h.handleConsensusVote)
	if err != nil {
		return nil, err
	}
	h.addSub(sub)
	return sub, nil
}

func (h *Handler) handleConsensusVote(msg *Message) {
	var v ConsensusVoteMessage
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		h.logger.Warn("invalid consensus vote message", zap.Error(err))
		return
	}

	if h.callbacks.OnConsensusVote != nil {
		if err := h.callbacks.OnConsensusVote(v.ConflictID, v.Participant, v.Approve, v.Weight); err != nil {
			h.logger.Warn("consensus vote callback failed", zap.Error(err), zap.String("conflict_id", v.ConflictID))
		}
	}
}
