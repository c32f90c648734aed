package coordinator

import (
	"fmt"

	"github.com/rhema-sh/coordinator/internal/coretypes"
	rnats "github.com/rhema-sh/coordinator/internal/nats"
	"github.com/rhema-sh/coordinator/internal/notifications"
	"go.uber.org/zap"
)

// Transport binds the coordinator's local subsystems to the optional
// NATS message bus (spec §4.2), so heartbeats, conflict detections,
// consensus votes, and escalations reach other coordinator processes
// sharing the same NATS deployment. A coordinator run entirely
// standalone never calls StartTransport and behaves identically.
type Transport struct {
	embedded *rnats.EmbeddedServer
	client   *rnats.Client
	handler  *rnats.Handler
}

// StartTransport connects to cfg.NATSURL, or spins up an embedded NATS
// server on cfg.NATSEmbeddedPort when cfg.NATSEmbedded is set and no
// external URL was given, and wires inbound traffic to the agent-state
// manager, message bus, consensus engine, and notification manager.
// A zero-value (nil, nil) return means transport is disabled.
func (co *Coordinator) StartTransport() (*Transport, error) {
	url := co.cfg.NATSURL
	var embedded *rnats.EmbeddedServer

	if url == "" {
		if !co.cfg.NATSEmbedded {
			return nil, nil
		}
		srv, err := rnats.NewEmbeddedServer(rnats.EmbeddedServerConfig{
			Port: co.cfg.NATSEmbeddedPort,
		}, co.logger.Named("nats.server"))
		if err != nil {
			return nil, fmt.Errorf("coordinator: create embedded nats server: %w", err)
		}
		if err := srv.Start(); err != nil {
			return nil, fmt.Errorf("coordinator: start embedded nats server: %w", err)
		}
		embedded = srv
		url = srv.URL()
	}

	client, err := rnats.NewClient(url, co.logger.Named("nats.client"))
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("coordinator: connect to nats: %w", err)
	}

	handler := rnats.NewHandler(client, co.transportCallbacks(), co.logger.Named("nats.handler"))
	if err := handler.Start(); err != nil {
		client.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("coordinator: start nats handler: %w", err)
	}

	t := &Transport{embedded: embedded, client: client, handler: handler}
	co.mu.Lock()
	co.transport = t
	co.mu.Unlock()
	return t, nil
}

// Stop tears the transport down in reverse order of construction.
func (t *Transport) Stop() {
	if t == nil {
		return
	}
	t.handler.Stop()
	t.client.Close()
	if t.embedded != nil {
		t.embedded.Shutdown()
	}
}

// transportCallbacks binds inbound NATS traffic to the coordinator's
// local state, so a remote agent's heartbeat updates the same
// agentstate.Manager a local agent would, and a remote conflict
// detection fans out through the same notification manager.
func (co *Coordinator) transportCallbacks() rnats.HandlerCallbacks {
	return rnats.HandlerCallbacks{
		OnHeartbeat: func(agentID, status, task, sessionID, projectPath string) error {
			return co.Agents.Heartbeat(agentID, task)
		},
		OnStatusUpdate: func(agentID, status, message string) error {
			return co.Agents.SetState(agentID, coretypes.AgentStatus(status), message)
		},
		OnConflictDetected: func(conflictID, conflictType, severity, resource string, involvedAgents []string) error {
			co.logger.Info("remote conflict detected",
				zap.String("conflictID", conflictID),
				zap.String("type", conflictType),
				zap.Strings("agents", involvedAgents))
			return nil
		},
		OnConsensusVote: func(conflictID, participant string, approve bool, weight float64) error {
			return co.SubmitVote(conflictID, participant, approve)
		},
		OnEscalationForward: func(id, conflictID, reason, coordinatorContext string) error {
			return co.Notify.NotifyEscalation(notifications.Escalation{
				ConflictID: conflictID,
				Reason:     reason,
				Scope:      coordinatorContext,
				Priority:   notifications.PriorityHigh,
			})
		},
		OnSystemBroadcast: func(msgType, message string, data map[string]interface{}) error {
			co.logger.Info("system broadcast received", zap.String("type", msgType), zap.String("message", message))
			return nil
		},
	}
}
