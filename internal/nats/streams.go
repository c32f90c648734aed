package nats

import (
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamManager manages JetStream streams backing the message bus's
// durable subjects (spec §4.2: conflict and escalation traffic must
// survive a coordinator restart; heartbeats/status do not need to).
type StreamManager struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewStreamManager creates a new StreamManager with JetStream context.
func NewStreamManager(nc *nats.Conn, logger *zap.Logger) (*StreamManager, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamManager{js: js, logger: logger}, nil
}

// SetupStreams creates or updates all required JetStream streams.
func (sm *StreamManager) SetupStreams() error {
	streams := []nats.StreamConfig{
		{
			Name:        "CONFLICTS",
			Description: "Conflict-detection events shared across coordinator processes",
			Subjects:    []string{"conflict.>"},
			Storage:     nats.FileStorage,
			MaxAge:      24 * time.Hour,
			Retention:   nats.LimitsPolicy,
		},
		{
			Name:        "PRESENCE",
			Description: "Agent heartbeat and status messages",
			Subjects:    []string{"agent.>"},
			Storage:     nats.MemoryStorage,
			MaxAge:      5 * time.Minute,
			Retention:   nats.LimitsPolicy,
		},
		{
			Name:        "ESCALATIONS",
			Description: "Conflict escalation and consensus-vote traffic",
			Subjects:    []string{"escalation.>", "consensus.>"},
			Storage:     nats.FileStorage,
			MaxAge:      7 * 24 * time.Hour,
			Retention:   nats.LimitsPolicy,
		},
	}

	for _, streamCfg := range streams {
		if err := sm.createOrUpdateStream(streamCfg); err != nil {
			return err
		}
	}

	sm.logger.Info("nats streams configured")
	return nil
}

// createOrUpdateStream creates a new stream or updates an existing one.
func (sm *StreamManager) createOrUpdateStream(cfg nats.StreamConfig) error {
	info, err := sm.js.StreamInfo(cfg.Name)

	if err != nil {
		if err == nats.ErrStreamNotFound {
			sm.logger.Info("creating stream", zap.String("name", cfg.Name), zap.Strings("subjects", cfg.Subjects))
			if _, err := sm.js.AddStream(&cfg); err != nil {
				sm.logger.Error("failed to create stream", zap.String("name", cfg.Name), zap.Error(err))
				return err
			}
			return nil
		}

		sm.logger.Error("failed to fetch stream info", zap.String("name", cfg.Name), zap.Error(err))
		return err
	}

	sm.logger.Info("updating stream", zap.String("name", cfg.Name), zap.Uint64("messages", info.State.Msgs))
	if _, err := sm.js.UpdateStream(&cfg); err != nil {
		sm.logger.Error("failed to update stream", zap.String("name", cfg.Name), zap.Error(err))
		return err
	}

	return nil
}

// DeleteStream deletes a stream by name (useful for cleanup/testing).
func (sm *StreamManager) DeleteStream(name string) error {
	if err := sm.js.DeleteStream(name); err != nil {
		sm.logger.Error("failed to delete stream", zap.String("name", name), zap.Error(err))
		return err
	}
	sm.logger.Info("deleted stream", zap.String("name", name))
	return nil
}

// GetStreamInfo returns information about a specific stream.
func (sm *StreamManager) GetStreamInfo(name string) (*nats.StreamInfo, error) {
	return sm.js.StreamInfo(name)
}
