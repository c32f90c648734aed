// Package coordinator wires every coordination component into a single
// process: agent state, sessions, the message bus, task scoring,
// conflict detection/prediction/consensus/resolution, the learning
// loop, the analysis reporter, and the knowledge cache. It is the
// dependency-injection root cmd/rhema-coordinator builds against.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/agentstate"
	"github.com/rhema-sh/coordinator/internal/analysis"
	"github.com/rhema-sh/coordinator/internal/config"
	"github.com/rhema-sh/coordinator/internal/conflict"
	"github.com/rhema-sh/coordinator/internal/consensus"
	"github.com/rhema-sh/coordinator/internal/coretypes"
	"github.com/rhema-sh/coordinator/internal/knowledge"
	"github.com/rhema-sh/coordinator/internal/learning"
	"github.com/rhema-sh/coordinator/internal/messagebus"
	"github.com/rhema-sh/coordinator/internal/notifications"
	"github.com/rhema-sh/coordinator/internal/notifications/external"
	"github.com/rhema-sh/coordinator/internal/prediction"
	"github.com/rhema-sh/coordinator/internal/resolution"
	"github.com/rhema-sh/coordinator/internal/session"
	"github.com/rhema-sh/coordinator/internal/taskscoring"
	"go.uber.org/zap"
)

// Coordinator owns every component and the in-flight consensus rounds
// started on its behalf.
type Coordinator struct {
	cfg    config.Config
	logger *zap.Logger

	Agents     *agentstate.Manager
	Sessions   *session.Registry
	Bus        *messagebus.Bus
	Tasks      *taskscoring.Engine
	Detector   *conflict.Detector
	Predictor  *prediction.Predictor
	Consensus  *consensus.Engine
	Resolution *resolution.Coordinator
	Learning   *learning.Loop
	Analysis   *analysis.Reporter
	Knowledge  *knowledge.Cache
	Notify     *notifications.Manager

	mu        sync.Mutex
	rounds    map[string]*consensus.Round
	transport *Transport
}

// New builds every component from cfg and wires their cross-references,
// following the lock order spec §5 documents: agent state, session
// registry, message history, conflict history, ML predictor state,
// knowledge cache.
func New(cfg config.Config, rules []consensus.Rule, models []prediction.Model, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}

	agents := agentstate.NewManager(agentstate.Config{
		MaxConcurrentAgents:  cfg.MaxConcurrentAgents,
		MaxBlockTime:         cfg.MaxBlockTime(),
		MaxHeartbeatInterval: cfg.MaxHeartbeatInterval(),
		HealthCheckInterval:  agentstate.DefaultConfig().HealthCheckInterval,
		CleanupInterval:      agentstate.DefaultConfig().CleanupInterval,
		PersistInterval:      agentstate.DefaultConfig().PersistInterval,
		StateDir:             cfg.SnapshotDir,
		MaxStateFiles:        cfg.MaxSnapshotFiles,
		MaxHistorySize:       agentstate.DefaultConfig().MaxHistorySize,
	})

	sessLookup := &sessionLookup{}
	bus := messagebus.NewBus(messagebus.Config{
		HistoryLimit:     cfg.MessageHistoryLimit,
		DispatchInterval: messagebus.DefaultConfig().DispatchInterval,
	}, agentExistence{mgr: agents}, sessLookup)

	sessions := session.NewRegistry(session.DefaultConfig(), bus)
	sessLookup.reg = sessions

	tasks := taskscoring.NewEngine(taskscoring.DefaultWeights())

	detector := conflict.NewDetector(conflict.Config{HistoryLimit: cfg.ConflictHistoryLimit}, agentExistence{mgr: agents})

	predictor := prediction.NewPredictor(prediction.Config{
		ConfidenceThreshold: cfg.PredictionConfidenceThreshold,
		HistoryLimit:        cfg.PredictionHistoryLimit,
	}, prediction.DefaultExtractors(), logger)
	for _, m := range models {
		predictor.AddModel(m)
	}

	engine := consensus.NewEngine(consensus.Config{
		Quorum:  cfg.ConsensusQuorum,
		Timeout: cfg.ConsensusTimeout(),
		Weights: map[string]float64{},
	}, rules)

	learningLoop := learning.New(learning.Config{
		MaxConflictHistory:      cfg.ConflictHistoryLimit,
		MinSamplesForRetraining: cfg.MinSamplesForRetraining,
		RetrainingInterval:      cfg.RetrainingInterval(),
	}, logger)

	notifyMgr := buildNotificationManager(cfg, logger)

	resolver := &ruleResolver{engine: engine, bus: bus}
	resolutionCoord := resolution.New(resolution.Config{
		AutoThreshold:    resolution.DefaultConfig().AutoThreshold,
		ConsensusEnabled: true,
	}, resolver, consensusAdapter{engine: engine}, learningLoop, escalationAdapter{mgr: notifyMgr}, logger)

	reporter := analysis.New(analysis.Config{
		RetentionCount:   analysis.DefaultConfig().RetentionCount,
		RetentionAge:     analysis.DefaultConfig().RetentionAge,
		TrendSensitivity: analysis.DefaultConfig().TrendSensitivity,
	})

	cache := knowledge.New(knowledge.Config{
		MaxContexts:        cfg.CacheSize,
		DefaultTTL:         cfg.CacheTTL(),
		EmbeddingDimension: cfg.EmbeddingDimension,
		ClusterThreshold:   knowledge.DefaultConfig().ClusterThreshold,
	}, nil, logger)

	return &Coordinator{
		cfg:        cfg,
		logger:     logger,
		Agents:     agents,
		Sessions:   sessions,
		Bus:        bus,
		Tasks:      tasks,
		Detector:   detector,
		Predictor:  predictor,
		Consensus:  engine,
		Resolution: resolutionCoord,
		Learning:   learningLoop,
		Analysis:   reporter,
		Knowledge:  cache,
		Notify:     notifyMgr,
		rounds:     make(map[string]*consensus.Round),
	}
}

// buildNotificationManager wires the notification manager's local
// channels (toast/terminal/banner) and, when configured, the external
// Slack/Discord/email channels behind a Router, per spec §4.5's
// "Notification Channels" list.
func buildNotificationManager(cfg config.Config, logger *zap.Logger) *notifications.Manager {
	var router *notifications.Router
	var channels []notifications.Channel

	if cfg.SlackWebhookURL != "" {
		channels = append(channels, external.NewSlackNotifier(external.SlackConfig{
			WebhookURL:  cfg.SlackWebhookURL,
			MinPriority: notifications.PriorityHigh,
		}))
	}
	if cfg.DiscordWebhookURL != "" {
		channels = append(channels, external.NewDiscordNotifier(external.DiscordConfig{
			WebhookURL:  cfg.DiscordWebhookURL,
			MinPriority: notifications.PriorityHigh,
		}))
	}
	if cfg.EmailSMTPHost != "" && len(cfg.EmailTo) > 0 {
		channels = append(channels, external.NewEmailNotifier(external.EmailConfig{
			SMTPHost:    cfg.EmailSMTPHost,
			SMTPPort:    cfg.EmailSMTPPort,
			Username:    cfg.EmailUsername,
			Password:    cfg.EmailPassword,
			From:        cfg.EmailFrom,
			To:          cfg.EmailTo,
			MinPriority: notifications.PriorityCritical,
		}))
	}
	if len(channels) > 0 {
		router = notifications.NewRouter(channels)
	}

	return notifications.NewManager(notifications.Config{
		AppID:          "rhema-coordinator",
		DashboardURL:   cfg.NotifyDashboardURL,
		EnableToast:    cfg.NotifyEnableToast,
		EnableTerminal: cfg.NotifyEnableTerminal,
		EnableBanner:   cfg.NotifyEnableBanner,
		Router:         router,
		Logger:         zap.NewStdLog(logger.Named("notifications")),
	})
}

// HandleEvent classifies evt, predicts its likely resolution confidence,
// and resolves it. When the chosen strategy is consensus, a Round is
// opened and awaited for cfg.ConsensusTimeoutSeconds; external vote
// casters call SubmitVote with the returned conflict's ID in the
// interim. detected is false when evt did not amount to a conflict.
func (co *Coordinator) HandleEvent(ctx context.Context, evt conflict.Event, raw map[string]any) (c coretypes.Conflict, res coretypes.Resolution, detected bool, err error) {
	c, detected, err = co.Detector.Detect(evt)
	if err != nil || !detected {
		return coretypes.Conflict{}, coretypes.Resolution{}, detected, err
	}

	predictions := co.Predictor.Predict(raw, evt.Scope, c.InvolvedAgents)
	confidence := bestConfidence(predictions)

	var votes map[string]bool
	if co.Resolution.SelectStrategy(confidence, c.InvolvedAgents) == coretypes.ResolveConsensus {
		round := co.Consensus.NewRound(c.InvolvedAgents)
		co.mu.Lock()
		co.rounds[c.ID] = round
		co.mu.Unlock()

		co.requestVotes(c)

		outcome, _ := round.Await(ctx)
		votes = outcome.Votes

		co.mu.Lock()
		delete(co.rounds, c.ID)
		co.mu.Unlock()
	}

	c, res, err = co.Resolution.Resolve(ctx, c, confidence, c.InvolvedAgents, votes)
	return c, res, detected, err
}

// SubmitVote casts a vote into the still-open consensus round for
// conflictID, if one exists.
func (co *Coordinator) SubmitVote(conflictID, participant string, approve bool) error {
	co.mu.Lock()
	round, ok := co.rounds[conflictID]
	co.mu.Unlock()
	if !ok {
		return fmt.Errorf("coordinator: no open consensus round for conflict %s", conflictID)
	}
	round.Submit(participant, approve)
	return nil
}

func (co *Coordinator) requestVotes(c coretypes.Conflict) {
	if len(c.InvolvedAgents) == 0 {
		return
	}
	msg := coretypes.Message{
		Type:         coretypes.MsgDecisionRequest,
		Priority:     coretypes.PriorityHigh,
		SenderID:     "consensus-engine",
		RecipientIDs: c.InvolvedAgents,
		Content:      "vote requested for conflict " + c.ID,
		Timestamp:    time.Now(),
	}
	_ = co.Bus.Send(msg)
}

// bestConfidence takes the highest probability among returned
// predictions as the confidence signal the Resolution Coordinator acts
// on; Prediction does not separately retain each model's raw confidence
// value past the threshold filter, so probability is the closest
// available proxy.
func bestConfidence(predictions []coretypes.Prediction) float64 {
	var best float64
	for _, p := range predictions {
		if p.Probability > best {
			best = p.Probability
		}
	}
	return best
}
