// Package httpapi exposes the coordinator's "system stats|health|monitor"
// surface over HTTP and WebSocket, grounded on internal/server's router
// setup (mux.NewRouter, PathPrefix("/api").Subrouter()), its respondJSON/
// respondError helpers, and its hub.go WebSocket Hub/Client pattern.
package httpapi

import (
	"time"

	"github.com/rhema-sh/coordinator/internal/analysis"
	"github.com/rhema-sh/coordinator/internal/coretypes"
	"github.com/rhema-sh/coordinator/internal/learning"
)

// AgentSource reports agent-state counts, as kept by agentstate.Manager.
type AgentSource interface {
	Statistics() coretypes.AgentStatistics
	HealthStatistics() coretypes.HealthStatistics
}

// MessageSource reports message bus counters and recent traffic, as kept
// by messagebus.Bus.
type MessageSource interface {
	Statistics() coretypes.BusStatistics
	History(limit int) []coretypes.Message
}

// SessionSource lists known sessions, as kept by session.Registry.
type SessionSource interface {
	List(activeOnly, detailed bool) []coretypes.SessionInfo
}

// ConflictSource reports recent conflicts, as kept by conflict.Detector.
type ConflictSource interface {
	History(limit int) []coretypes.Conflict
}

// PredictionSource reports recent predictions, as kept by prediction.Predictor.
type PredictionSource interface {
	History(limit int) []coretypes.Prediction
}

// LearningSource reports learning-loop tallies, as kept by learning.Loop.
type LearningSource interface {
	Metrics() learning.Metrics
}

// AnalysisSource reports generated reports, as kept by analysis.Reporter.
type AnalysisSource interface {
	Reports(limit int) []analysis.Report
}

// KnowledgeSource reports cache occupancy, as kept by knowledge.Cache.
type KnowledgeSource interface {
	Metrics() coretypes.KnowledgeCacheStats
}

// Config bounds Server behavior.
type Config struct {
	MessageHistoryLimit int
	MonitorPushInterval time.Duration
}

// DefaultConfig matches the retention/push defaults used across the core.
func DefaultConfig() Config {
	return Config{
		MessageHistoryLimit: 100,
		MonitorPushInterval: 5 * time.Second,
	}
}

// StatsResponse is the envelope returned by GET /api/system/stats.
type StatsResponse struct {
	GeneratedAt time.Time                     `json:"generatedAt"`
	Agents      *coretypes.AgentStatistics    `json:"agents,omitempty"`
	Messages    *coretypes.BusStatistics      `json:"messages,omitempty"`
	Sessions    []coretypes.SessionInfo       `json:"sessions,omitempty"`
	Conflicts   []coretypes.Conflict          `json:"conflicts,omitempty"`
	Predictions []coretypes.Prediction        `json:"predictions,omitempty"`
	Learning    *learning.Metrics             `json:"learning,omitempty"`
	Knowledge   *coretypes.KnowledgeCacheStats `json:"knowledge,omitempty"`
}

// HealthResponse is the envelope returned by GET /api/system/health.
type HealthResponse struct {
	Status      string                      `json:"status"`
	Timestamp   time.Time                   `json:"timestamp"`
	AgentHealth *coretypes.HealthStatistics `json:"agentHealth,omitempty"`
}

// MessageHistoryResponse is the envelope returned by GET /api/system/message-history.
type MessageHistoryResponse struct {
	Messages []coretypes.Message `json:"messages"`
}

// MonitorMessageType names one kind of payload pushed over the monitor
// WebSocket feed.
type MonitorMessageType string

const (
	MonitorSnapshot   MonitorMessageType = "snapshot"
	MonitorConflict   MonitorMessageType = "conflict"
	MonitorEscalation MonitorMessageType = "escalation"
)

// MonitorMessage is the envelope every monitor WebSocket frame carries.
type MonitorMessage struct {
	Type MonitorMessageType `json:"type"`
	Data interface{}        `json:"data"`
}
