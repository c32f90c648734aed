package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the coordinator's system stats/health/monitor surface.
// Every source is optional: a nil source is simply omitted from
// responses, so a process wiring only a subset of the core still gets a
// working, if partial, surface.
type Server struct {
	cfg Config

	agents      AgentSource
	messages    MessageSource
	sessions    SessionSource
	conflicts   ConflictSource
	predictions PredictionSource
	learning    LearningSource
	analysisSrc AnalysisSource
	knowledge   KnowledgeSource

	logger *zap.Logger
	router *mux.Router
	hub    *monitorHub
}

// Sources bundles every optional data source the server can report on.
type Sources struct {
	Agents      AgentSource
	Messages    MessageSource
	Sessions    SessionSource
	Conflicts   ConflictSource
	Predictions PredictionSource
	Learning    LearningSource
	Analysis    AnalysisSource
	Knowledge   KnowledgeSource
}

// NewServer builds a Server and wires its routes.
func NewServer(cfg Config, src Sources, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:         cfg,
		agents:      src.Agents,
		messages:    src.Messages,
		sessions:    src.Sessions,
		conflicts:   src.Conflicts,
		predictions: src.Predictions,
		learning:    src.Learning,
		analysisSrc: src.Analysis,
		knowledge:   src.Knowledge,
		logger:      logger,
		hub:         newMonitorHub(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	api := s.router.PathPrefix("/api/system").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/message-history", s.handleMessageHistory).Methods("GET")

	s.router.HandleFunc("/ws/monitor", s.handleMonitor).Methods("GET")
}

// Router exposes the underlying mux.Router, e.g. for http.Server wiring
// or test harnesses.
func (s *Server) Router() http.Handler { return s.router }

// Run starts the monitor hub's broadcast loop and periodic snapshot
// pushes. It unwinds cleanly on ctx cancellation.
func (s *Server) Run(ctx context.Context) {
	go s.hub.run()

	interval := s.cfg.MonitorPushInterval
	if interval <= 0 {
		interval = DefaultConfig().MonitorPushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pushSnapshot()
		}
	}
}

func (s *Server) pushSnapshot() {
	if s.hub.ClientCount() == 0 {
		return
	}
	s.hub.BroadcastJSON(MonitorMessage{Type: MonitorSnapshot, Data: s.buildStats()})
}

// BroadcastConflict pushes a newly detected conflict to every connected
// monitor. Callers invoke this from the conflict detection path.
func (s *Server) BroadcastConflict(c interface{}) {
	s.hub.BroadcastJSON(MonitorMessage{Type: MonitorConflict, Data: c})
}

// BroadcastEscalation pushes a resolution escalation to every connected
// monitor. Callers invoke this from the resolution path.
func (s *Server) BroadcastEscalation(e interface{}) {
	s.hub.BroadcastJSON(MonitorMessage{Type: MonitorEscalation, Data: e})
}

func (s *Server) buildStats() StatsResponse {
	resp := StatsResponse{GeneratedAt: time.Now()}
	if s.agents != nil {
		stats := s.agents.Statistics()
		resp.Agents = &stats
	}
	if s.messages != nil {
		stats := s.messages.Statistics()
		resp.Messages = &stats
	}
	if s.sessions != nil {
		resp.Sessions = s.sessions.List(true, false)
	}
	if s.conflicts != nil {
		resp.Conflicts = s.conflicts.History(50)
	}
	if s.predictions != nil {
		resp.Predictions = s.predictions.History(50)
	}
	if s.learning != nil {
		m := s.learning.Metrics()
		resp.Learning = &m
	}
	if s.knowledge != nil {
		m := s.knowledge.Metrics()
		resp.Knowledge = &m
	}
	return resp
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, s.buildStats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Timestamp: time.Now()}
	if s.agents != nil {
		h := s.agents.HealthStatistics()
		resp.AgentHealth = &h
	}
	s.respondJSON(w, resp)
}

func (s *Server) handleMessageHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MessageHistoryLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if s.messages == nil {
		s.respondJSON(w, MessageHistoryResponse{})
		return
	}
	s.respondJSON(w, MessageHistoryResponse{Messages: s.messages.History(limit)})
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &monitorClient{hub: s.hub, conn: conn, send: make(chan []byte, monitorBufferSize)}
	s.hub.Register(client)

	data, _ := json.Marshal(MonitorMessage{Type: MonitorSnapshot, Data: s.buildStats()})
	client.send <- data

	go client.readPump()
	go client.writePump()
}

func (s *Server) respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("httpapi: failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     message,
		"errorCode": fmt.Sprintf("ERR_%d", status),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
