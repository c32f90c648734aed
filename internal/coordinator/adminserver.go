// Package coordinator's admin surface: the mutating half of the §6 CLI
// contract (agent register/unregister/send-message/broadcast, session
// create/join/leave/send-message, task add/score/prioritize) exposed as
// JSON-over-HTTP routes so cmd/rhema-coordinator's subcommands can drive
// a running daemon, grounded the same way internal/httpapi's read-only
// "system" surface is: mux.NewRouter, PathPrefix("/api").Subrouter(),
// respondJSON/respondError helpers.
package coordinator

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rhema-sh/coordinator/internal/coretypes"
	"go.uber.org/zap"
)

// AdminServer exposes the coordination-mutating subset of the CLI's
// operations over HTTP. Unlike httpapi.Server it is not decoupled behind
// narrow interfaces: the admin surface is coordinator-specific by
// nature, so it holds the concrete *Coordinator directly.
type AdminServer struct {
	co     *Coordinator
	logger *zap.Logger
	router *mux.Router
}

// NewAdminServer builds an AdminServer wired to co.
func NewAdminServer(co *Coordinator, logger *zap.Logger) *AdminServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AdminServer{co: co, logger: logger}
	s.setupRoutes()
	return s
}

func (s *AdminServer) setupRoutes() {
	s.router = mux.NewRouter()
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/agent/register", s.handleAgentRegister).Methods("POST")
	api.HandleFunc("/agent/unregister", s.handleAgentUnregister).Methods("POST")
	api.HandleFunc("/agent/list", s.handleAgentList).Methods("GET")
	api.HandleFunc("/agent/status", s.handleAgentStatus).Methods("GET")
	api.HandleFunc("/agent/info", s.handleAgentInfo).Methods("GET")
	api.HandleFunc("/agent/send-message", s.handleSendMessage).Methods("POST")
	api.HandleFunc("/agent/broadcast", s.handleBroadcast).Methods("POST")

	api.HandleFunc("/session/create", s.handleSessionCreate).Methods("POST")
	api.HandleFunc("/session/list", s.handleSessionList).Methods("GET")
	api.HandleFunc("/session/join", s.handleSessionJoin).Methods("POST")
	api.HandleFunc("/session/leave", s.handleSessionLeave).Methods("POST")
	api.HandleFunc("/session/send-message", s.handleSessionSend).Methods("POST")
	api.HandleFunc("/session/info", s.handleSessionInfo).Methods("GET")

	api.HandleFunc("/task/add", s.handleTaskAdd).Methods("POST")
	api.HandleFunc("/task/list", s.handleTaskList).Methods("GET")
	api.HandleFunc("/task/score", s.handleTaskScore).Methods("GET")
	api.HandleFunc("/task/prioritize", s.handleTaskPrioritize).Methods("POST")
}

// Router exposes the underlying mux.Router for http.Server wiring.
func (s *AdminServer) Router() http.Handler { return s.router }

func (s *AdminServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("coordinator: failed to encode admin response", zap.Error(err))
	}
}

// errorResponse is the envelope every failed admin call returns; Kind
// is the §7 error-kind tag the caller maps to an exit code.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *AdminServer) respondError(w http.ResponseWriter, err error) {
	status, kind := classifyError(err)
	s.respondJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// classifyError maps a §7 error kind to an HTTP status and a short tag
// the CLI reuses to pick its exit code, per spec §6's exit-code table.
func classifyError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case isKind(err, coretypes.ErrAdmission):
		return http.StatusConflict, "admission"
	case isKind(err, coretypes.ErrValidation):
		return http.StatusBadRequest, "validation"
	case isKind(err, coretypes.ErrState):
		return http.StatusConflict, "state"
	case isKind(err, coretypes.TimedOut), isKind(err, coretypes.ErrConsensus):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func isKind(err error, kind error) bool {
	return err != nil && errorsIs(err, kind)
}

// --- agent routes ---

type agentRegisterRequest struct {
	ID string `json:"id"`
}

func (s *AdminServer) handleAgentRegister(w http.ResponseWriter, r *http.Request) {
	var req agentRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	if err := s.co.Agents.Join(req.ID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": req.ID, "status": string(coretypes.AgentIdle)})
}

func (s *AdminServer) handleAgentUnregister(w http.ResponseWriter, r *http.Request) {
	var req agentRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	if err := s.co.Agents.Leave(req.ID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": req.ID})
}

func (s *AdminServer) handleAgentList(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.co.Agents.Statistics())
}

func (s *AdminServer) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	status, err := s.co.Agents.GetState(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

func (s *AdminServer) handleAgentInfo(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	metadata, err := s.co.Agents.GetMetadata(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	history := s.co.Agents.GetHistory(id, 50)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id": id, "metadata": metadata, "history": history,
	})
}

type sendMessageRequest struct {
	SenderID     string   `json:"senderId"`
	RecipientIDs []string `json:"recipientIds,omitempty"`
	Type         string   `json:"type"`
	Priority     string   `json:"priority"`
	Content      string   `json:"content"`
	RequiresAck  bool     `json:"requiresAck"`
}

func parsePriority(s string) coretypes.MessagePriority {
	switch s {
	case "low":
		return coretypes.PriorityLow
	case "high":
		return coretypes.PriorityHigh
	case "critical":
		return coretypes.PriorityCritical
	default:
		return coretypes.PriorityNormal
	}
}

func (req sendMessageRequest) toMessage() coretypes.Message {
	return coretypes.Message{
		ID:           newMessageID(),
		Type:         coretypes.ParseMessageType(req.Type),
		Priority:     parsePriority(req.Priority),
		SenderID:     req.SenderID,
		RecipientIDs: req.RecipientIDs,
		Content:      req.Content,
		Timestamp:    time.Now(),
		RequiresAck:  req.RequiresAck,
	}
}

func (s *AdminServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	msg := req.toMessage()
	if err := s.co.Bus.Send(msg); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": msg.ID})
}

func (s *AdminServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	req.RecipientIDs = nil
	msg := req.toMessage()
	if err := s.co.Bus.Broadcast(msg); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": msg.ID})
}

// --- session routes ---

type sessionCreateRequest struct {
	Topic        string   `json:"topic"`
	Participants []string `json:"participants"`
}

func (s *AdminServer) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	sess, err := s.co.Sessions.Create(req.Topic, req.Participants)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

func (s *AdminServer) handleSessionList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	detailed := r.URL.Query().Get("detailed") != "false"
	s.respondJSON(w, http.StatusOK, s.co.Sessions.List(activeOnly, detailed))
}

type sessionMemberRequest struct {
	Session string `json:"session"`
	Agent   string `json:"agent"`
}

func (s *AdminServer) handleSessionJoin(w http.ResponseWriter, r *http.Request) {
	var req sessionMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	if err := s.co.Sessions.Join(req.Session, req.Agent); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"session": req.Session, "agent": req.Agent})
}

func (s *AdminServer) handleSessionLeave(w http.ResponseWriter, r *http.Request) {
	var req sessionMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	if err := s.co.Sessions.Leave(req.Session, req.Agent); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"session": req.Session, "agent": req.Agent})
}

type sessionSendRequest struct {
	Session  string `json:"session"`
	SenderID string `json:"senderId"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Content  string `json:"content"`
}

func (s *AdminServer) handleSessionSend(w http.ResponseWriter, r *http.Request) {
	var req sessionSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	msg := coretypes.Message{
		ID:        newMessageID(),
		Type:      coretypes.ParseMessageType(req.Type),
		Priority:  parsePriority(req.Priority),
		SenderID:  req.SenderID,
		Content:   req.Content,
		Timestamp: time.Now(),
	}
	if err := s.co.Sessions.Send(req.Session, msg); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": msg.ID})
}

func (s *AdminServer) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	info, err := s.co.Sessions.Info(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

// --- task routes ---

type taskRequest struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Priority     string   `json:"priority"`
	Scope        string   `json:"scope"`
	Dependencies []string `json:"dependencies,omitempty"`
	Factors      coretypes.ScoringFactors `json:"scoringFactors"`
}

func (req taskRequest) toTask() coretypes.Task {
	now := time.Now()
	return coretypes.Task{
		ID:           req.ID,
		Title:        req.Title,
		Description:  req.Description,
		Type:         coretypes.ParseTaskType(req.Type),
		Priority:     coretypes.ParseTaskPriority(req.Priority),
		Status:       coretypes.TaskPending,
		Scope:        req.Scope,
		Dependencies: req.Dependencies,
		Factors:      req.Factors,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
}

func (s *AdminServer) handleTaskAdd(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	task := req.toTask()
	if err := s.co.Tasks.AddTask(task); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

func (s *AdminServer) handleTaskList(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	s.respondJSON(w, http.StatusOK, s.co.Tasks.ScopeTasks(scope))
}

func (s *AdminServer) handleTaskScore(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	score, err := s.co.Tasks.Score(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, score)
}

type prioritizeRequest struct {
	Scope    string `json:"scope"`
	Strategy string `json:"strategy"`
}

func (s *AdminServer) handleTaskPrioritize(w http.ResponseWriter, r *http.Request) {
	var req prioritizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	strategy := coretypes.StrategyWeightedScoring
	if req.Strategy != "" {
		strategy = coretypes.ParsePrioritizationStrategy(req.Strategy)
	}
	result, err := s.co.Tasks.Prioritize(req.Scope, strategy)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}
