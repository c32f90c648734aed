// Package session implements the Session Registry: bounded conversations
// scoped to a topic, with membership-at-dispatch-time message routing and
// the last-participant-leaves-completes-session rule.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
	"github.com/google/uuid"
)

// Sender delivers a message to an explicit recipient set; the registry
// uses it to route session sends to current participants minus the
// sender, decoupling session logic from the bus's own transport.
type Sender interface {
	Send(msg coretypes.Message) error
}

// Config bounds the registry's admission behavior.
type Config struct {
	MaxSessions int
}

// DefaultConfig is the registry's default session cap.
func DefaultConfig() Config {
	return Config{MaxSessions: 200}
}

// Registry tracks every active and completed session.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*coretypes.Session
	bus      Sender
}

// NewRegistry constructs a registry that routes session sends through bus.
func NewRegistry(cfg Config, bus Sender) *Registry {
	return &Registry{cfg: cfg, sessions: make(map[string]*coretypes.Session), bus: bus}
}

// Create opens a new Active session with the given topic and initial
// participants.
func (r *Registry) Create(topic string, participants []string) (*coretypes.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.cfg.MaxSessions {
		return nil, coretypes.NewAdmissionError(coretypes.ErrMaxSessionsExceeded,
			fmt.Sprintf("maximum sessions (%d) exceeded", r.cfg.MaxSessions))
	}

	set := make(map[string]bool, len(participants))
	for _, p := range participants {
		set[p] = true
	}

	sess := &coretypes.Session{
		ID:           uuid.NewString(),
		Topic:        topic,
		Participants: set,
		CreatedAt:    time.Now(),
		Status:       coretypes.SessionActive,
	}
	r.sessions[sess.ID] = sess
	return sess, nil
}

// Join adds an agent to an active session's participant set.
func (r *Registry) Join(sessionID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return coretypes.NewAdmissionError(coretypes.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID))
	}
	if sess.Status != coretypes.SessionActive {
		return coretypes.NewStateError(coretypes.ErrInvalidTransition,
			fmt.Sprintf("session %s is not active", sessionID))
	}
	sess.Participants[agentID] = true
	return nil
}

// Leave removes an agent from a session. If this empties the participant
// set on an Active session, the session transitions to Completed with
// reason "last-participant-left".
func (r *Registry) Leave(sessionID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return coretypes.NewAdmissionError(coretypes.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID))
	}
	delete(sess.Participants, agentID)

	if sess.Status == coretypes.SessionActive && len(sess.Participants) == 0 {
		sess.Status = coretypes.SessionCompleted
		sess.CompletionReason = "last-participant-left"
	}
	return nil
}

// Complete explicitly closes a session with the given reason.
func (r *Registry) Complete(sessionID, reason string) error {
	return r.setStatus(sessionID, coretypes.SessionCompleted, reason)
}

// Cancel explicitly cancels a session with the given reason.
func (r *Registry) Cancel(sessionID, reason string) error {
	return r.setStatus(sessionID, coretypes.SessionCancelled, reason)
}

func (r *Registry) setStatus(sessionID string, status coretypes.SessionStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return coretypes.NewAdmissionError(coretypes.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID))
	}
	sess.Status = status
	sess.CompletionReason = reason
	return nil
}

// Send routes a message to every current participant of a session except
// the sender. Membership is resolved at dispatch time: a participant who
// joined after an earlier send never sees it, and one who left before
// this send does not receive it either.
func (r *Registry) Send(sessionID string, msg coretypes.Message) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return coretypes.NewAdmissionError(coretypes.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID))
	}

	var recipients []string
	for id := range sess.Participants {
		if id != msg.SenderID {
			recipients = append(recipients, id)
		}
	}
	sess.Messages = append(sess.Messages, msg)
	r.mu.Unlock()

	msg.RecipientIDs = recipients
	return r.bus.Send(msg)
}

// Info returns a read-only view of a session.
func (r *Registry) Info(sessionID string) (coretypes.SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return coretypes.SessionInfo{}, coretypes.NewAdmissionError(coretypes.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", sessionID))
	}
	return toInfo(sess), nil
}

// List returns session info, optionally restricted to Active sessions.
// Detailed controls whether Participants is populated (the summary view
// omits it for cheaper bulk listing).
func (r *Registry) List(activeOnly, detailed bool) []coretypes.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]coretypes.SessionInfo, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if activeOnly && sess.Status != coretypes.SessionActive {
			continue
		}
		info := toInfo(sess)
		if !detailed {
			info.Participants = nil
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Participants implements messagebus.SessionLookup.
func (r *Registry) Participants(sessionID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(sess.Participants))
	for id := range sess.Participants {
		out = append(out, id)
	}
	return out, true
}

func toInfo(sess *coretypes.Session) coretypes.SessionInfo {
	participants := make([]string, 0, len(sess.Participants))
	for id := range sess.Participants {
		participants = append(participants, id)
	}
	sort.Strings(participants)
	return coretypes.SessionInfo{
		ID:               sess.ID,
		Topic:            sess.Topic,
		Participants:     participants,
		CreatedAt:        sess.CreatedAt,
		Status:           sess.Status,
		MessageCount:     len(sess.Messages),
		CompletionReason: sess.CompletionReason,
	}
}
