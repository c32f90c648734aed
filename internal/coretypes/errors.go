// Package coretypes holds the domain types shared by every coordination
// component: agents, messages, sessions, tasks, conflicts, predictions,
// prevention actions, ML models, and shared knowledge contexts.
package coretypes

import "errors"

// Error kinds from the §7 error taxonomy. Each concrete error returned
// by a component wraps one of these with errors.Is/errors.As so callers
// can branch on kind without parsing strings.
var (
	// ErrAdmission covers cap-exceeded, duplicate-id, not-found, and
	// has-active-locks conditions. Never logged at error level.
	ErrAdmission = errors.New("admission error")

	// ErrValidation covers schema/invariant failures.
	ErrValidation = errors.New("validation error")

	// ErrTransient covers I/O and timeout failures. Background loops
	// log them and retry on their next tick; no backoff is applied.
	ErrTransient = errors.New("transient error")

	// ErrState covers invalid transitions and cyclic dependencies.
	ErrState = errors.New("state error")

	// ErrResolution covers conflicts that could not be resolved.
	ErrResolution = errors.New("resolution error")

	// ErrModel covers feature-extractor failures and inactive models.
	ErrModel = errors.New("model error")

	// ErrConsensus covers quorum-not-met and timed-out rounds.
	ErrConsensus = errors.New("consensus error")
)

// Specific admission errors, each wrapping ErrAdmission.
var (
	ErrAgentAlreadyExists          = errors.New("agent already exists")
	ErrMaxConcurrentAgentsExceeded = errors.New("maximum concurrent agents exceeded")
	ErrAgentNotFound               = errors.New("agent not found")
	ErrAgentHasActiveLocks         = errors.New("agent has active locks")
	ErrRecipientNotFound           = errors.New("recipient not found")
	ErrSessionNotFound             = errors.New("session not found")
	ErrMaxSessionsExceeded         = errors.New("maximum sessions exceeded")
	ErrTaskNotFound                = errors.New("task not found")
)

// Specific state errors, each wrapping ErrState.
var (
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrCircularDependency = errors.New("circular dependency")
)

// TimedOut is a standalone sentinel for timeouts; it does not wrap
// ErrConsensus or ErrTransient. Callers compare with errors.Is(err, TimedOut).
var TimedOut = errors.New("timed out")

// wrap produces an error that both stringifies with context and
// satisfies errors.Is against kind.
func wrap(kind error, context string) error {
	return &kindError{kind: kind, msg: context}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NewAdmissionError builds an AdmissionError-kind error with context.
func NewAdmissionError(specific error, context string) error {
	return &kindError{kind: errJoin(ErrAdmission, specific), msg: context}
}

// NewValidationError builds a ValidationError-kind error with context.
func NewValidationError(context string) error {
	return wrap(ErrValidation, context)
}

// NewTransientError builds a TransientError-kind error with context.
func NewTransientError(context string) error {
	return wrap(ErrTransient, context)
}

// NewStateError builds a StateError-kind error with context.
func NewStateError(specific error, context string) error {
	return &kindError{kind: errJoin(ErrState, specific), msg: context}
}

// NewResolutionError builds a ResolutionError-kind error with context.
func NewResolutionError(context string) error {
	return wrap(ErrResolution, context)
}

// NewModelError builds a ModelError-kind error with context.
func NewModelError(context string) error {
	return wrap(ErrModel, context)
}

// NewConsensusError builds a ConsensusError-kind error with context.
func NewConsensusError(context string) error {
	return wrap(ErrConsensus, context)
}

// multiKindError lets a single error satisfy errors.Is for two targets
// (the broad taxonomy kind and the specific sentinel).
type multiKindError struct {
	a, b error
}

func errJoin(a, b error) error { return &multiKindError{a: a, b: b} }

func (e *multiKindError) Error() string { return e.b.Error() }

func (e *multiKindError) Is(target error) bool {
	return target == e.a || target == e.b
}

func (e *multiKindError) Unwrap() []error { return []error{e.a, e.b} }
