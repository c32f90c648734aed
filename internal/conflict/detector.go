// Package conflict implements the Conflict Detector: classification of
// observed coordination events into zero or one typed, severity-tagged
// Conflict record, grounded on the threshold-rule shape of
// internal/metrics/alerts.go and the conflict-type/detail fields fixed
// by original_source's conflict_prevention types.
package conflict

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
	"github.com/google/uuid"
)

// Event is one observed occurrence the detector may classify: a file
// change, a dependency update, a resource request, and so on. Kind
// selects which classification rule applies; Details carries the
// rule-specific fields (file path, affected lines, resource name, ...).
type Event struct {
	Kind      string
	Agents    []string
	Scope     string
	Details   map[string]string
	Timestamp time.Time
}

// AgentLookup lets the detector verify involved agents are registered at
// detection time, per the spec §3 invariant that Conflict.involved_agents
// is a subset of registered agents.
type AgentLookup interface {
	Exists(id string) bool
}

// Config bounds the detector's retention.
type Config struct {
	HistoryLimit int
}

// DefaultConfig matches the retention defaults used across the core.
func DefaultConfig() Config {
	return Config{HistoryLimit: 500}
}

// Detector classifies events into conflicts and keeps a bounded history
// of every conflict it has raised.
type Detector struct {
	cfg    Config
	agents AgentLookup

	mu      sync.Mutex
	history []coretypes.Conflict
}

// NewDetector constructs a detector that checks involved agents against lookup.
func NewDetector(cfg Config, agents AgentLookup) *Detector {
	return &Detector{cfg: cfg, agents: agents}
}

// Detect classifies a single event. It returns ok=false when the event
// does not amount to a conflict — most commonly because fewer than two
// agents are implicated in incompatible activity on the same scope.
func (d *Detector) Detect(evt Event) (coretypes.Conflict, bool, error) {
	agents := dedupe(evt.Agents)
	if len(agents) < 2 {
		return coretypes.Conflict{}, false, nil
	}
	if d.agents != nil {
		for _, a := range agents {
			if !d.agents.Exists(a) {
				return coretypes.Conflict{}, false, coretypes.NewValidationError(
					fmt.Sprintf("conflict detector: agent %s is not registered", a))
			}
		}
	}

	ctype, severity, ok := classify(evt)
	if !ok {
		return coretypes.Conflict{}, false, nil
	}

	c := coretypes.Conflict{
		ID:             uuid.NewString(),
		Type:           ctype,
		Severity:       severity,
		Status:         coretypes.ConflictDetected,
		InvolvedAgents: agents,
		Resource:       evt.Scope,
		Description:    describe(ctype, evt),
		DetectedAt:     evt.Timestamp,
		Metadata:       evt.Details,
	}
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now()
	}

	d.mu.Lock()
	d.history = append(d.history, c)
	if limit := d.cfg.HistoryLimit; limit > 0 && len(d.history) > limit {
		drop := len(d.history) - limit
		d.history = append([]coretypes.Conflict(nil), d.history[drop:]...)
	}
	d.mu.Unlock()

	return c, true, nil
}

// classify maps an event's kind and details to a conflict type and
// severity. File, dependency, resource, scope-overlap, concurrent-edit
// and merge-conflict events map to their own types; any other non-empty
// kind becomes a Custom conflict type of that name at Low severity, and
// an empty kind is not classified.
func classify(evt Event) (coretypes.ConflictType, coretypes.ConflictSeverity, bool) {
	switch evt.Kind {
	case "file_modification", "file_overlap":
		return coretypes.ConflictFileOverlap, fileSeverity(evt), true
	case "dependency", "dependency_update":
		return coretypes.ConflictDependencyCycle, coretypes.SeverityMedium, true
	case "resource", "resource_request":
		return coretypes.ConflictResourceContention, resourceSeverity(evt), true
	case "scope_overlap":
		return coretypes.ConflictScopeOverlap, coretypes.SeverityMedium, true
	case "concurrent_edit":
		return coretypes.ConflictConcurrentEdit, coretypes.SeverityHigh, true
	case "merge_conflict":
		return coretypes.ConflictMergeConflict, coretypes.SeverityHigh, true
	case "":
		return coretypes.ConflictType{}, 0, false
	default:
		return coretypes.CustomConflictType(evt.Kind), coretypes.SeverityLow, true
	}
}

func fileSeverity(evt Event) coretypes.ConflictSeverity {
	if evt.Details["affected_lines"] != "" {
		return coretypes.SeverityHigh
	}
	return coretypes.SeverityMedium
}

func resourceSeverity(evt Event) coretypes.ConflictSeverity {
	if len(evt.Agents) > 3 {
		return coretypes.SeverityHigh
	}
	return coretypes.SeverityMedium
}

func describe(ctype coretypes.ConflictType, evt Event) string {
	return fmt.Sprintf("%s detected among %d agents on scope %q", ctype, len(dedupe(evt.Agents)), evt.Scope)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// History returns up to limit of the most recently detected conflicts.
func (d *Detector) History(limit int) []coretypes.Conflict {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]coretypes.Conflict, limit)
	copy(out, d.history[n-limit:])
	return out
}

// Statistics summarizes conflict counts by severity and status.
type Statistics struct {
	Total       int
	BySeverity  map[string]int
	ByStatus    map[string]int
}

// Statistics computes a point-in-time tally over recorded history.
func (d *Detector) Statistics() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := Statistics{BySeverity: make(map[string]int), ByStatus: make(map[string]int)}
	for _, c := range d.history {
		stats.Total++
		stats.BySeverity[c.Severity.String()]++
		stats.ByStatus[string(c.Status)]++
	}
	return stats
}
