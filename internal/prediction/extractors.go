package prediction

import (
	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// The four default feature extractors, grounded directly on
// original_source/agent/ml_conflict_prediction.rs's
// FileModificationFeatureExtractor, DependencyConflictFeatureExtractor,
// ResourceConflictFeatureExtractor, and AgentBehaviorFeatureExtractor.
// Each reads its own top-level key out of the raw input and contributes
// nothing when that key is absent, matching the original's "insert only
// if present" style.

type fileModificationExtractor struct{}

func (fileModificationExtractor) Name() string { return "file_modification" }

func (fileModificationExtractor) Extract(ctx coretypes.FeatureContext) (map[string]float64, error) {
	data, ok := ctx.Raw["file_modification"].(map[string]any)
	if !ok {
		return nil, nil
	}
	out := map[string]float64{"file_count": 1.0}
	if v, ok := numeric(data["agent_count"]); ok {
		out["agent_count"] = v
	}
	if v, ok := numeric(data["modification_frequency"]); ok {
		out["modification_frequency"] = v
	}
	if v, ok := numeric(data["affected_lines"]); ok {
		out["affected_lines"] = v
	}
	return out, nil
}

type dependencyExtractor struct{}

func (dependencyExtractor) Name() string { return "dependency" }

func (dependencyExtractor) Extract(ctx coretypes.FeatureContext) (map[string]float64, error) {
	data, ok := ctx.Raw["dependency"].(map[string]any)
	if !ok {
		return nil, nil
	}
	out := map[string]float64{"dependency_count": 1.0}
	if v, ok := numeric(data["complexity"]); ok {
		out["complexity"] = v
	}
	if v, ok := numeric(data["version_conflicts"]); ok {
		out["version_conflicts"] = v
	}
	return out, nil
}

type resourceExtractor struct{}

func (resourceExtractor) Name() string { return "resource" }

func (resourceExtractor) Extract(ctx coretypes.FeatureContext) (map[string]float64, error) {
	data, ok := ctx.Raw["resource"].(map[string]any)
	if !ok {
		return nil, nil
	}
	out := map[string]float64{"resource_count": 1.0}
	if v, ok := numeric(data["contention_level"]); ok {
		out["contention_level"] = v
	}
	return out, nil
}

type agentBehaviorExtractor struct{}

func (agentBehaviorExtractor) Name() string { return "agent_behavior" }

func (agentBehaviorExtractor) Extract(ctx coretypes.FeatureContext) (map[string]float64, error) {
	data, ok := ctx.Raw["agent_behavior"].(map[string]any)
	if !ok {
		return nil, nil
	}
	out := map[string]float64{}
	if v, ok := numeric(data["activity_level"]); ok {
		out["activity_level"] = v
	}
	if v, ok := numeric(data["conflict_history"]); ok {
		out["conflict_history"] = v
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// DefaultExtractors returns the four reference extractors, the set
// spec §4.5 enumerates by name.
func DefaultExtractors() []coretypes.FeatureExtractor {
	return []coretypes.FeatureExtractor{
		fileModificationExtractor{},
		dependencyExtractor{},
		resourceExtractor{},
		agentBehaviorExtractor{},
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
