// Package knowledge implements the Knowledge Cache (a supporting
// component, spec §4.8): cross-session context sharing keyed by a
// caller-supplied key, semantic embedding and tagging, cosine-similarity
// clustering, and three embedding compression schemes. Grounded on
// original_source/knowledge/src/cross_session.rs's CrossSessionManager
// (update_agent_context, get_shared_context,
// enhance_search_results_with_cross_session_context,
// predict_agent_context_needs, record_context_sharing,
// synthesize_cross_session_context, get_metrics) and
// original_source/knowledge/src/embedding.rs's hash-based embedding and
// validate_embedding.
package knowledge

import (
	"errors"
	"hash/fnv"
	"math"
	"strings"
)

// EmbeddingModel produces a fixed-dimension real vector from text.
type EmbeddingModel interface {
	Embed(text string) []float64
	Dimension() int
}

// HashEmbeddingModel is the deterministic, dependency-free default
// model: simple_hash_embed in embedding.rs derives each component from
// a rolling hash of the text plus its index, which this mirrors.
type HashEmbeddingModel struct {
	dimension int
}

// NewHashEmbeddingModel constructs the default embedding model at the
// given dimension (spec §6 config option `embedding_dimension`).
func NewHashEmbeddingModel(dimension int) *HashEmbeddingModel {
	if dimension <= 0 {
		dimension = 64
	}
	return &HashEmbeddingModel{dimension: dimension}
}

func (m *HashEmbeddingModel) Dimension() int { return m.dimension }

// Embed hashes text together with each component index, scales into
// [-1, 1], and L2-normalizes so magnitude checks behave consistently
// across input lengths.
func (m *HashEmbeddingModel) Embed(text string) []float64 {
	out := make([]float64, m.dimension)
	for i := range out {
		h := fnv.New64a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i), byte(i >> 8)})
		v := float64(h.Sum64()%2000000) / 1000000.0 // in [0, 2)
		out[i] = v - 1.0                            // in [-1, 1)
	}
	return normalize(out)
}

func normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	mag := math.Sqrt(sumSq)
	if mag == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / mag
	}
	return out
}

// ValidationResult mirrors embedding.rs's EmbeddingValidationResult.
type ValidationResult struct {
	Valid          bool
	DimensionMatch bool
	MagnitudeCheck bool
	Issues         []string
}

// ErrInvalidEmbedding names a failed embedding validation. Validate does
// not return it: Validate reports failures through ValidationResult, and
// the Cache then drops the embedding but keeps the stored content.
var ErrInvalidEmbedding = errors.New("knowledge: invalid embedding")

// Validate checks an embedding for NaN/Inf components, dimension match
// against the model, and magnitude in [0.1, 10.0], exactly as
// validate_embedding does.
func Validate(embedding []float64, expectedDimension int) ValidationResult {
	result := ValidationResult{Valid: true, DimensionMatch: len(embedding) == expectedDimension, MagnitudeCheck: true}

	for _, v := range embedding {
		if math.IsNaN(v) {
			result.Valid = false
			result.Issues = append(result.Issues, "contains NaN values")
			break
		}
	}
	for _, v := range embedding {
		if math.IsInf(v, 0) {
			result.Valid = false
			result.Issues = append(result.Issues, "contains infinite values")
			break
		}
	}
	if !result.DimensionMatch {
		result.Valid = false
		result.Issues = append(result.Issues, "dimension mismatch")
	}

	var sumSq float64
	for _, v := range embedding {
		sumSq += v * v
	}
	magnitude := math.Sqrt(sumSq)
	if magnitude < 0.1 || magnitude > 10.0 {
		result.MagnitudeCheck = false
		result.Valid = false
		result.Issues = append(result.Issues, "magnitude out of expected range")
	}

	return result
}

// CosineSimilarity is the default distance function used for both
// clustering and need-prediction ranking.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

var keywordTags = []string{
	"function", "class", "struct", "enum", "interface", "package", "error",
	"conflict", "resource", "dependency", "session", "agent", "config", "test",
}

// ExtractTags applies the same keyword-heuristic tagging
// extract_semantic_tags uses by default: a fixed vocabulary scanned
// case-insensitively against the content.
func ExtractTags(content string) []string {
	lower := strings.ToLower(content)
	var tags []string
	for _, kw := range keywordTags {
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
		}
	}
	return tags
}
