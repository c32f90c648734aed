package coretypes

import "time"

// SharedContextMetadata carries the bookkeeping fields the cache uses for
// retention, ranking, and eviction decisions.
type SharedContextMetadata struct {
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	AccessCount  int       `json:"accessCount"`
	LastAccessed time.Time `json:"lastAccessed"`
	SourceAgent  string    `json:"sourceAgent"`
	SourceSession string   `json:"sourceSession,omitempty"`
	TTL          *time.Duration `json:"ttl,omitempty"`
}

// SemanticContextInfo holds the derived, searchable representation of a
// context's content: its embedding vector, extracted tags, and cluster.
type SemanticContextInfo struct {
	Embedding   []float64 `json:"embedding,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ClusterID   string    `json:"clusterId,omitempty"`
	Summary     string    `json:"summary,omitempty"`
}

// ContextSharingEvent is one record of a context being handed to an agent,
// kept for sharing-history queries and need-prediction.
type ContextSharingEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	TargetAgent string    `json:"targetAgent"`
	Reason      string    `json:"reason"`
}

// ContextRelationship links two contexts the cache has judged related,
// e.g. by tag overlap or embedding similarity above a threshold.
type ContextRelationship struct {
	RelatedContextID string  `json:"relatedContextId"`
	Strength         float64 `json:"strength"`
	Kind             string  `json:"kind"`
}

// CompressionScheme names one of the cache's supported content-compression
// strategies, selected per context based on size and access pattern.
type CompressionScheme string

const (
	CompressionNone    CompressionScheme = "none"
	CompressionGzip    CompressionScheme = "gzip"
	CompressionSummary CompressionScheme = "summary"
)

// SharedContext is a unit of knowledge synthesized from agent activity and
// made available for cross-session and cross-agent retrieval.
type SharedContext struct {
	ID            string                `json:"id"`
	Scope         string                `json:"scope"`
	Content       string                `json:"content"`
	Compression   CompressionScheme     `json:"compression"`
	Metadata      SharedContextMetadata `json:"metadata"`
	Semantic      SemanticContextInfo   `json:"semantic"`
	SharingHistory []ContextSharingEvent `json:"sharingHistory,omitempty"`
	Relationships []ContextRelationship `json:"relationships,omitempty"`
}

// KnowledgeCacheStats summarizes the cache's current content and activity.
type KnowledgeCacheStats struct {
	TotalContexts   int     `json:"totalContexts"`
	TotalClusters   int     `json:"totalClusters"`
	TotalSize       int64   `json:"totalSizeBytes"`
	HitRate         float64 `json:"hitRate"`
	AvgAccessCount  float64 `json:"avgAccessCount"`
}
