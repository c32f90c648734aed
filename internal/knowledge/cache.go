package knowledge

import (
	"sort"
	"sync"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config bounds the cache's size, TTL, and clustering behavior.
type Config struct {
	MaxContexts        int
	DefaultTTL         time.Duration
	EmbeddingDimension int
	// ClusterThreshold is the cosine-similarity floor for joining an
	// existing cluster rather than starting a new one (§9 Open
	// Question: clustering is a cosine-similarity threshold against
	// each cluster's founding member).
	ClusterThreshold float64
}

// DefaultConfig mirrors CrossSessionConfig's reference defaults
// (max_shared_contexts 100, context_ttl_hours 168) generalized to a
// slightly larger cache and a 0.75 clustering threshold.
func DefaultConfig() Config {
	return Config{MaxContexts: 500, DefaultTTL: 168 * time.Hour, EmbeddingDimension: 64, ClusterThreshold: 0.75}
}

// Cache is the Knowledge Cache.
type Cache struct {
	cfg      Config
	embedder EmbeddingModel
	logger   *zap.Logger

	mu       sync.Mutex
	contexts map[string]*coretypes.SharedContext
	// clusters maps a cluster ID (the ID of the context that founded
	// it) to its member context IDs.
	clusters map[string][]string
}

// New constructs a cache. A nil embedder defaults to the deterministic
// hash-based model.
func New(cfg Config, embedder EmbeddingModel, logger *zap.Logger) *Cache {
	if embedder == nil {
		embedder = NewHashEmbeddingModel(cfg.EmbeddingDimension)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		cfg:      cfg,
		embedder: embedder,
		logger:   logger.Named("knowledge"),
		contexts: make(map[string]*coretypes.SharedContext),
		clusters: make(map[string][]string),
	}
}

// Update stores or refreshes the context indexed by key: the first
// writer becomes the context's recorded source agent (an invariant
// spec §4.8 requires); subsequent writers just refresh content and
// metadata. Semantic info (embedding, tags, cluster) is (re)computed
// each call since the content may have changed.
func (c *Cache) Update(agentID, key, data string, metadata map[string]string) coretypes.SharedContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	ctx, exists := c.contexts[key]
	if !exists {
		ttl := c.cfg.DefaultTTL
		ctx = &coretypes.SharedContext{
			ID:      key,
			Content: data,
			Metadata: coretypes.SharedContextMetadata{
				CreatedAt:   now,
				SourceAgent: agentID,
				TTL:         &ttl,
			},
		}
		c.contexts[key] = ctx
	} else {
		ctx.Content = data
	}

	ctx.Metadata.UpdatedAt = now
	ctx.Metadata.LastAccessed = now
	if metadata != nil {
		if scope, ok := metadata["scope"]; ok {
			ctx.Scope = scope
		}
		if session, ok := metadata["session"]; ok && ctx.Metadata.SourceSession == "" {
			ctx.Metadata.SourceSession = session
		}
	}

	embedding := c.embedder.Embed(data)
	validation := Validate(embedding, c.embedder.Dimension())
	if validation.Valid {
		ctx.Semantic.Embedding = embedding
	} else {
		ctx.Semantic.Embedding = nil
		c.logger.Warn("embedding failed validation, content kept", zap.String("key", key), zap.Strings("issues", validation.Issues))
	}
	ctx.Semantic.Tags = ExtractTags(data)
	if ctx.Semantic.Embedding != nil {
		ctx.Semantic.ClusterID = c.assignClusterLocked(key, ctx.Semantic.Embedding)
	}

	c.evictIfOverCapacityLocked()
	return *ctx
}

// GetShared fetches a context by key for agentID, bumping its access
// bookkeeping.
func (c *Cache) GetShared(agentID, key string) (coretypes.SharedContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, ok := c.contexts[key]
	if !ok || c.expiredLocked(ctx) {
		return coretypes.SharedContext{}, false
	}
	ctx.Metadata.AccessCount++
	ctx.Metadata.LastAccessed = time.Now()
	return *ctx, true
}

// EnhanceSearch appends cluster-mates of each result key not already
// present, matching enhance_search_results_with_cross_session_context's
// role of widening a search result set using cross-session relationships.
func (c *Cache) EnhanceSearch(results []string, agentID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(results))
	out := append([]string(nil), results...)
	for _, r := range results {
		seen[r] = true
	}

	for _, key := range results {
		ctx, ok := c.contexts[key]
		if !ok || ctx.Semantic.ClusterID == "" {
			continue
		}
		for _, member := range c.clusters[ctx.Semantic.ClusterID] {
			if !seen[member] {
				seen[member] = true
				out = append(out, member)
			}
		}
	}
	return out
}

// PredictNeeds ranks cached contexts by cosine similarity of their
// embedding to sessionContext's, returning the top limit keys,
// matching predict_agent_context_needs.
func (c *Cache) PredictNeeds(agentID, sessionContext string, limit int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.embedder.Embed(sessionContext)

	type scored struct {
		key   string
		score float64
	}
	var ranked []scored
	for key, ctx := range c.contexts {
		if ctx.Semantic.Embedding == nil || c.expiredLocked(ctx) {
			continue
		}
		ranked = append(ranked, scored{key: key, score: CosineSimilarity(target, ctx.Semantic.Embedding)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].key < ranked[j].key
	})

	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = ranked[i].key
	}
	return out
}

// RecordSharing appends a sharing event to the context at key and
// bumps its sharing count, matching record_context_sharing.
func (c *Cache) RecordSharing(from, to, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, ok := c.contexts[key]
	if !ok {
		return false
	}
	ctx.Metadata.AccessCount++
	ctx.SharingHistory = append(ctx.SharingHistory, coretypes.ContextSharingEvent{
		Timestamp:   time.Now(),
		TargetAgent: to,
		Reason:      "shared from " + from,
	})
	return true
}

// Synthesize combines the content of every cached context whose
// source session matches one of sessionIDs into a single new context
// under topic, matching synthesize_cross_session_context.
func (c *Cache) Synthesize(sessionIDs []string, topic string) coretypes.SharedContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	wanted := make(map[string]bool, len(sessionIDs))
	for _, s := range sessionIDs {
		wanted[s] = true
	}

	var keys []string
	for k := range c.contexts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var content string
	var sources []string
	for _, k := range keys {
		ctx := c.contexts[k]
		if len(wanted) > 0 && !wanted[ctx.Metadata.SourceSession] {
			continue
		}
		if content != "" {
			content += "\n---\n"
		}
		content += ctx.Content
		sources = append(sources, k)
	}

	id := uuid.NewString()
	now := time.Now()
	synthesized := coretypes.SharedContext{
		ID:      id,
		Scope:   topic,
		Content: content,
		Metadata: coretypes.SharedContextMetadata{
			CreatedAt:    now,
			UpdatedAt:    now,
			LastAccessed: now,
			SourceAgent:  "synthesizer",
		},
	}
	embedding := c.embedder.Embed(content)
	if Validate(embedding, c.embedder.Dimension()).Valid {
		synthesized.Semantic.Embedding = embedding
		synthesized.Semantic.ClusterID = c.assignClusterLocked(id, embedding)
	}
	synthesized.Semantic.Tags = ExtractTags(content)
	for _, s := range sources {
		synthesized.Relationships = append(synthesized.Relationships, coretypes.ContextRelationship{
			RelatedContextID: s,
			Strength:          1,
			Kind:              "synthesis_source",
		})
	}

	c.contexts[id] = &synthesized
	return synthesized
}

// Metrics reports the cache's current content and activity.
func (c *Cache) Metrics() coretypes.KnowledgeCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalSize int64
	var totalAccess int64
	for _, ctx := range c.contexts {
		totalSize += int64(len(ctx.Content))
		totalAccess += int64(ctx.Metadata.AccessCount)
	}
	avg := 0.0
	if n := len(c.contexts); n > 0 {
		avg = float64(totalAccess) / float64(n)
	}
	return coretypes.KnowledgeCacheStats{
		TotalContexts:  len(c.contexts),
		TotalClusters:  len(c.clusters),
		TotalSize:      totalSize,
		AvgAccessCount: avg,
	}
}

// Sweep removes expired contexts, reclaiming space per spec §4.8's
// "expiry reclaims space during sweeps".
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, ctx := range c.contexts {
		if c.expiredLocked(ctx) {
			delete(c.contexts, key)
			c.removeFromClusterLocked(ctx.Semantic.ClusterID, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) expiredLocked(ctx *coretypes.SharedContext) bool {
	if ctx.Metadata.TTL == nil || *ctx.Metadata.TTL <= 0 {
		return false
	}
	return time.Since(ctx.Metadata.LastAccessed) > *ctx.Metadata.TTL
}

func (c *Cache) evictIfOverCapacityLocked() {
	limit := c.cfg.MaxContexts
	if limit <= 0 || len(c.contexts) <= limit {
		return
	}
	var oldestKey string
	var oldest time.Time
	for key, ctx := range c.contexts {
		if oldestKey == "" || ctx.Metadata.LastAccessed.Before(oldest) {
			oldestKey = key
			oldest = ctx.Metadata.LastAccessed
		}
	}
	if oldestKey != "" {
		ctx := c.contexts[oldestKey]
		delete(c.contexts, oldestKey)
		c.removeFromClusterLocked(ctx.Semantic.ClusterID, oldestKey)
	}
}

// assignClusterLocked implements the cosine-similarity-threshold
// clustering decided for Open Question 2: compare against each
// existing cluster's founding member's embedding and join the best
// match at or above the threshold, else start a new cluster keyed by
// this context's own ID.
func (c *Cache) assignClusterLocked(key string, embedding []float64) string {
	c.removeFromClusterLocked("", key)

	var clusterIDs []string
	for id := range c.clusters {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Strings(clusterIDs)

	best, bestScore := "", -1.0
	for _, id := range clusterIDs {
		rep, ok := c.contexts[id]
		if !ok || rep.Semantic.Embedding == nil {
			continue
		}
		score := CosineSimilarity(embedding, rep.Semantic.Embedding)
		if score > bestScore {
			bestScore, best = score, id
		}
	}

	if best != "" && bestScore >= c.cfg.ClusterThreshold {
		c.clusters[best] = append(c.clusters[best], key)
		return best
	}

	c.clusters[key] = []string{key}
	return key
}

func (c *Cache) removeFromClusterLocked(clusterID, key string) {
	if clusterID != "" {
		c.clusters[clusterID] = removeString(c.clusters[clusterID], key)
		if len(c.clusters[clusterID]) == 0 {
			delete(c.clusters, clusterID)
		}
		return
	}
	for id, members := range c.clusters {
		c.clusters[id] = removeString(members, key)
		if len(c.clusters[id]) == 0 {
			delete(c.clusters, id)
		}
	}
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
