// Package config loads the coordinator's process-wide configuration
// document (YAML, JSON, or TOML, selected by file extension) and merges
// it over hardcoded defaults, the way internal/agents/config.go loads
// team configuration via a single os.ReadFile + yaml.Unmarshal call.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FeatureExtractors is the per-name on/off map loaded from the
// feature_extractors option. No component reads it: the predictor always
// runs prediction.DefaultExtractors (file_modification, dependency,
// resource, agent_behavior), and the default keys below name none of them.
type FeatureExtractors map[string]bool

// Config is the full recognized option set from spec §6.
type Config struct {
	MaxConcurrentAgents          int               `yaml:"max_concurrent_agents" json:"max_concurrent_agents" toml:"max_concurrent_agents"`
	MaxBlockTimeSeconds          int               `yaml:"max_block_time_seconds" json:"max_block_time_seconds" toml:"max_block_time_seconds"`
	MaxHeartbeatIntervalSeconds  int               `yaml:"max_heartbeat_interval_seconds" json:"max_heartbeat_interval_seconds" toml:"max_heartbeat_interval_seconds"`
	SnapshotDir                  string            `yaml:"snapshot_dir" json:"snapshot_dir" toml:"snapshot_dir"`
	SnapshotIntervalSeconds      int               `yaml:"snapshot_interval_seconds" json:"snapshot_interval_seconds" toml:"snapshot_interval_seconds"`
	MaxSnapshotFiles             int               `yaml:"max_snapshot_files" json:"max_snapshot_files" toml:"max_snapshot_files"`
	MessageHistoryLimit          int               `yaml:"message_history_limit" json:"message_history_limit" toml:"message_history_limit"`
	ConflictHistoryLimit         int               `yaml:"conflict_history_limit" json:"conflict_history_limit" toml:"conflict_history_limit"`
	PredictionHistoryLimit       int               `yaml:"prediction_history_limit" json:"prediction_history_limit" toml:"prediction_history_limit"`
	PredictionConfidenceThreshold float64          `yaml:"prediction_confidence_threshold" json:"prediction_confidence_threshold" toml:"prediction_confidence_threshold"`
	ConsensusQuorum              float64           `yaml:"consensus_quorum" json:"consensus_quorum" toml:"consensus_quorum"`
	ConsensusTimeoutSeconds      int               `yaml:"consensus_timeout_seconds" json:"consensus_timeout_seconds" toml:"consensus_timeout_seconds"`
	RetrainingIntervalHours      int               `yaml:"retraining_interval_hours" json:"retraining_interval_hours" toml:"retraining_interval_hours"`
	MinSamplesForRetraining      int               `yaml:"min_samples_for_retraining" json:"min_samples_for_retraining" toml:"min_samples_for_retraining"`
	CacheSize                    int               `yaml:"cache_size" json:"cache_size" toml:"cache_size"`
	CacheTTLHours                int               `yaml:"cache_ttl_hours" json:"cache_ttl_hours" toml:"cache_ttl_hours"`
	EmbeddingDimension           int               `yaml:"embedding_dimension" json:"embedding_dimension" toml:"embedding_dimension"`
	FeatureExtractors            FeatureExtractors `yaml:"feature_extractors" json:"feature_extractors" toml:"feature_extractors"`

	NotifyEnableToast    bool   `yaml:"notify_enable_toast" json:"notify_enable_toast" toml:"notify_enable_toast"`
	NotifyEnableTerminal bool   `yaml:"notify_enable_terminal" json:"notify_enable_terminal" toml:"notify_enable_terminal"`
	NotifyEnableBanner   bool   `yaml:"notify_enable_banner" json:"notify_enable_banner" toml:"notify_enable_banner"`
	NotifyDashboardURL   string `yaml:"notify_dashboard_url" json:"notify_dashboard_url" toml:"notify_dashboard_url"`

	SlackWebhookURL   string `yaml:"slack_webhook_url" json:"slack_webhook_url" toml:"slack_webhook_url"`
	DiscordWebhookURL string `yaml:"discord_webhook_url" json:"discord_webhook_url" toml:"discord_webhook_url"`

	EmailSMTPHost string   `yaml:"email_smtp_host" json:"email_smtp_host" toml:"email_smtp_host"`
	EmailSMTPPort int      `yaml:"email_smtp_port" json:"email_smtp_port" toml:"email_smtp_port"`
	EmailUsername string   `yaml:"email_username" json:"email_username" toml:"email_username"`
	EmailPassword string   `yaml:"email_password" json:"email_password" toml:"email_password"`
	EmailFrom     string   `yaml:"email_from" json:"email_from" toml:"email_from"`
	EmailTo       []string `yaml:"email_to" json:"email_to" toml:"email_to"`

	NATSURL          string `yaml:"nats_url" json:"nats_url" toml:"nats_url"`
	NATSEmbedded     bool   `yaml:"nats_embedded" json:"nats_embedded" toml:"nats_embedded"`
	NATSEmbeddedPort int    `yaml:"nats_embedded_port" json:"nats_embedded_port" toml:"nats_embedded_port"`
}

// Default returns the process-wide defaults every loaded document is
// merged over. These values are this document's own and differ in places
// from a component package's DefaultConfig (agent cap, block time,
// snapshot directory and interval); this is the single document an
// operator edits.
func Default() Config {
	return Config{
		MaxConcurrentAgents:           20,
		MaxBlockTimeSeconds:           300,
		MaxHeartbeatIntervalSeconds:   60,
		SnapshotDir:                   "data/snapshots",
		SnapshotIntervalSeconds:       300,
		MaxSnapshotFiles:              10,
		MessageHistoryLimit:           1000,
		ConflictHistoryLimit:          500,
		PredictionHistoryLimit:        500,
		PredictionConfidenceThreshold: 0.7,
		ConsensusQuorum:               0.75,
		ConsensusTimeoutSeconds:       120,
		RetrainingIntervalHours:       24,
		MinSamplesForRetraining:       50,
		CacheSize:                     500,
		CacheTTLHours:                 168,
		EmbeddingDimension:            64,
		FeatureExtractors: FeatureExtractors{
			"file_overlap":        true,
			"resource_contention": true,
			"dependency_graph":    true,
			"temporal_proximity":  true,
		},
		NotifyEnableToast:    true,
		NotifyEnableTerminal: true,
		NotifyEnableBanner:   true,
		NATSEmbedded:         true,
		NATSEmbeddedPort:     4222,
	}
}

// Load reads path (YAML/JSON/TOML, selected by extension) and merges it
// over Default(). A missing or empty field in the document keeps the
// default. path may be empty, in which case Load returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	doc := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return cfg, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return cfg, fmt.Errorf("config: parse json %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return cfg, fmt.Errorf("config: parse toml %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("config: unrecognized extension for %s (want .yaml, .yml, .json, or .toml)", path)
	}

	return merge(cfg, doc), nil
}

// merge overlays non-zero fields of doc onto base, so an omitted key in
// the source document keeps the default rather than zeroing out.
func merge(base, doc Config) Config {
	out := base
	if doc.MaxConcurrentAgents != 0 {
		out.MaxConcurrentAgents = doc.MaxConcurrentAgents
	}
	if doc.MaxBlockTimeSeconds != 0 {
		out.MaxBlockTimeSeconds = doc.MaxBlockTimeSeconds
	}
	if doc.MaxHeartbeatIntervalSeconds != 0 {
		out.MaxHeartbeatIntervalSeconds = doc.MaxHeartbeatIntervalSeconds
	}
	if doc.SnapshotDir != "" {
		out.SnapshotDir = doc.SnapshotDir
	}
	if doc.SnapshotIntervalSeconds != 0 {
		out.SnapshotIntervalSeconds = doc.SnapshotIntervalSeconds
	}
	if doc.MaxSnapshotFiles != 0 {
		out.MaxSnapshotFiles = doc.MaxSnapshotFiles
	}
	if doc.MessageHistoryLimit != 0 {
		out.MessageHistoryLimit = doc.MessageHistoryLimit
	}
	if doc.ConflictHistoryLimit != 0 {
		out.ConflictHistoryLimit = doc.ConflictHistoryLimit
	}
	if doc.PredictionHistoryLimit != 0 {
		out.PredictionHistoryLimit = doc.PredictionHistoryLimit
	}
	if doc.PredictionConfidenceThreshold != 0 {
		out.PredictionConfidenceThreshold = doc.PredictionConfidenceThreshold
	}
	if doc.ConsensusQuorum != 0 {
		out.ConsensusQuorum = doc.ConsensusQuorum
	}
	if doc.ConsensusTimeoutSeconds != 0 {
		out.ConsensusTimeoutSeconds = doc.ConsensusTimeoutSeconds
	}
	if doc.RetrainingIntervalHours != 0 {
		out.RetrainingIntervalHours = doc.RetrainingIntervalHours
	}
	if doc.MinSamplesForRetraining != 0 {
		out.MinSamplesForRetraining = doc.MinSamplesForRetraining
	}
	if doc.CacheSize != 0 {
		out.CacheSize = doc.CacheSize
	}
	if doc.CacheTTLHours != 0 {
		out.CacheTTLHours = doc.CacheTTLHours
	}
	if doc.EmbeddingDimension != 0 {
		out.EmbeddingDimension = doc.EmbeddingDimension
	}
	if len(doc.FeatureExtractors) > 0 {
		out.FeatureExtractors = doc.FeatureExtractors
	}
	out.NotifyEnableToast = doc.NotifyEnableToast
	out.NotifyEnableTerminal = doc.NotifyEnableTerminal
	out.NotifyEnableBanner = doc.NotifyEnableBanner
	if doc.NotifyDashboardURL != "" {
		out.NotifyDashboardURL = doc.NotifyDashboardURL
	}
	if doc.SlackWebhookURL != "" {
		out.SlackWebhookURL = doc.SlackWebhookURL
	}
	if doc.DiscordWebhookURL != "" {
		out.DiscordWebhookURL = doc.DiscordWebhookURL
	}
	if doc.EmailSMTPHost != "" {
		out.EmailSMTPHost = doc.EmailSMTPHost
	}
	if doc.EmailSMTPPort != 0 {
		out.EmailSMTPPort = doc.EmailSMTPPort
	}
	if doc.EmailUsername != "" {
		out.EmailUsername = doc.EmailUsername
	}
	if doc.EmailPassword != "" {
		out.EmailPassword = doc.EmailPassword
	}
	if doc.EmailFrom != "" {
		out.EmailFrom = doc.EmailFrom
	}
	if len(doc.EmailTo) > 0 {
		out.EmailTo = doc.EmailTo
	}
	if doc.NATSURL != "" {
		out.NATSURL = doc.NATSURL
	}
	out.NATSEmbedded = doc.NATSEmbedded
	if doc.NATSEmbeddedPort != 0 {
		out.NATSEmbeddedPort = doc.NATSEmbeddedPort
	}
	return out
}

// Validate reports whether cfg's values are internally consistent
// enough to build a coordinator from (positive caps, a quorum fraction
// in (0, 1]).
func (c Config) Validate() error {
	if c.MaxConcurrentAgents <= 0 {
		return fmt.Errorf("config: max_concurrent_agents must be positive")
	}
	if c.ConsensusQuorum <= 0 || c.ConsensusQuorum > 1 {
		return fmt.Errorf("config: consensus_quorum must be in (0, 1]")
	}
	if c.PredictionConfidenceThreshold < 0 || c.PredictionConfidenceThreshold > 1 {
		return fmt.Errorf("config: prediction_confidence_threshold must be in [0, 1]")
	}
	return nil
}

// SnapshotInterval returns SnapshotIntervalSeconds as a time.Duration.
func (c Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

// ConsensusTimeout returns ConsensusTimeoutSeconds as a time.Duration.
func (c Config) ConsensusTimeout() time.Duration {
	return time.Duration(c.ConsensusTimeoutSeconds) * time.Second
}

// RetrainingInterval returns RetrainingIntervalHours as a time.Duration.
func (c Config) RetrainingInterval() time.Duration {
	return time.Duration(c.RetrainingIntervalHours) * time.Hour
}

// CacheTTL returns CacheTTLHours as a time.Duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// MaxBlockTime returns MaxBlockTimeSeconds as a time.Duration.
func (c Config) MaxBlockTime() time.Duration {
	return time.Duration(c.MaxBlockTimeSeconds) * time.Duration(time.Second)
}

// MaxHeartbeatInterval returns MaxHeartbeatIntervalSeconds as a time.Duration.
func (c Config) MaxHeartbeatInterval() time.Duration {
	return time.Duration(c.MaxHeartbeatIntervalSeconds) * time.Second
}
