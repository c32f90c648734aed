package external

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhema-sh/coordinator/internal/notifications"
)

// DiscordConfig holds configuration for Discord notifications.
type DiscordConfig struct {
	WebhookURL  string                 `json:"webhook_url"`
	Username    string                 `json:"username,omitempty"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	MinPriority notifications.Priority `json:"min_priority,omitempty"`
}

// DiscordNotifier sends escalation notifications to Discord via webhooks.
type DiscordNotifier struct {
	config DiscordConfig
	client *http.Client
}

// NewDiscordNotifier creates a new Discord notifier.
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the notifier name.
func (d *DiscordNotifier) Name() string {
	return "discord"
}

// ShouldNotify checks if the escalation clears this channel's minimum priority.
func (d *DiscordNotifier) ShouldNotify(e notifications.Escalation) bool {
	return e.Priority >= d.config.MinPriority
}

// Send sends an escalation notification to Discord.
func (d *DiscordNotifier) Send(e notifications.Escalation) error {
	if d.config.WebhookURL == "" {
		return fmt.Errorf("discord webhook URL not configured")
	}

	color := 0x00FF00 // green
	switch e.Priority {
	case notifications.PriorityCritical:
		color = 0xFF0000 // red
	case notifications.PriorityHigh:
		color = 0xFFA500 // orange
	}

	fields := []map[string]interface{}{
		{"name": "Conflict", "value": e.ConflictID, "inline": true},
		{"name": "Type", "value": e.ConflictType, "inline": true},
		{"name": "Priority", "value": e.Priority.String(), "inline": true},
	}
	if e.Scope != "" {
		fields = append(fields, map[string]interface{}{"name": "Scope", "value": e.Scope, "inline": true})
	}
	if len(e.InvolvedAgents) > 0 {
		fields = append(fields, map[string]interface{}{
			"name": "Agents", "value": strings.Join(e.InvolvedAgents, ", "), "inline": false,
		})
	}

	embed := map[string]interface{}{
		"title":       "Conflict escalated for human review",
		"description": e.Summary(),
		"color":       color,
		"timestamp":   e.Timestamp.Format(time.RFC3339),
		"fields":      fields,
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}
	if d.config.Username != "" {
		payload["username"] = d.config.Username
	}
	if d.config.AvatarURL != "" {
		payload["avatar_url"] = d.config.AvatarURL
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := d.client.Post(d.config.WebhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return nil
}
