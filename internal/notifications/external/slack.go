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

// SlackConfig holds configuration for Slack notifications.
type SlackConfig struct {
	WebhookURL  string                 `json:"webhook_url"`
	Channel     string                 `json:"channel,omitempty"`
	Username    string                 `json:"username,omitempty"`
	IconEmoji   string                 `json:"icon_emoji,omitempty"`
	MinPriority notifications.Priority `json:"min_priority,omitempty"`
}

// SlackNotifier sends escalation notifications to Slack via webhooks.
type SlackNotifier struct {
	config SlackConfig
	client *http.Client
}

// NewSlackNotifier creates a new Slack notifier.
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the notifier name.
func (s *SlackNotifier) Name() string {
	return "slack"
}

// ShouldNotify checks if the escalation clears this channel's minimum priority.
func (s *SlackNotifier) ShouldNotify(e notifications.Escalation) bool {
	return e.Priority >= s.config.MinPriority
}

// Send sends an escalation notification to Slack.
func (s *SlackNotifier) Send(e notifications.Escalation) error {
	if s.config.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	color := "good"
	switch e.Priority {
	case notifications.PriorityCritical:
		color = "danger"
	case notifications.PriorityHigh:
		color = "warning"
	}

	fields := []map[string]interface{}{
		{"title": "Conflict", "value": e.ConflictID, "short": true},
		{"title": "Type", "value": e.ConflictType, "short": true},
		{"title": "Priority", "value": e.Priority.String(), "short": true},
	}
	if e.Scope != "" {
		fields = append(fields, map[string]interface{}{"title": "Scope", "value": e.Scope, "short": true})
	}
	if len(e.InvolvedAgents) > 0 {
		fields = append(fields, map[string]interface{}{
			"title": "Agents", "value": strings.Join(e.InvolvedAgents, ", "), "short": false,
		})
	}

	payload := map[string]interface{}{
		"text": fmt.Sprintf("Conflict %s needs human review", e.ConflictID),
		"attachments": []map[string]interface{}{
			{
				"color":  color,
				"title":  e.Summary(),
				"fields": fields,
				"ts":     e.Timestamp.Unix(),
			},
		},
	}

	if s.config.Channel != "" {
		payload["channel"] = s.config.Channel
	}
	if s.config.Username != "" {
		payload["username"] = s.config.Username
	}
	if s.config.IconEmoji != "" {
		payload["icon_emoji"] = s.config.IconEmoji
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := s.client.Post(s.config.WebhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}
	return nil
}
