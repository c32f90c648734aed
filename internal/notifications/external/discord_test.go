package external

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhema-sh/coordinator/internal/notifications"
)

func TestDiscordNotifier_Name(t *testing.T) {
	notifier := NewDiscordNotifier(DiscordConfig{})
	if notifier.Name() != "discord" {
		t.Errorf("expected name 'discord', got '%s'", notifier.Name())
	}
}

func TestDiscordNotifier_ShouldNotify(t *testing.T) {
	tests := []struct {
		name       string
		config     DiscordConfig
		escalation notifications.Escalation
		expected   bool
	}{
		{
			name:       "no filters - should notify",
			config:     DiscordConfig{},
			escalation: notifications.Escalation{Priority: notifications.PriorityNormal},
			expected:   true,
		},
		{
			name:       "priority filter - escalation too low",
			config:     DiscordConfig{MinPriority: notifications.PriorityHigh},
			escalation: notifications.Escalation{Priority: notifications.PriorityNormal},
			expected:   false,
		},
		{
			name:       "priority filter - escalation matches",
			config:     DiscordConfig{MinPriority: notifications.PriorityHigh},
			escalation: notifications.Escalation{Priority: notifications.PriorityHigh},
			expected:   true,
		},
		{
			name:       "priority filter - escalation higher priority",
			config:     DiscordConfig{MinPriority: notifications.PriorityHigh},
			escalation: notifications.Escalation{Priority: notifications.PriorityCritical},
			expected:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := NewDiscordNotifier(tt.config)
			result := notifier.ShouldNotify(tt.escalation)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestDiscordNotifier_Send(t *testing.T) {
	tests := []struct {
		name            string
		config          DiscordConfig
		escalation      notifications.Escalation
		expectError     bool
		validatePayload func(t *testing.T, payload map[string]interface{})
	}{
		{
			name: "basic notification",
			config: DiscordConfig{
				Username:  "rhema-coordinator",
				AvatarURL: "https://example.com/avatar.png",
			},
			escalation: notifications.Escalation{
				ConflictID:   "test-123",
				ConflictType: "file_overlap",
				Priority:     notifications.PriorityNormal,
			},
			expectError: false,
			validatePayload: func(t *testing.T, payload map[string]interface{}) {
				if payload["username"] != "rhema-coordinator" {
					t.Errorf("expected username 'rhema-coordinator', got '%v'", payload["username"])
				}
				if payload["avatar_url"] != "https://example.com/avatar.png" {
					t.Errorf("expected avatar_url, got '%v'", payload["avatar_url"])
				}
				embeds, ok := payload["embeds"].([]interface{})
				if !ok || len(embeds) == 0 {
					t.Fatal("expected embeds array")
				}
				embed := embeds[0].(map[string]interface{})
				if embed["color"].(float64) != 0x00FF00 {
					t.Errorf("expected color 0x00FF00 (green), got %v", embed["color"])
				}
			},
		},
		{
			name:   "critical priority",
			config: DiscordConfig{},
			escalation: notifications.Escalation{
				ConflictID: "crit-456",
				Priority:   notifications.PriorityCritical,
			},
			expectError: false,
			validatePayload: func(t *testing.T, payload map[string]interface{}) {
				embeds := payload["embeds"].([]interface{})
				embed := embeds[0].(map[string]interface{})
				if embed["color"].(float64) != 0xFF0000 {
					t.Errorf("expected color 0xFF0000 (red) for critical, got %v", embed["color"])
				}
			},
		},
		{
			name:   "high priority",
			config: DiscordConfig{},
			escalation: notifications.Escalation{
				ConflictID: "high-789",
				Priority:   notifications.PriorityHigh,
			},
			expectError: false,
			validatePayload: func(t *testing.T, payload map[string]interface{}) {
				embeds := payload["embeds"].([]interface{})
				embed := embeds[0].(map[string]interface{})
				if embed["color"].(float64) != 0xFFA500 {
					t.Errorf("expected color 0xFFA500 (orange) for high, got %v", embed["color"])
				}
			},
		},
		{
			name:   "with involved agents field",
			config: DiscordConfig{},
			escalation: notifications.Escalation{
				ConflictID:     "target-123",
				InvolvedAgents: []string{"agent-3"},
			},
			expectError: false,
			validatePayload: func(t *testing.T, payload map[string]interface{}) {
				embeds := payload["embeds"].([]interface{})
				embed := embeds[0].(map[string]interface{})
				fields := embed["fields"].([]interface{})

				foundAgents := false
				for _, f := range fields {
					field := f.(map[string]interface{})
					if field["name"] == "Agents" {
						foundAgents = true
						if field["value"] != "agent-3" {
							t.Errorf("expected agents 'agent-3', got '%v'", field["value"])
						}
						break
					}
				}
				if !foundAgents {
					t.Error("expected agents field in embed")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var receivedPayload map[string]interface{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("failed to read request body: %v", err)
				}
				if err := json.Unmarshal(body, &receivedPayload); err != nil {
					t.Fatalf("failed to unmarshal payload: %v", err)
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			tt.config.WebhookURL = server.URL

			notifier := NewDiscordNotifier(tt.config)
			err := notifier.Send(tt.escalation)

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.expectError && tt.validatePayload != nil {
				tt.validatePayload(t, receivedPayload)
			}
		})
	}
}

func TestDiscordNotifier_Send_NoWebhook(t *testing.T) {
	notifier := NewDiscordNotifier(DiscordConfig{})
	esc := notifications.Escalation{ConflictID: "test-1", Priority: notifications.PriorityNormal}

	err := notifier.Send(esc)
	if err == nil {
		t.Error("expected error for missing webhook URL")
	}
}

func TestDiscordNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewDiscordNotifier(DiscordConfig{
		WebhookURL: server.URL,
	})
	esc := notifications.Escalation{ConflictID: "test-2", Priority: notifications.PriorityNormal}

	err := notifier.Send(esc)
	if err == nil {
		t.Error("expected error for server error response")
	}
}
