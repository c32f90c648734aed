package external

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rhema-sh/coordinator/internal/notifications"
)

func TestEmailNotifier_Name(t *testing.T) {
	notifier := NewEmailNotifier(EmailConfig{})
	if notifier.Name() != "email" {
		t.Errorf("expected name 'email', got '%s'", notifier.Name())
	}
}

func TestEmailNotifier_ShouldNotify(t *testing.T) {
	tests := []struct {
		name       string
		config     EmailConfig
		escalation notifications.Escalation
		expected   bool
	}{
		{
			name:       "no filters - should notify",
			config:     EmailConfig{},
			escalation: notifications.Escalation{Priority: notifications.PriorityNormal},
			expected:   true,
		},
		{
			name:       "priority filter - escalation too low",
			config:     EmailConfig{MinPriority: notifications.PriorityHigh},
			escalation: notifications.Escalation{Priority: notifications.PriorityNormal},
			expected:   false,
		},
		{
			name:       "priority filter - escalation matches",
			config:     EmailConfig{MinPriority: notifications.PriorityHigh},
			escalation: notifications.Escalation{Priority: notifications.PriorityHigh},
			expected:   true,
		},
		{
			name:       "priority filter - escalation higher priority",
			config:     EmailConfig{MinPriority: notifications.PriorityHigh},
			escalation: notifications.Escalation{Priority: notifications.PriorityCritical},
			expected:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := NewEmailNotifier(tt.config)
			result := notifier.ShouldNotify(tt.escalation)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestEmailNotifier_buildSubject(t *testing.T) {
	tests := []struct {
		name       string
		escalation notifications.Escalation
		expected   string
	}{
		{
			name: "critical priority",
			escalation: notifications.Escalation{
				ConflictID:   "crit-123",
				ConflictType: "file_overlap",
				Priority:     notifications.PriorityCritical,
			},
			expected: "[CRITICAL] Conflict file_overlap needs review - crit-123",
		},
		{
			name: "high priority",
			escalation: notifications.Escalation{
				ConflictID:   "high-456",
				ConflictType: "resource_contention",
				Priority:     notifications.PriorityHigh,
			},
			expected: "[HIGH] Conflict resource_contention needs review - high-456",
		},
		{
			name: "normal priority",
			escalation: notifications.Escalation{
				ConflictID:   "norm-789",
				ConflictType: "lock_contention",
				Priority:     notifications.PriorityNormal,
			},
			expected: "Conflict lock_contention needs review - norm-789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := NewEmailNotifier(EmailConfig{})
			subject := notifier.buildSubject(tt.escalation)
			if subject != tt.expected {
				t.Errorf("expected subject '%s', got '%s'", tt.expected, subject)
			}
		})
	}
}

func TestEmailNotifier_buildBody(t *testing.T) {
	esc := notifications.Escalation{
		ConflictID:     "test-123",
		ConflictType:   "file_overlap",
		InvolvedAgents: []string{"agent-1", "agent-2"},
		Scope:          "/repo/pkg/foo.go",
		Reason:         "confidence below threshold",
		Priority:       notifications.PriorityCritical,
		Timestamp:      time.Date(2025, 12, 8, 12, 0, 0, 0, time.UTC),
	}

	notifier := NewEmailNotifier(EmailConfig{})
	body := notifier.buildBody(esc)

	requiredStrings := []string{
		"Conflict escalation notification",
		"Conflict ID: test-123",
		"Type: file_overlap",
		"Scope: /repo/pkg/foo.go",
		"Priority: Critical",
		"Involved agents: agent-1, agent-2",
		"confidence below threshold",
		"automated notification",
	}

	for _, required := range requiredStrings {
		if !strings.Contains(body, required) {
			t.Errorf("body missing required string: %s", required)
		}
	}
}

func TestEmailNotifier_buildMessage(t *testing.T) {
	notifier := NewEmailNotifier(EmailConfig{
		From: "sender@example.com",
		To:   []string{"recipient1@example.com", "recipient2@example.com"},
	})

	subject := "Test Subject"
	body := "Test Body"

	message := notifier.buildMessage(subject, body)

	requiredHeaders := []string{
		"From: sender@example.com",
		"To: recipient1@example.com, recipient2@example.com",
		"Subject: Test Subject",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
	}

	for _, header := range requiredHeaders {
		if !strings.Contains(message, header) {
			t.Errorf("message missing required header: %s", header)
		}
	}

	if !strings.Contains(message, "Test Body") {
		t.Error("message missing body content")
	}
}

func TestEmailNotifier_Send_MissingConfig(t *testing.T) {
	tests := []struct {
		name   string
		config EmailConfig
	}{
		{
			name: "missing SMTP host",
			config: EmailConfig{
				From: "test@example.com",
				To:   []string{"recipient@example.com"},
			},
		},
		{
			name: "missing from address",
			config: EmailConfig{
				SMTPHost: "smtp.example.com",
				SMTPPort: 25,
				To:       []string{"recipient@example.com"},
			},
		},
		{
			name: "missing recipients",
			config: EmailConfig{
				SMTPHost: "smtp.example.com",
				SMTPPort: 25,
				From:     "test@example.com",
				To:       []string{},
			},
		},
	}

	esc := notifications.Escalation{ConflictID: "test-1", Priority: notifications.PriorityNormal}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := NewEmailNotifier(tt.config)
			err := notifier.Send(esc)
			if err == nil {
				t.Error("expected error for missing config")
			}
		})
	}
}

func TestEmailNotifier_Send(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start mock SMTP server: %v", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port

	messageChan := make(chan string, 1)

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		writer := bufio.NewWriter(conn)

		writer.WriteString("220 localhost SMTP Mock\r\n")
		writer.Flush()

		var messageData strings.Builder
		inData := false

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				break
			}

			if inData {
				if strings.TrimSpace(line) == "." {
					messageChan <- messageData.String()
					writer.WriteString("250 OK\r\n")
					writer.Flush()
					inData = false
				} else {
					messageData.WriteString(line)
				}
				continue
			}

			if strings.HasPrefix(line, "HELO") || strings.HasPrefix(line, "EHLO") {
				writer.WriteString("250 Hello\r\n")
			} else if strings.HasPrefix(line, "MAIL FROM:") {
				writer.WriteString("250 OK\r\n")
			} else if strings.HasPrefix(line, "RCPT TO:") {
				writer.WriteString("250 OK\r\n")
			} else if strings.HasPrefix(line, "DATA") {
				writer.WriteString("354 Start mail input\r\n")
				inData = true
			} else if strings.HasPrefix(line, "QUIT") {
				writer.WriteString("221 Bye\r\n")
				writer.Flush()
				break
			}
			writer.Flush()
		}
	}()

	notifier := NewEmailNotifier(EmailConfig{
		SMTPHost: "127.0.0.1",
		SMTPPort: port,
		From:     "sender@example.com",
		To:       []string{"recipient@example.com"},
	})

	esc := notifications.Escalation{
		ConflictID:   "test-123",
		ConflictType: "file_overlap",
		Priority:     notifications.PriorityCritical,
		Reason:       "no consensus reached",
		Timestamp:    time.Now(),
	}

	err = notifier.Send(esc)
	if err != nil {
		t.Fatalf("failed to send email: %v", err)
	}

	select {
	case message := <-messageChan:
		if !strings.Contains(message, "From: sender@example.com") {
			t.Error("message missing From header")
		}
		if !strings.Contains(message, "To: recipient@example.com") {
			t.Error("message missing To header")
		}
		if !strings.Contains(message, "[CRITICAL]") {
			t.Error("message missing CRITICAL prefix in subject")
		}
		if !strings.Contains(message, "test-123") {
			t.Error("message missing conflict ID")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for email")
	}
}

func TestEmailNotifier_Send_WithAuth(t *testing.T) {
	config := EmailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		Username: "testuser",
		Password: "testpass",
		From:     "sender@example.com",
		To:       []string{"recipient@example.com"},
	}

	notifier := NewEmailNotifier(config)
	if notifier.config.Username != "testuser" {
		t.Error("username not stored correctly")
	}
	if notifier.config.Password != "testpass" {
		t.Error("password not stored correctly")
	}
}

func TestEmailNotifier_Send_Integration(t *testing.T) {
	tests := []struct {
		name           string
		escalation     notifications.Escalation
		expectedPrefix string
	}{
		{
			name:           "critical conflict",
			escalation:     notifications.Escalation{ConflictID: "crit-1", Priority: notifications.PriorityCritical},
			expectedPrefix: "[CRITICAL]",
		},
		{
			name:           "high priority conflict",
			escalation:     notifications.Escalation{ConflictID: "high-2", Priority: notifications.PriorityHigh},
			expectedPrefix: "[HIGH]",
		},
		{
			name:           "normal conflict",
			escalation:     notifications.Escalation{ConflictID: "norm-3", Priority: notifications.PriorityNormal},
			expectedPrefix: "Conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := NewEmailNotifier(EmailConfig{
				From: "test@example.com",
				To:   []string{"recipient@example.com"},
			})

			tt.escalation.Timestamp = time.Now()
			subject := notifier.buildSubject(tt.escalation)

			if !strings.HasPrefix(subject, tt.expectedPrefix) {
				t.Errorf("expected subject to start with '%s', got '%s'", tt.expectedPrefix, subject)
			}
		})
	}
}

func TestPriorityString(t *testing.T) {
	tests := []struct {
		priority notifications.Priority
		expected string
	}{
		{notifications.PriorityCritical, "Critical"},
		{notifications.PriorityHigh, "High"},
		{notifications.PriorityNormal, "Normal"},
		{notifications.PriorityLow, "Low"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.priority.String()
			if result != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}
