package external

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rhema-sh/coordinator/internal/notifications"
)

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	SMTPHost    string                 `json:"smtp_host"`
	SMTPPort    int                    `json:"smtp_port"`
	Username    string                 `json:"username"`
	Password    string                 `json:"password"`
	From        string                 `json:"from"`
	To          []string               `json:"to"`
	MinPriority notifications.Priority `json:"min_priority,omitempty"`
}

// EmailNotifier sends escalation notifications via email.
type EmailNotifier struct {
	config EmailConfig
}

// NewEmailNotifier creates a new email notifier.
func NewEmailNotifier(config EmailConfig) *EmailNotifier {
	return &EmailNotifier{config: config}
}

// Name returns the notifier name.
func (e *EmailNotifier) Name() string {
	return "email"
}

// ShouldNotify checks if the escalation clears this channel's minimum priority.
func (e *EmailNotifier) ShouldNotify(esc notifications.Escalation) bool {
	return esc.Priority >= e.config.MinPriority
}

// Send sends an escalation notification via email.
func (e *EmailNotifier) Send(esc notifications.Escalation) error {
	if e.config.SMTPHost == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if e.config.From == "" {
		return fmt.Errorf("from address not configured")
	}
	if len(e.config.To) == 0 {
		return fmt.Errorf("no recipient addresses configured")
	}

	subject := e.buildSubject(esc)
	body := e.buildBody(esc)
	message := e.buildMessage(subject, body)

	addr := fmt.Sprintf("%s:%d", e.config.SMTPHost, e.config.SMTPPort)
	var auth smtp.Auth
	if e.config.Username != "" && e.config.Password != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, e.config.From, e.config.To, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildSubject creates the email subject line with a priority prefix.
func (e *EmailNotifier) buildSubject(esc notifications.Escalation) string {
	prefix := ""
	switch esc.Priority {
	case notifications.PriorityCritical:
		prefix = "[CRITICAL] "
	case notifications.PriorityHigh:
		prefix = "[HIGH] "
	}
	return fmt.Sprintf("%sConflict %s needs review - %s", prefix, esc.ConflictType, esc.ConflictID)
}

// buildBody creates the email body content.
func (e *EmailNotifier) buildBody(esc notifications.Escalation) string {
	var body strings.Builder

	body.WriteString("Conflict escalation notification\n")
	body.WriteString("=================================\n\n")

	body.WriteString(fmt.Sprintf("Conflict ID: %s\n", esc.ConflictID))
	body.WriteString(fmt.Sprintf("Type: %s\n", esc.ConflictType))
	if esc.Scope != "" {
		body.WriteString(fmt.Sprintf("Scope: %s\n", esc.Scope))
	}
	body.WriteString(fmt.Sprintf("Priority: %s\n", esc.Priority.String()))
	body.WriteString(fmt.Sprintf("Timestamp: %s\n", esc.Timestamp.Format(time.RFC3339)))

	if len(esc.InvolvedAgents) > 0 {
		body.WriteString(fmt.Sprintf("\nInvolved agents: %s\n", strings.Join(esc.InvolvedAgents, ", ")))
	}
	if esc.Reason != "" {
		body.WriteString(fmt.Sprintf("\nReason:\n%s\n", esc.Reason))
	}

	body.WriteString("\n--\n")
	body.WriteString("This is an automated notification from rhema-coordinator\n")

	return body.String()
}

// buildMessage creates the full email message with headers.
func (e *EmailNotifier) buildMessage(subject, body string) string {
	var message strings.Builder

	message.WriteString(fmt.Sprintf("From: %s\r\n", e.config.From))
	message.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(e.config.To, ", ")))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(body)

	return message.String()
}
