package session

import (
	"errors"
	"testing"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

type recordingSender struct {
	sent []coretypes.Message
}

func (s *recordingSender) Send(msg coretypes.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

func TestCreateRejectsOverCap(t *testing.T) {
	cfg := Config{MaxSessions: 1}
	r := NewRegistry(cfg, &recordingSender{})

	if _, err := r.Create("topic-a", []string{"a1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Create("topic-b", []string{"a2"}); !errors.Is(err, coretypes.ErrMaxSessionsExceeded) {
		t.Errorf("expected ErrMaxSessionsExceeded, got %v", err)
	}
}

func TestLeaveLastParticipantCompletesSession(t *testing.T) {
	r := NewRegistry(DefaultConfig(), &recordingSender{})
	sess, _ := r.Create("topic", []string{"a1"})

	if err := r.Leave(sess.ID, "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := r.Info(sess.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Status != coretypes.SessionCompleted {
		t.Errorf("expected session completed, got %s", info.Status)
	}
	if info.CompletionReason != "last-participant-left" {
		t.Errorf("expected last-participant-left reason, got %q", info.CompletionReason)
	}
}

func TestLeaveWithRemainingParticipantsStaysActive(t *testing.T) {
	r := NewRegistry(DefaultConfig(), &recordingSender{})
	sess, _ := r.Create("topic", []string{"a1", "a2"})

	if err := r.Leave(sess.ID, "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := r.Info(sess.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Status != coretypes.SessionActive {
		t.Errorf("expected session still active, got %s", info.Status)
	}
}

func TestSendExcludesSenderAndLateJoiners(t *testing.T) {
	sender := &recordingSender{}
	r := NewRegistry(DefaultConfig(), sender)
	sess, _ := r.Create("topic", []string{"a1", "a2"})

	if err := r.Send(sess.ID, coretypes.Message{SenderID: "a1", Content: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message sent, got %d", len(sender.sent))
	}
	recipients := sender.sent[0].RecipientIDs
	if len(recipients) != 1 || recipients[0] != "a2" {
		t.Errorf("expected recipients [a2], got %v", recipients)
	}

	r.Join(sess.ID, "a3")
	info, _ := r.Info(sess.ID)
	if info.MessageCount != 1 {
		t.Errorf("late joiner should not retroactively see prior messages; message count unaffected, got %d", info.MessageCount)
	}
}

func TestJoinRejectsCompletedSession(t *testing.T) {
	r := NewRegistry(DefaultConfig(), &recordingSender{})
	sess, _ := r.Create("topic", []string{"a1"})
	r.Complete(sess.ID, "done")

	if err := r.Join(sess.ID, "a2"); !errors.Is(err, coretypes.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestListActiveOnlyFiltersCompleted(t *testing.T) {
	r := NewRegistry(DefaultConfig(), &recordingSender{})
	active, _ := r.Create("active-topic", []string{"a1"})
	done, _ := r.Create("done-topic", []string{"a2"})
	r.Complete(done.ID, "manual")

	all := r.List(false, true)
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions total, got %d", len(all))
	}

	activeOnly := r.List(true, true)
	if len(activeOnly) != 1 || activeOnly[0].ID != active.ID {
		t.Errorf("expected only active session listed, got %v", activeOnly)
	}
}

func TestListSummaryOmitsParticipants(t *testing.T) {
	r := NewRegistry(DefaultConfig(), &recordingSender{})
	r.Create("topic", []string{"a1", "a2"})

	summary := r.List(false, false)
	if len(summary) != 1 {
		t.Fatalf("expected 1 session, got %d", len(summary))
	}
	if summary[0].Participants != nil {
		t.Errorf("expected summary view to omit participants, got %v", summary[0].Participants)
	}
}
