package nats

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// TestNATSIntegration_HeartbeatFlow tests the complete heartbeat flow via NATS
func TestNATSIntegration_HeartbeatFlow(t *testing.T) {
	config := EmbeddedServerConfig{
		Port: 14300,
	}
	server, err := NewEmbeddedServer(config, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()

	// Coordinator process observing all agent heartbeats
	monitor, err := NewClient(server.URL(), nil)
	if err != nil {
		t.Fatalf("Failed to create monitor client: %v", err)
	}
	defer monitor.Close()

	// Agent process publishing its own heartbeats
	agent, err := NewClient(server.URL(), nil)
	if err != nil {
		t.Fatalf("Failed to create agent client: %v", err)
	}
	defer agent.Close()

	var receivedHeartbeats []HeartbeatMessage
	var mu sync.Mutex

	_, err = monitor.Subscribe(SubjectAllHeartbeats, func(msg *Message) {
		var hb HeartbeatMessage
		if err := json.Unmarshal(msg.Data, &hb); err != nil {
			t.Errorf("Failed to unmarshal heartbeat: %v", err)
			return
		}
		mu.Lock()
		receivedHeartbeats = append(receivedHeartbeats, hb)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	for i := 0; i < 3; i++ {
		hb := HeartbeatMessage{
			AgentID:     "test-agent-001",
			SessionID:   "session-go-developer",
			ProjectPath: "/test/project",
			Status:      "working",
			CurrentTask: "Running tests",
			Timestamp:   time.Now(),
		}

		subject := "agent.test-agent-001.heartbeat"
		if err := agent.PublishJSON(subject, hb); err != nil {
			t.Errorf("Failed to publish heartbeat: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	count := len(receivedHeartbeats)
	mu.Unlock()

	if count != 3 {
		t.Errorf("Expected 3 heartbeats, got %d", count)
	}
}

// TestNATSIntegration_ConflictBroadcast tests a conflict-detected event
// reaching a remote coordinator process over the bus.
func TestNATSIntegration_ConflictBroadcast(t *testing.T) {
	config := EmbeddedServerConfig{
		Port: 14301,
	}
	server, err := NewEmbeddedServer(config, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()

	detector, err := NewClient(server.URL(), nil)
	if err != nil {
		t.Fatalf("Failed to create detector client: %v", err)
	}
	defer detector.Close()

	observer, err := NewClient(server.URL(), nil)
	if err != nil {
		t.Fatalf("Failed to create observer client: %v", err)
	}
	defer observer.Close()

	received := make(chan ConflictDetectedMessage, 1)
	_, err = observer.Subscribe(SubjectConflictDetected, func(msg *Message) {
		var cd ConflictDetectedMessage
		if err := json.Unmarshal(msg.Data, &cd); err != nil {
			return
		}
		received <- cd
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	cd := ConflictDetectedMessage{
		ConflictID:     "conflict-1",
		ConflictType:   "file_overlap",
		Severity:       "high",
		InvolvedAgents: []string{"agent-a", "agent-b"},
		Resource:       "/repo/pkg/foo.go",
		Timestamp:      time.Now(),
	}

	if err := detector.PublishJSON(SubjectConflictDetected, cd); err != nil {
		t.Fatalf("Failed to publish conflict: %v", err)
	}

	select {
	case got := <-received:
		if got.ConflictID != cd.ConflictID {
			t.Errorf("expected conflict ID %s, got %s", cd.ConflictID, got.ConflictID)
		}
		if len(got.InvolvedAgents) != 2 {
			t.Errorf("expected 2 involved agents, got %d", len(got.InvolvedAgents))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for conflict broadcast")
	}
}

// TestNATSIntegration_MultipleAgents tests multiple agents sending messages concurrently
func TestNATSIntegration_MultipleAgents(t *testing.T) {
	config := EmbeddedServerConfig{
		Port: 14302,
	}
	server, err := NewEmbeddedServer(config, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()

	monitor, err := NewClient(server.URL(), nil)
	if err != nil {
		t.Fatalf("Failed to create monitor client: %v", err)
	}
	defer monitor.Close()

	agentMessages := make(map[string]int)
	var mu sync.Mutex

	_, err = monitor.Subscribe(SubjectAllHeartbeats, func(msg *Message) {
		var hb HeartbeatMessage
		if err := json.Unmarshal(msg.Data, &hb); err != nil {
			return
		}
		mu.Lock()
		agentMessages[hb.AgentID]++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	var wg sync.WaitGroup
	agentCount := 5
	messagesPerAgent := 10

	for i := 0; i < agentCount; i++ {
		wg.Add(1)
		go func(agentNum int) {
			defer wg.Done()

			client, err := NewClient(server.URL(), nil)
			if err != nil {
				t.Errorf("Failed to create agent %d client: %v", agentNum, err)
				return
			}
			defer client.Close()

			agentID := "agent-" + string(rune('A'+agentNum))
			subject := "agent." + agentID + ".heartbeat"

			for j := 0; j < messagesPerAgent; j++ {
				hb := HeartbeatMessage{
					AgentID:   agentID,
					Status:    "working",
					Timestamp: time.Now(),
				}
				client.PublishJSON(subject, hb)
				time.Sleep(10 * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	totalMessages := 0
	for _, count := range agentMessages {
		totalMessages += count
	}
	agentsSeen := len(agentMessages)
	mu.Unlock()

	expectedTotal := agentCount * messagesPerAgent
	if totalMessages != expectedTotal {
		t.Errorf("Expected %d total messages, got %d", expectedTotal, totalMessages)
	}
	if agentsSeen != agentCount {
		t.Errorf("Expected %d agents, saw %d", agentCount, agentsSeen)
	}
}
