package agentstate

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.StateDir = t.TempDir()
	cfg.MaxConcurrentAgents = 2
	cfg.MaxBlockTime = 50 * time.Millisecond
	cfg.MaxHeartbeatInterval = 50 * time.Millisecond
	return cfg
}

func TestJoinRejectsDuplicate(t *testing.T) {
	m := NewManager(testConfig(t))
	if err := m.Join("a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Join("a1"); !errors.Is(err, coretypes.ErrAgentAlreadyExists) {
		t.Errorf("expected ErrAgentAlreadyExists, got %v", err)
	}
}

func TestJoinRejectsOverCap(t *testing.T) {
	m := NewManager(testConfig(t))
	if err := m.Join("a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Join("a2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Join("a3"); !errors.Is(err, coretypes.ErrMaxConcurrentAgentsExceeded) {
		t.Errorf("expected ErrMaxConcurrentAgentsExceeded, got %v", err)
	}
}

func TestLeaveRejectsWhileWorking(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	if err := m.SetState("a1", coretypes.AgentWorking, "start", "task-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Leave("a1"); !errors.Is(err, coretypes.ErrAgentHasActiveLocks) {
		t.Errorf("expected ErrAgentHasActiveLocks, got %v", err)
	}
}

func TestLeaveSucceedsWhenIdle(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	if err := m.Leave("a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.GetState("a1"); !errors.Is(err, coretypes.ErrAgentNotFound) {
		t.Errorf("expected agent to be gone, got %v", err)
	}
}

func TestSetStateValidTransitions(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")

	if err := m.SetState("a1", coretypes.AgentWorking, "test", "task-1"); err != nil {
		t.Fatalf("transition to working failed: %v", err)
	}
	steps := []coretypes.AgentStatus{
		coretypes.AgentBlocked,
		coretypes.AgentWorking,
		coretypes.AgentIdle,
		coretypes.AgentCompleted,
	}
	for _, s := range steps {
		if err := m.SetState("a1", s, "test"); err != nil {
			t.Fatalf("transition to %s failed: %v", s, err)
		}
	}
}

func TestSetStateRejectsOutOfCompleted(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	if err := m.SetState("a1", coretypes.AgentCompleted, "finish"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SetState("a1", coretypes.AgentIdle, "resurrect"); !errors.Is(err, coretypes.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetStateRejectsIdleToIdle(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	if err := m.SetState("a1", coretypes.AgentIdle, "noop"); !errors.Is(err, coretypes.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestHeartbeatMarksHealthy(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	if err := m.Heartbeat("a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md, err := m.GetMetadata("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Health != coretypes.HealthHealthy {
		t.Errorf("expected healthy, got %s", md.Health)
	}
}

func TestCheckHealthMarksUnhealthyAfterInterval(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")

	time.Sleep(2 * m.cfg.MaxHeartbeatInterval)
	m.checkHealth()

	md, err := m.GetMetadata("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Health != coretypes.HealthUnhealthy {
		t.Errorf("expected unhealthy, got %s", md.Health)
	}
}

func TestCheckProgressUnblocksAfterMaxBlockTime(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	m.SetState("a1", coretypes.AgentWorking, "start", "task-1")
	m.SetState("a1", coretypes.AgentBlocked, "waiting")

	time.Sleep(2 * m.cfg.MaxBlockTime)
	m.checkProgress()

	state, err := m.GetState("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != coretypes.AgentIdle {
		t.Errorf("expected agent unblocked to idle, got %s", state)
	}
}

func TestCleanupStaleRemovesDeadAgents(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")

	time.Sleep(4 * m.cfg.MaxHeartbeatInterval)
	m.cleanupStale()

	if _, err := m.GetState("a1"); !errors.Is(err, coretypes.ErrAgentNotFound) {
		t.Errorf("expected agent removed, got %v", err)
	}
}

func TestGetHistoryReturnsNewestFirst(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	m.SetState("a1", coretypes.AgentWorking, "start", "task-1")
	m.SetState("a1", coretypes.AgentIdle, "pause")

	hist := m.GetHistory("a1", 10)
	if len(hist) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(hist))
	}
	if hist[0].ToState != coretypes.AgentIdle {
		t.Errorf("expected newest entry first, got %s", hist[0].ToState)
	}
}

func TestStatisticsTallyByState(t *testing.T) {
	m := NewManager(testConfig(t))
	cfg := m.cfg
	cfg.MaxConcurrentAgents = 10
	m.cfg = cfg
	m.Join("a1")
	m.Join("a2")
	m.SetState("a2", coretypes.AgentWorking, "start", "task-1")

	stats := m.Statistics()
	if stats.Total != 2 || stats.Idle != 1 || stats.Working != 1 {
		t.Errorf("unexpected statistics: %+v", stats)
	}
}

func TestValidateRejectsBlockedWithoutTimestamp(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	m.agents["a1"] = coretypes.AgentBlocked

	if err := m.Validate(); !errors.Is(err, coretypes.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestSetStateRejectsWorkingWithoutTask(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	if err := m.SetState("a1", coretypes.AgentWorking, "start"); !errors.Is(err, coretypes.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestSetStateCarriesTaskForwardThroughBlock(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	if err := m.SetState("a1", coretypes.AgentWorking, "start", "task-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SetState("a1", coretypes.AgentBlocked, "waiting"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SetState("a1", coretypes.AgentWorking, "resume"); err != nil {
		t.Fatalf("unexpected error resuming without a new task: %v", err)
	}
	md, err := m.GetMetadata("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.CurrentTask != "task-1" {
		t.Errorf("expected current task carried forward, got %q", md.CurrentTask)
	}
}

func TestValidateRejectsWorkingWithoutTask(t *testing.T) {
	m := NewManager(testConfig(t))
	m.Join("a1")
	m.agents["a1"] = coretypes.AgentWorking

	if err := m.Validate(); !errors.Is(err, coretypes.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	m := NewManager(cfg)
	m.Join("a1")
	m.SetState("a1", coretypes.AgentWorking, "start", "task-1")

	if err := m.Snapshot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded := NewManager(cfg)
	if err := loaded.LoadLatestSnapshot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := loaded.GetState("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != coretypes.AgentWorking {
		t.Errorf("expected restored state working, got %s", state)
	}
}

func TestLoadLatestSnapshotSkipsCorruptFile(t *testing.T) {
	cfg := testConfig(t)
	m := NewManager(cfg)
	m.Join("a1")
	if err := m.Snapshot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(cfg.StateDir+"/agent_states_99999999_999999.999999999.json", []byte("not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	loaded := NewManager(cfg)
	if err := loaded.LoadLatestSnapshot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := loaded.GetState("a1"); err != nil {
		t.Errorf("expected fallback to older valid snapshot, got %v", err)
	}
}

func TestPruneOldSnapshotsRetainsOnlyConfiguredCount(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxStateFiles = 2
	m := NewManager(cfg)
	m.Join("a1")

	for i := 0; i < 5; i++ {
		if err := m.Snapshot(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	files, err := m.snapshotFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 retained snapshot files, got %d", len(files))
	}
}
