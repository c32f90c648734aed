package agentstate

import (
	"context"
	"log"
	"time"
)

// Run drives the health sweep, cleanup sweep, and persistence timers from
// a single cooperative loop, the way the teacher's server components
// interleave background work over one select loop. Persistence failures
// are logged and retried next tick rather than propagated; the loop
// itself only returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	health := time.NewTicker(m.cfg.HealthCheckInterval)
	defer health.Stop()
	cleanup := time.NewTicker(m.cfg.CleanupInterval)
	defer cleanup.Stop()
	persist := time.NewTicker(m.cfg.PersistInterval)
	defer persist.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-health.C:
			m.checkHealth()
			m.checkProgress()
		case <-cleanup.C:
			m.cleanupStale()
			m.cleanupHistory()
		case <-persist.C:
			if err := m.Snapshot(); err != nil {
				log.Printf("agentstate: snapshot failed, will retry next tick: %v", err)
			}
		}
	}
}
