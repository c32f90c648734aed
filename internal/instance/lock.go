package instance

import (
	"fmt"
	"os"
)

// AcquireLock claims an exclusive startup lock so two coordinator
// processes racing to start at once don't both decide the port is
// free. Implemented with O_EXCL file creation rather than the
// teacher's Windows CreateFile exclusive-share call, so it works on
// every OS the coordinator targets; the lock file's existence is the
// lock, same as the teacher's intent.
func (m *Manager) AcquireLock() error {
	lockPath := m.pidFilePath + ".lock"

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("instance: acquire lock (another instance may be starting): %w", err)
	}
	fmt.Fprintf(f, "%d", os.Getpid())

	m.lockFile = f
	m.acquiredLock = true
	return nil
}

// ReleaseLock releases the startup lock acquired by AcquireLock.
func (m *Manager) ReleaseLock() error {
	if !m.acquiredLock {
		return nil
	}
	if m.lockFile != nil {
		m.lockFile.Close()
		m.lockFile = nil
	}
	lockPath := m.pidFilePath + ".lock"
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("instance: remove lock file: %w", err)
	}
	m.acquiredLock = false
	return nil
}
