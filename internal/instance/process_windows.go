//go:build windows

package instance

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// processImageName is the process name CheckExistingInstance expects
// to see attached to a PID found in the PID file.
const processImageName = "rhema-coordinator.exe"

// IsProcessRunning checks if a process with the given PID is running
// and verifies it's actually rhema-coordinator.exe (not a PID reuse),
// adapted from the teacher's internal/instance/windows.go.
func IsProcessRunning(pid int) (bool, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return checkViaTasklist(pid)
	}
	defer windows.CloseHandle(handle)

	name, err := GetProcessName(pid)
	if err != nil {
		return true, nil
	}
	return strings.EqualFold(name, processImageName), nil
}

// GetProcessName retrieves the executable name for a given PID.
func GetProcessName(pid int) (string, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return getProcessNameViaTasklist(pid)
	}
	defer windows.CloseHandle(handle)

	var exeNameBuf [windows.MAX_PATH]uint16
	exeNameLen := uint32(len(exeNameBuf))
	if err := windows.QueryFullProcessImageName(handle, 0, &exeNameBuf[0], &exeNameLen); err != nil {
		return getProcessNameViaTasklist(pid)
	}

	exePath := syscall.UTF16ToString(exeNameBuf[:exeNameLen])
	return filepath.Base(exePath), nil
}

// KillProcess forcefully terminates a process.
func KillProcess(pid int) error {
	cmd := exec.Command("taskkill", "/F", "/PID", fmt.Sprintf("%d", pid))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("instance: kill process %d: %w (output: %s)", pid, err, string(output))
	}
	return nil
}

func checkViaTasklist(pid int) (bool, error) {
	cmd := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH", "/FO", "CSV")
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("instance: tasklist: %w", err)
	}
	outputStr := string(output)
	return strings.Contains(outputStr, fmt.Sprintf("%d", pid)) &&
		strings.Contains(strings.ToLower(outputStr), processImageName), nil
}

func getProcessNameViaTasklist(pid int) (string, error) {
	cmd := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH", "/FO", "CSV")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("instance: tasklist: %w", err)
	}
	outputStr := strings.TrimSpace(string(output))
	if outputStr == "" || strings.Contains(outputStr, "INFO: No tasks") {
		return "", fmt.Errorf("instance: process not found")
	}
	parts := strings.Split(outputStr, ",")
	if len(parts) < 2 {
		return "", fmt.Errorf("instance: unexpected tasklist output")
	}
	return strings.Trim(parts[0], "\""), nil
}
