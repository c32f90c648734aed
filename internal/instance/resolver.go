package instance

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// ConflictResolver handles what to do when a coordinator is asked to
// start while another instance already owns the port, adapted from the
// teacher's internal/instance/resolver.go (four choices: connect,
// force-stop, different port, exit; same interactive/non-interactive
// split), generalized off the teacher's
// Windows-only "open in browser via cmd /C start" call.
type ConflictResolver struct {
	mgr         *Manager
	interactive bool
}

// NewConflictResolver builds a resolver for mgr.
func NewConflictResolver(mgr *Manager, interactive bool) *ConflictResolver {
	return &ConflictResolver{mgr: mgr, interactive: interactive}
}

// Resolve carries out the conflict-resolution choice; it may terminate
// the process outright (connect/exit choices).
func (r *ConflictResolver) Resolve(info *Info) error {
	if !r.interactive {
		return r.handleNonInteractive(info)
	}
	return r.handleInteractive(info)
}

func (r *ConflictResolver) handleInteractive(info *Info) error {
	r.displayConflictInfo(info)
	reader := bufio.NewReader(os.Stdin)

	for {
		choice, err := r.promptUser(reader)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
			continue
		}
		switch choice {
		case 1:
			return r.connectToExisting(info)
		case 2:
			return r.stopExisting(info)
		case 3:
			return r.useDifferentPort()
		case 4:
			fmt.Println("canceling startup")
			os.Exit(0)
		default:
			fmt.Println("invalid choice, enter 1-4")
		}
	}
}

func (r *ConflictResolver) handleNonInteractive(info *Info) error {
	strategy := os.Getenv("RHEMA_ON_CONFLICT")
	if strategy == "" {
		strategy = "exit"
	}

	switch strategy {
	case "exit":
		fmt.Fprintf(os.Stderr, "another instance is running on port %d (pid %d)\n", info.Port, info.PID)
		fmt.Fprintln(os.Stderr, "set RHEMA_ON_CONFLICT to 'kill', 'port', or 'connect' to change behavior")
		os.Exit(1)
		return nil
	case "kill":
		return r.stopExisting(info)
	case "port":
		return r.useDifferentPort()
	case "connect":
		return r.connectToExisting(info)
	default:
		return fmt.Errorf("instance: unknown conflict strategy %q", strategy)
	}
}

func (r *ConflictResolver) displayConflictInfo(info *Info) {
	fmt.Println()
	fmt.Printf("Another rhema-coordinator instance is already running on port %d:\n\n", info.Port)
	fmt.Printf("  PID:       %d\n", info.PID)
	fmt.Printf("  Started:   %s (%s ago)\n", info.StartTime.Format("2006-01-02 15:04:05"), time.Since(info.StartTime).Round(time.Second))
	status := "not responding"
	if info.IsResponding {
		status = "running and responding"
	}
	fmt.Printf("  Status:    %s\n", status)
	fmt.Printf("  Admin URL: http://localhost:%d\n\n", info.Port)
	fmt.Println("  1. Connect to the existing instance")
	fmt.Println("  2. Force-stop the existing instance and start a new one")
	fmt.Println("  3. Start on a different port")
	fmt.Println("  4. Exit")
	fmt.Println()
}

func (r *ConflictResolver) promptUser(reader *bufio.Reader) (int, error) {
	fmt.Print("enter choice (1-4): ")
	input, err := reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	choice, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, fmt.Errorf("invalid input")
	}
	return choice, nil
}

func (r *ConflictResolver) connectToExisting(info *Info) error {
	url := fmt.Sprintf("http://localhost:%d", info.Port)
	fmt.Printf("\nconnecting to existing instance at %s\n", url)
	if err := openBrowser(url); err != nil {
		fmt.Printf("please open %s manually\n", url)
	}
	os.Exit(0)
	return nil
}

// stopExisting force-terminates the conflicting process; there is no
// remote graceful-shutdown RPC in the admin surface to try first.
func (r *ConflictResolver) stopExisting(info *Info) error {
	fmt.Printf("terminating process %d...\n", info.PID)
	if err := KillProcess(info.PID); err != nil {
		return fmt.Errorf("instance: stop existing instance: %w", err)
	}
	time.Sleep(time.Second)
	r.mgr.RemovePIDFile()
	fmt.Println("previous instance terminated")
	return nil
}

func (r *ConflictResolver) useDifferentPort() error {
	newPort := FindAvailablePort(r.mgr.GetPort() + 1)
	if newPort == 0 {
		return fmt.Errorf("instance: no available port found")
	}
	fmt.Printf("\nstarting on port %d instead\n", newPort)
	r.mgr.SetPort(newPort)
	return nil
}

// IsInteractive reports whether stdin looks like a terminal.
func IsInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
