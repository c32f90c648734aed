package notifications

import (
	"fmt"
	"log"
	"sync"
)

// EscalationNotifier provides a unified interface for all notification
// channels the Resolution Coordinator can use when a conflict reaches
// RequestHumanIntervention (spec §4.5).
type EscalationNotifier interface {
	NotifyEscalation(e Escalation) error
	ShowToast(title, message string) error
	FlashTerminal(message string) error
	ShowDashboardBanner(message string) error
	ClearAlert() error
	IsEnabled() bool
}

// Manager implements EscalationNotifier with multiple notification channels
// (OS toast, terminal title, dashboard banner) plus an optional Router for
// external channels (Slack/Discord/email).
type Manager struct {
	toast    *ToastNotifier
	terminal *TerminalNotifier
	banner   *BannerNotifier
	router   *Router
	enabled  bool
	mu       sync.RWMutex
	logger   *log.Logger
}

// Config holds configuration for the notification manager.
type Config struct {
	AppID          string
	DashboardURL   string
	EnableToast    bool
	EnableTerminal bool
	EnableBanner   bool
	Router         *Router
	Logger         *log.Logger
}

// NewManager creates a new notification manager with all notification channels.
func NewManager(config Config) *Manager {
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	m := &Manager{
		toast:    NewToastNotifier(config.AppID),
		terminal: NewTerminalNotifier(),
		banner:   NewBannerNotifier(),
		router:   config.Router,
		enabled:  config.EnableToast || config.EnableTerminal || config.EnableBanner || config.Router != nil,
		logger:   config.Logger,
	}

	m.logSupport()
	return m
}

// NewDefaultManager creates a manager with default settings (toast,
// terminal, and banner channels enabled; no external Router).
func NewDefaultManager() *Manager {
	return NewManager(Config{
		AppID:          "rhema-coordinator",
		DashboardURL:   "http://localhost:8080",
		EnableToast:    true,
		EnableTerminal: true,
		EnableBanner:   true,
		Logger:         log.Default(),
	})
}

// NotifyEscalation fans an escalation out to every enabled channel:
// a Windows toast, a flashed terminal title, a dashboard banner, and
// (if configured) the external Router's Slack/Discord/email channels.
func (m *Manager) NotifyEscalation(e Escalation) error {
	if !m.enabled {
		return fmt.Errorf("notifications are disabled")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	summary := e.Summary()

	if m.toast.IsSupported() {
		if err := m.toast.NotifyEscalation(summary); err != nil {
			m.logger.Printf("[NOTIFICATION] toast failed: %v", err)
			errs = append(errs, fmt.Errorf("toast: %w", err))
		}
	}

	if m.terminal.IsSupported() {
		if err := m.terminal.NotifyEscalation(summary); err != nil {
			m.logger.Printf("[NOTIFICATION] terminal failed: %v", err)
			errs = append(errs, fmt.Errorf("terminal: %w", err))
		}
	}

	if err := m.banner.Show(summary, string(BannerTypeEscalation)); err != nil {
		m.logger.Printf("[NOTIFICATION] banner failed: %v", err)
		errs = append(errs, fmt.Errorf("banner: %w", err))
	}

	if m.router != nil {
		m.router.RouteWithWait(e)
	}

	if len(errs) > 0 {
		return fmt.Errorf("some notifications failed: %v", errs)
	}
	return nil
}

// ShowToast displays a Windows toast notification.
func (m *Manager) ShowToast(title, message string) error {
	if !m.enabled {
		return fmt.Errorf("notifications are disabled")
	}
	if !m.toast.IsSupported() {
		return fmt.Errorf("toast notifications not supported on this platform")
	}
	if err := m.toast.ShowToast(title, message); err != nil {
		m.logger.Printf("[NOTIFICATION] toast failed: %v", err)
		return err
	}
	return nil
}

// FlashTerminal changes the terminal title to show a message.
func (m *Manager) FlashTerminal(message string) error {
	if !m.enabled {
		return fmt.Errorf("notifications are disabled")
	}
	if !m.terminal.IsSupported() {
		return fmt.Errorf("terminal notifications not supported")
	}
	if err := m.terminal.FlashTerminal(message); err != nil {
		m.logger.Printf("[NOTIFICATION] terminal flash failed: %v", err)
		return err
	}
	return nil
}

// ShowDashboardBanner displays a banner for the system monitor feed.
func (m *Manager) ShowDashboardBanner(message string) error {
	if !m.enabled {
		return fmt.Errorf("notifications are disabled")
	}
	if err := m.banner.Show(message, string(BannerTypeInfo)); err != nil {
		m.logger.Printf("[NOTIFICATION] banner failed: %v", err)
		return err
	}
	return nil
}

// ClearAlert clears all active notifications.
func (m *Manager) ClearAlert() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.terminal.IsSupported() {
		if err := m.terminal.ClearAlert(); err != nil {
			errs = append(errs, fmt.Errorf("terminal: %w", err))
		}
	}
	if err := m.banner.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("banner: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("some clear operations failed: %v", errs)
	}
	return nil
}

// IsEnabled returns true if notifications are enabled.
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Enable enables all notifications.
func (m *Manager) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}

// Disable disables all notifications.
func (m *Manager) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// GetBannerState returns the current banner state for the monitor feed.
func (m *Manager) GetBannerState() BannerState {
	return m.banner.GetState()
}

func (m *Manager) logSupport() {
	m.logger.Printf("[NOTIFICATION] toast supported: %v", m.toast.IsSupported())
	m.logger.Printf("[NOTIFICATION] terminal supported: %v", m.terminal.IsSupported())
}

// SetTerminalTitle sets the original terminal title (called at startup
// so ClearAlert has something to restore).
func (m *Manager) SetTerminalTitle(title string) {
	m.terminal.SetOriginalTitle(title)
}
