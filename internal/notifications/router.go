package notifications

import (
	"log"
	"sync"
)

// Channel represents an external channel that can send escalation
// notifications (Slack, Discord, email — see internal/notifications/external).
type Channel interface {
	// Name returns the channel name.
	Name() string

	// ShouldNotify checks if an escalation should trigger a notification
	// on this channel (priority/type filters).
	ShouldNotify(e Escalation) bool

	// Send sends the escalation to the channel.
	Send(e Escalation) error
}

// Router dispatches escalations to multiple notification channels.
type Router struct {
	channels []Channel
	mu       sync.RWMutex
}

// NewRouter creates a new notification router with the provided channels.
func NewRouter(channels []Channel) *Router {
	if channels == nil {
		channels = []Channel{}
	}
	return &Router{channels: channels}
}

// AddChannel adds a notification channel to the router.
func (r *Router) AddChannel(channel Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, channel)
}

// RemoveChannel removes a notification channel by name.
func (r *Router) RemoveChannel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	filtered := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		if ch.Name() != name {
			filtered = append(filtered, ch)
		}
	}
	r.channels = filtered
}

// Route sends an escalation to all matching channels asynchronously,
// fire-and-forget, logging failures without returning them.
func (r *Router) Route(e Escalation) {
	for _, ch := range r.snapshot() {
		go func(channel Channel) {
			if !channel.ShouldNotify(e) {
				return
			}
			if err := channel.Send(e); err != nil {
				log.Printf("[NOTIFY-ROUTER] failed to send escalation %s to channel %s: %v", e.ConflictID, channel.Name(), err)
			}
		}(ch)
	}
}

// RouteWithWait routes an escalation and blocks until every channel
// has finished processing it.
func (r *Router) RouteWithWait(e Escalation) {
	channels := r.snapshot()
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(channel Channel) {
			defer wg.Done()
			if !channel.ShouldNotify(e) {
				return
			}
			if err := channel.Send(e); err != nil {
				log.Printf("[NOTIFY-ROUTER] failed to send escalation %s to channel %s: %v", e.ConflictID, channel.Name(), err)
			}
		}(ch)
	}
	wg.Wait()
}

// GetChannels returns the names of all registered channels.
func (r *Router) GetChannels() []string {
	channels := r.snapshot()
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name()
	}
	return names
}

func (r *Router) snapshot() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channels := make([]Channel, len(r.channels))
	copy(channels, r.channels)
	return channels
}
