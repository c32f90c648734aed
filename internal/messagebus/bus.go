// Package messagebus implements the typed, prioritized message bus:
// unicast/broadcast/session delivery with a strict-priority, FIFO-within-
// level dispatch queue, expiry, bounded history, and running statistics.
package messagebus

import (
	"container/heap"
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// MaxBackpressureRetries is the number of times to retry a full
// subscriber channel before dropping the message.
const MaxBackpressureRetries = 3

// BackpressureRetryDelay is the delay between retry attempts.
const BackpressureRetryDelay = 10 * time.Millisecond

// subscriberInboxSize is the buffered channel depth for each subscriber.
const subscriberInboxSize = 100

// AgentLookup lets the bus verify a unicast recipient is registered
// without importing the agent state manager directly.
type AgentLookup interface {
	Exists(id string) bool
}

// SessionLookup resolves a session's current participant set.
type SessionLookup interface {
	Participants(sessionID string) ([]string, bool)
}

// Config bounds the bus's queueing and retention behavior.
type Config struct {
	HistoryLimit     int
	DispatchInterval time.Duration
}

// DefaultConfig mirrors the retention defaults used elsewhere in the core.
func DefaultConfig() Config {
	return Config{HistoryLimit: 1000, DispatchInterval: 5 * time.Millisecond}
}

type subscription struct {
	ch chan coretypes.Message
}

// Bus is the coordination-wide message transport.
type Bus struct {
	cfg     Config
	agents  AgentLookup
	sessions SessionLookup

	mu          sync.Mutex
	queue       priorityQueue
	seq         uint64
	subscribers map[string]*subscription
	history     []coretypes.Message

	total       int64
	delivered   int64
	failed      int64
	expired     int64
	ackRTTTotal int64
	ackRTTCount int64
	droppedMsgs uint64
}

// NewBus constructs a bus wired to the given agent and session lookups.
func NewBus(cfg Config, agents AgentLookup, sessions SessionLookup) *Bus {
	return &Bus{
		cfg:         cfg,
		agents:      agents,
		sessions:    sessions,
		subscribers: make(map[string]*subscription),
	}
}

// Subscribe registers an inbox for an agent and returns its receive-only
// channel. Callers must Unsubscribe to release it.
func (b *Bus) Subscribe(agentID string) <-chan coretypes.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{ch: make(chan coretypes.Message, subscriberInboxSize)}
	b.subscribers[agentID] = sub
	return sub.ch
}

// Unsubscribe closes and removes an agent's inbox.
func (b *Bus) Unsubscribe(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[agentID]; ok {
		close(sub.ch)
		delete(b.subscribers, agentID)
	}
}

// Send delivers a unicast message if RecipientIDs is non-empty, otherwise
// treats it as a broadcast.
func (b *Bus) Send(msg coretypes.Message) error {
	if msg.IsBroadcast() {
		return b.Broadcast(msg)
	}

	b.mu.Lock()
	for _, r := range msg.RecipientIDs {
		if b.agents != nil && !b.agents.Exists(r) {
			b.mu.Unlock()
			return coretypes.NewAdmissionError(coretypes.ErrRecipientNotFound,
				"recipient "+r+" not found")
		}
	}
	b.enqueueLocked(msg, deliverUnicast, "")
	b.mu.Unlock()
	return nil
}

// Broadcast delivers a message to every currently subscribed agent.
// Broadcasting to an empty registry succeeds with zero deliveries.
func (b *Bus) Broadcast(msg coretypes.Message) error {
	b.mu.Lock()
	b.enqueueLocked(msg, deliverBroadcast, "")
	b.mu.Unlock()
	return nil
}

// SendSession delivers a message to every current participant of a session.
func (b *Bus) SendSession(sessionID string, msg coretypes.Message) error {
	if b.sessions != nil {
		if _, ok := b.sessions.Participants(sessionID); !ok {
			return coretypes.NewAdmissionError(coretypes.ErrSessionNotFound,
				"session "+sessionID+" not found")
		}
	}

	b.mu.Lock()
	b.enqueueLocked(msg, deliverSession, sessionID)
	b.mu.Unlock()
	return nil
}

func (b *Bus) enqueueLocked(msg coretypes.Message, kind deliveryKind, sessionID string) {
	b.seq++
	heap.Push(&b.queue, &queuedMessage{msg: msg, kind: kind, sessionID: sessionID, seq: b.seq})
	atomic.AddInt64(&b.total, 1)
}

// DispatchPending drains every currently queued message in strict
// priority order, FIFO within a priority level, delivering each to its
// resolved recipients. It is safe to call directly (e.g. from tests or a
// synchronous CLI path) or from Run's background loop.
func (b *Bus) DispatchPending() {
	now := time.Now()
	for {
		b.mu.Lock()
		if b.queue.Len() == 0 {
			b.mu.Unlock()
			return
		}
		item := heap.Pop(&b.queue).(*queuedMessage)
		b.mu.Unlock()

		b.dispatchOne(item, now)
	}
}

func (b *Bus) dispatchOne(item *queuedMessage, now time.Time) {
	if item.msg.Expired(now) {
		atomic.AddInt64(&b.expired, 1)
		b.appendHistory(item.msg)
		return
	}

	var targets []string
	switch item.kind {
	case deliverUnicast:
		targets = item.msg.RecipientIDs
	case deliverBroadcast:
		b.mu.Lock()
		for id := range b.subscribers {
			targets = append(targets, id)
		}
		b.mu.Unlock()
	case deliverSession:
		if b.sessions != nil {
			targets, _ = b.sessions.Participants(item.sessionID)
		}
	}

	delivered := 0
	for _, id := range targets {
		b.mu.Lock()
		sub, ok := b.subscribers[id]
		b.mu.Unlock()
		if !ok {
			continue
		}
		if b.sendWithBackpressure(sub, item.msg) {
			delivered++
		}
	}

	if delivered > 0 {
		atomic.AddInt64(&b.delivered, int64(delivered))
	} else if len(targets) > 0 {
		atomic.AddInt64(&b.failed, 1)
	}
	b.appendHistory(item.msg)
}

func (b *Bus) sendWithBackpressure(sub *subscription, msg coretypes.Message) bool {
	select {
	case sub.ch <- msg:
		return true
	default:
	}

	for retry := 1; retry <= MaxBackpressureRetries; retry++ {
		time.Sleep(BackpressureRetryDelay)
		select {
		case sub.ch <- msg:
			return true
		default:
		}
	}

	dropped := atomic.AddUint64(&b.droppedMsgs, 1)
	log.Printf("messagebus: dropped message after %d retries (inbox full): id=%s type=%s (total dropped: %d)",
		MaxBackpressureRetries, msg.ID, msg.Type, dropped)
	return false
}

func (b *Bus) appendHistory(msg coretypes.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, msg)
	if limit := b.cfg.HistoryLimit; limit > 0 && len(b.history) > limit {
		drop := len(b.history) - limit
		b.history = append([]coretypes.Message(nil), b.history[drop:]...)
	}
}

// RecordAckRoundTrip feeds an observed ack round-trip duration into the
// running average-response-time statistic.
func (b *Bus) RecordAckRoundTrip(d time.Duration) {
	atomic.AddInt64(&b.ackRTTTotal, int64(d))
	atomic.AddInt64(&b.ackRTTCount, 1)
}

// History returns up to limit of the most recent dispatched messages.
func (b *Bus) History(limit int) []coretypes.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]coretypes.Message, limit)
	copy(out, b.history[n-limit:])
	return out
}

// Statistics returns a point-in-time snapshot of the bus's counters.
func (b *Bus) Statistics() coretypes.BusStatistics {
	b.mu.Lock()
	activeAgents := len(b.subscribers)
	b.mu.Unlock()

	total := atomic.LoadInt64(&b.total)
	delivered := atomic.LoadInt64(&b.delivered)

	var avgRTT time.Duration
	if count := atomic.LoadInt64(&b.ackRTTCount); count > 0 {
		avgRTT = time.Duration(atomic.LoadInt64(&b.ackRTTTotal) / count)
	}

	efficiency := 0.0
	if total > 0 {
		efficiency = float64(delivered) / float64(total)
		if efficiency > 1 {
			efficiency = 1
		} else if efficiency < 0 {
			efficiency = 0
		}
	}

	return coretypes.BusStatistics{
		Total:                  total,
		Delivered:              delivered,
		Failed:                 atomic.LoadInt64(&b.failed),
		Expired:                atomic.LoadInt64(&b.expired),
		ActiveAgents:           activeAgents,
		AvgResponseTime:        avgRTT,
		CoordinationEfficiency: efficiency,
	}
}

// Run drains the dispatch queue on a fixed tick until ctx is cancelled,
// observing cancellation within one tick per the shared background-loop
// contract.
func (b *Bus) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.DispatchPending()
		}
	}
}
