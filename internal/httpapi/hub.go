package httpapi

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// monitorBufferSize is the buffer size for the monitor feed's send/
// broadcast channels, large enough to absorb a burst of conflict and
// escalation pushes between ticks.
const monitorBufferSize = 256

// monitorClient is one connected WebSocket monitor (dashboard, CLI
// `system monitor`, external observer).
type monitorClient struct {
	hub  *monitorHub
	conn *websocket.Conn
	send chan []byte
}

// monitorHub fans snapshot/conflict/escalation pushes out to every
// connected monitor client.
type monitorHub struct {
	mu         sync.RWMutex
	clients    map[*monitorClient]bool
	register   chan *monitorClient
	unregister chan *monitorClient
	broadcast  chan []byte
}

func newMonitorHub() *monitorHub {
	return &monitorHub{
		clients:    make(map[*monitorClient]bool),
		register:   make(chan *monitorClient),
		unregister: make(chan *monitorClient),
		broadcast:  make(chan []byte, monitorBufferSize),
	}
}

// run is the hub's event loop; callers launch it as a goroutine for the
// lifetime of the server.
func (h *monitorHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *monitorHub) Register(c *monitorClient)   { h.register <- c }
func (h *monitorHub) Unregister(c *monitorClient) { h.unregister <- c }

// BroadcastJSON marshals msg and fans it out; marshal failures are
// dropped silently, matching the best-effort nature of a push feed.
func (h *monitorHub) BroadcastJSON(msg MonitorMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast <- data
}

// ClientCount reports the number of currently connected monitors.
func (h *monitorHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *monitorClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		// The monitor feed is push-only; inbound frames are discarded.
	}
}

func (c *monitorClient) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
