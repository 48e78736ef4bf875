package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rzadesk/rzadesk/pkg/types"
	"github.com/rzadesk/rzadesk/server/internal/api"
	"github.com/rzadesk/rzadesk/server/internal/session"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// PathPrefix is where the hub is mounted; the session id follows it.
	PathPrefix = "/ws/sessions/"
)

// Event names sent to clients.
const (
	EventFeed   = "feed"
	EventClosed = "closed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are restricted by the CORS layer in front of the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string                 `json:"event"`
	Data  *types.SessionResponse `json:"data,omitempty"`
}

// Hub streams one session's feed to every client watching it: on connect,
// after each change reported through Notify, and on every interval tick.
type Hub struct {
	store    *session.Store
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

// New creates a Hub that reads sessions from st and re-sends every interval.
func New(st *session.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run starts the periodic re-send loop. Run blocks until ctx is cancelled,
// then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			for _, id := range h.watched() {
				h.Notify(id)
			}
		}
	}
}

// ServeHTTP serves GET /ws/sessions/{id}. Unknown sessions get 404 before the
// upgrade. The current session is sent immediately on connect. Blocks until
// the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, PathPrefix), "/")
	v, ok := h.store.Get(id)
	if id == "" || !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(types.ErrorResponse{Error: "session not found"}) //nolint:errcheck
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		sessionID: id,
		conn:      conn,
		send:      make(chan []byte, sendBufSize),
	}
	// Queued before register so nothing else can close send first.
	if data, err := feedMessage(v); err == nil {
		c.send <- data
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Notify sends the current state of session id to its clients. If the
// session no longer exists the clients are closed instead.
func (h *Hub) Notify(id string) {
	v, ok := h.store.Get(id)
	if !ok {
		h.Closed(id)
		return
	}
	data, err := feedMessage(v)
	if err != nil {
		return
	}
	h.sendTo(id, data, false)
}

// Closed tells the clients of session id that it has ended and disconnects
// them.
func (h *Hub) Closed(id string) {
	data, _ := json.Marshal(Message{Event: EventClosed})
	h.sendTo(id, data, true)
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// sendTo queues data for every client of session id without blocking.
// Clients whose buffer is full are disconnected, as are all of them when
// disconnect is set. Sends and closes share the write lock.
func (h *Hub) sendTo(id string, data []byte, disconnect bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.sessionID != id {
			continue
		}
		full := false
		select {
		case c.send <- data:
		default:
			full = true
		}
		if full || disconnect {
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// watched returns the distinct session ids that have at least one client.
func (h *Hub) watched() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for c := range h.clients {
		if !seen[c.sessionID] {
			seen[c.sessionID] = true
			out = append(out, c.sessionID)
		}
	}
	return out
}

func feedMessage(v session.View) ([]byte, error) {
	sr := api.ToSessionResponse(v)
	return json.Marshal(Message{Event: EventFeed, Data: &sr})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
