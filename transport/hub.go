// Package transport fans normalized events out to connected display clients
// over WebSocket. Delivery is best-effort: a slow or disconnected client is
// dropped rather than blocking emission to the others, and a client
// connecting after an emission never receives it.
package transport

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dinir/TTV-Toaster/bridge"
	"github.com/Dinir/TTV-Toaster/telemetry"
)

// sendBuffer bounds per-client queueing; a client that falls this far
// behind is dropped.
const sendBuffer = 64

// Keepalive timing, replaceable in tests. Pings must go out comfortably
// inside the pong window or healthy idle clients hit the read deadline.
var (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub tracks connected display clients and broadcasts envelopes to them.
// It implements bridge.Sink.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan bridge.Envelope
}

// NewHub returns an empty hub. Overlay pages are served from the same host
// in production but open their sockets from OBS browser sources too, so the
// origin check is permissive.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Emit broadcasts an envelope to every connected client. Per-client order
// matches emission order; no ordering is guaranteed across clients. Never
// blocks: clients with a full send buffer are dropped.
func (h *Hub) Emit(ev bridge.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			slog.Warn("dropping slow display client", slog.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

// ClientCount returns the number of connected display clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS upgrades the request and serves the client until it disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}
	c := &client{conn: conn, send: make(chan bridge.Envelope, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	telemetry.ConnectedClients.Set(float64(n))
	slog.Info("display client connected", slog.String("remote", conn.RemoteAddr().String()), slog.Int("clients", n))

	go h.writeLoop(c)
	h.readLoop(c)
}

// writeLoop serializes all writes for one client, including the periodic
// ping that keeps an idle connection inside the read deadline.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				// send channel closed: hub dropped the client
				_ = c.conn.Close()
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readLoop consumes (and discards) inbound frames so control messages are
// processed and disconnects are noticed.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	_ = c.conn.Close()
	telemetry.ConnectedClients.Set(float64(len(h.clients)))
	slog.Info("display client disconnected", slog.Int("clients", len(h.clients)))
}
