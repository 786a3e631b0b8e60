package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smartscale/kiosk/internal/engine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The kiosk display runs on the same device; origin checks are
		// delegated to the reverse proxy in multi-tenant deployments.
		return true
	},
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans engine state snapshots out to every connected kiosk display.
// There is a single broadcast room: every client sees the same state.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	done chan struct{}
	once sync.Once
}

// NewHub creates a hub. Run must be called before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client, 10),
		unregister: make(chan *client, 10),
		broadcast:  make(chan []byte, 100),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Close is called.
// Must run in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			slog.Debug("display connected", "client_id", c.id, "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			slog.Debug("display disconnected", "client_id", c.id, "total", n)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; drop it rather than block the hub.
					go func(c *client) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Close shuts the hub down and disconnects every client.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}

// BroadcastState pushes a state snapshot to every connected display.
// Safe to call from any goroutine, including the engine's callback.
func (h *Hub) BroadcastState(state engine.State) {
	msg, err := json.Marshal(state)
	if err != nil {
		slog.Error("failed to encode state snapshot", "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// handleWS upgrades the request and attaches the client to the hub. The
// current state is pushed immediately so a reconnecting display does
// not wait for the next transition.
func (h *Hub) handleWS(eng *engine.Engine) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		c := &client{
			id:   uuid.New().String(),
			conn: conn,
			send: make(chan []byte, 16),
		}
		h.register <- c

		if snapshot, err := json.Marshal(eng.State()); err == nil {
			select {
			case c.send <- snapshot:
			default:
			}
		}

		go c.writePump()
		go c.readPump(h)
	}
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; displays are read-only consumers.
// It exists to surface disconnects and answer pings.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
