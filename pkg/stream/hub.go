package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xmhha/fswatch/pkg/logger"
)

// Hub manages WebSocket subscribers and fans events out to them.
type Hub struct {
	cfg      Config
	log      logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
}

// NewHub creates a hub with the given configuration.
func NewHub(cfg Config, log logger.Logger) *Hub {
	return &Hub{
		cfg: cfg.withDefaults(),
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and streams
// events until the client disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Event, h.cfg.SendBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("stream client connected", "remote", r.RemoteAddr)

	go h.readLoop(c)
	h.writeLoop(c)

	h.remove(c)
	h.log.Debug("stream client disconnected", "remote", r.RemoteAddr)
}

// readLoop discards inbound messages and unblocks the write loop when
// the peer goes away.
func (h *Hub) readLoop(c *client) {
	defer close(c.done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(h.cfg.WriteTimeout))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Broadcast queues ev for every connected client. Clients whose send
// buffer is full are dropped rather than allowed to stall the rest.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.log.Warn("dropping slow stream client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	c.conn.Close()
}

// Close disconnects every client. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}
