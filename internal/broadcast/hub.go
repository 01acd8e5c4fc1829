// Package broadcast delivers wire messages to observers.
package broadcast

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

const (
	// DefaultSendBuffer is the number of messages queued per observer before
	// new messages are dropped for it.
	DefaultSendBuffer = 8

	DefaultWriteTimeout = 10 * time.Second

	maxIncomingMessage = 512
)

// WithSendBuffer sets the per-observer queue length.
func WithSendBuffer(size int) func(*Hub) {
	return func(h *Hub) {
		if size > 0 {
			h.sendBuffer = size
		}
	}
}

func WithWriteTimeout(timeout time.Duration) func(*Hub) {
	return func(h *Hub) {
		h.writeTimeout = timeout
	}
}

func WithLogger(logger *slog.Logger) func(*Hub) {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithCounters tracks the number of connected observers.
func WithCounters(counters *telemetry.Counters) func(*Hub) {
	return func(h *Hub) {
		h.counters = counters
	}
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Hub is a websocket endpoint that sends every broadcast message to all
// connected observers. Each observer has its own writer goroutine and a
// bounded queue; a slow observer misses messages instead of delaying others.
type Hub struct {
	upgrader     websocket.Upgrader
	sendBuffer   int
	writeTimeout time.Duration

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	latest  []byte

	logger   *slog.Logger
	counters *telemetry.Counters
}

func NewHub(options ...func(*Hub)) *Hub {
	h := Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sendBuffer:   DefaultSendBuffer,
		writeTimeout: DefaultWriteTimeout,
		clients:      make(map[uuid.UUID]*client),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&h)
	}

	return &h
}

// ServeHTTP upgrades the request and serves the observer until it
// disconnects. The latest message, if any, is sent first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}

	h.register(c)
	go h.writePump(c)

	h.logger.Info("observer connected", slog.String("id", c.id.String()), slog.String("remote", r.RemoteAddr))

	// Observers only listen; incoming messages are read to process control
	// frames and detect disconnects.
	conn.SetReadLimit(maxIncomingMessage)
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(c)
	<-c.done
	_ = conn.Close()

	h.logger.Info("observer disconnected", slog.String("id", c.id.String()))
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
	if h.latest != nil {
		c.send <- h.latest
	}

	if h.counters != nil {
		h.counters.ObserverConnected()
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)

	if h.counters != nil {
		h.counters.ObserverDisconnected()
	}
}

func (h *Hub) writePump(c *client) {
	defer close(c.done)

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("observer write failed", slog.String("id", c.id.String()), slog.Any("error", err))

			// Unblocks the read loop, which unregisters the client.
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

// SendToAll queues msg for every observer. It never blocks.
func (h *Hub) SendToAll(msg []byte) {
	shared := append([]byte(nil), msg...)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = shared
	for _, c := range h.clients {
		select {
		case c.send <- shared:
		default:
			h.logger.Debug("observer too slow, message dropped", slog.String("id", c.id.String()))
		}
	}
}

// Latest returns the last broadcast message or nil.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Len returns the number of connected observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every observer.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)

		if h.counters != nil {
			h.counters.ObserverDisconnected()
		}
	}
	return nil
}
