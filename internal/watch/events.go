package watch

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	broadcastSize = 256
)

// EventMessage is the JSON frame sent to websocket clients for every
// registry change.
type EventMessage struct {
	Type      metadata.EventType `json:"type"`
	Path      string             `json:"path"`
	Name      string             `json:"name,omitempty"`
	Version   string             `json:"version,omitempty"`
	Category  metadata.Category  `json:"category,omitempty"`
	Timestamp int64              `json:"timestamp"` // Unix milliseconds
}

// NewEventMessage converts a registry change event to its wire form.
func NewEventMessage(ev metadata.ChangeEvent) *EventMessage {
	msg := &EventMessage{
		Type:      ev.Type,
		Path:      ev.Path,
		Timestamp: ev.Timestamp.UnixMilli(),
	}
	if ev.Component != nil {
		msg.Name = ev.Component.Name
		msg.Version = ev.Component.Version
		msg.Category = ev.Component.Category
	}
	return msg
}

// Hub manages websocket connections subscribed to registry changes
type Hub struct {
	connections map[*websocket.Conn]bool
	broadcast   chan *EventMessage
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHub creates a hub and starts its dispatch loop
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan *EventMessage, broadcastSize),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	go h.run()

	return h
}

// checkOrigin accepts same-origin requests and local development hosts only
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") ||
		strings.HasPrefix(origin, "https://127.0.0.1")
}

// Attach subscribes the hub to registry changes. The returned id removes
// the subscription.
func (h *Hub) Attach(registry *metadata.Registry) metadata.ListenerID {
	return registry.AddChangeListener(h.Publish)
}

// Publish queues a change event for every connected client. Events are
// dropped when the queue is full or the hub is closed.
func (h *Hub) Publish(ev metadata.ChangeEvent) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- NewEventMessage(ev):
	default:
		h.logger.Warn("event queue full, dropping change event", zap.String("path", ev.Path))
	}
}

// run handles the websocket connection lifecycle
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mutex.Lock()
			h.connections[conn] = true
			total := len(h.connections)
			h.mutex.Unlock()
			h.logger.Debug("event client connected", zap.Int("total", total))

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				conn.Close()
			}
			total := len(h.connections)
			h.mutex.Unlock()
			h.logger.Debug("event client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			h.sendToAll(message)
		}
	}
}

// sendToAll sends a message to all connected clients
func (h *Hub) sendToAll(message *EventMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal change event", zap.Error(err))
		return
	}

	// Collect failed connections while holding read lock
	h.mutex.RLock()
	var failed []*websocket.Conn
	for conn := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("failed to send change event", zap.Error(err))
			failed = append(failed, conn)
		}
	}
	h.mutex.RUnlock()

	if len(failed) > 0 {
		h.mutex.Lock()
		for _, conn := range failed {
			if _, ok := h.connections[conn]; ok {
				conn.Close()
				delete(h.connections, conn)
			}
		}
		h.mutex.Unlock()
	}
}

// ServeHTTP upgrades the request to a websocket subscribed to change events
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("failed to upgrade connection", zap.Error(err))
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go h.readMessages(conn)
}

// readMessages drains client frames so pings and close frames are handled
func (h *Hub) readMessages(conn *websocket.Conn) {
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket error", zap.Error(err))
			}
			return
		}
	}
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.connections)
}

// Close closes all connections and stops the hub. It is safe to call more
// than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)

		h.mutex.Lock()
		defer h.mutex.Unlock()
		for conn := range h.connections {
			conn.Close()
		}
		h.connections = make(map[*websocket.Conn]bool)
	})
}
