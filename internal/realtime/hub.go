package realtime

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/corptransit/transport-request-backend/internal/observability"
)

// Broadcaster pushes entity events to connected clients
type Broadcaster interface {
	Emit(event string, payload interface{})
}

// Event is the wire format pushed to WebSocket clients
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// session wraps one client connection. The mutex serializes writes;
// gorilla/websocket allows only one concurrent writer per connection.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(event)
}

// Hub fans entity events out to every connected client
type Hub struct {
	mu       sync.RWMutex
	sessions map[*session]struct{}
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

// NewHub creates a new broadcast hub
func NewHub(logger *logrus.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Hub{
		sessions: make(map[*session]struct{}),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleConnection upgrades the request and keeps the connection
// registered until the client goes away. Inbound messages are drained
// and discarded; this hub is broadcast-only.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	s := &session{conn: conn}

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	count := len(h.sessions)
	h.mu.Unlock()
	observability.WebsocketClients.Inc()

	h.logger.WithField("connections", count).Debug("WebSocket client connected")

	go h.readLoop(s)
}

func (h *Hub) readLoop(s *session) {
	defer h.remove(s)

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		s.conn.Close()
		observability.WebsocketClients.Dec()
	}
	count := len(h.sessions)
	h.mu.Unlock()

	h.logger.WithField("connections", count).Debug("WebSocket client disconnected")
}

// Emit broadcasts an event to all connected clients. Clients that fail
// to accept the write are dropped.
func (h *Hub) Emit(event string, payload interface{}) {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	msg := Event{Event: event, Payload: payload}

	for _, s := range sessions {
		if err := s.send(msg); err != nil {
			h.logger.WithError(err).WithField("event", event).Warn("Dropping WebSocket client")
			h.remove(s)
		}
	}
}

// ConnectionCount returns the number of connected clients
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
