package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/session"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventStream pushes session snapshots to websocket clients.
type EventStream struct {
	session *session.Session

	mu      sync.Mutex
	closed  bool
	clients map[*websocket.Conn]struct{}
}

func NewEventStream(s *session.Session) *EventStream {
	return &EventStream{session: s, clients: make(map[*websocket.Conn]struct{})}
}

func (es *EventStream) register(conn *websocket.Conn) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.closed {
		return false
	}
	es.clients[conn] = struct{}{}
	return true
}

func (es *EventStream) unregister(conn *websocket.Conn) {
	es.mu.Lock()
	defer es.mu.Unlock()
	delete(es.clients, conn)
}

// Close disconnects every client. Hijacked connections are not closed by
// http.Server.Shutdown.
func (es *EventStream) Close() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.closed = true
	for conn := range es.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	clear(es.clients)
}

// Handle handles GET /session/events. The client receives the current snapshot
// and then one message per change. Messages from the client are discarded.
func (es *EventStream) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnF("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if !es.register(conn) {
		return
	}
	defer es.unregister(conn)

	updates, cancel := es.session.Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.DebugF("WebSocket read error: %v", err)
				}
				return
			}
		}
	}()

	logger.DebugF("WebSocket client connected: %s", r.RemoteAddr)
	for {
		select {
		case <-gone:
			logger.DebugF("WebSocket client disconnected: %s", r.RemoteAddr)
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snapshot); err != nil {
				logger.DebugF("WebSocket write error: %v", err)
				return
			}
		}
	}
}
