package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 16
	wsReadLimit  = 512
	// A subscriber that misses this many messages in a row is disconnected.
	wsMaxDrops = 8
)

// WSHub fans leaderboard notifications out to websocket subscribers grouped
// in rooms. Delivery is best effort: Publish never blocks on a subscriber.
type WSHub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*WSConn
	closed   bool
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// WSConn is one subscriber. The hub closes Send when it drops the subscriber.
type WSConn struct {
	ID   string
	Send chan []byte

	drops atomic.Int32
}

// WSMessage is the frame sent to subscribers.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// NewWSHub creates a hub. checkOrigin may be nil to accept any origin.
func NewWSHub(logger *slog.Logger, checkOrigin func(r *http.Request) bool) *WSHub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHub{
		rooms:  make(map[string]map[string]*WSConn),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Join subscribes conn to room. It reports false, closing conn.Send, once
// the hub has shut down.
func (h *WSHub) Join(room string, conn *WSConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(conn.Send)
		return false
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*WSConn)
		h.rooms[room] = members
	}
	members[conn.ID] = conn
	wsConnections.Inc()
	return true
}

// Leave unsubscribes a connection. Unknown ids are ignored.
func (h *WSHub) Leave(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(room, connID)
}

// remove drops a member and reports whether it was present. Callers hold mu.
func (h *WSHub) remove(room, connID string) bool {
	members := h.rooms[room]
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	wsConnections.Dec()
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	return true
}

// Publish queues an event for every subscriber of room. A full buffer drops
// the message for that subscriber; repeated drops disconnect it.
func (h *WSHub) Publish(room, event string, data any) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws encode failed", "error", err, "room", room, "event", event)
		return
	}

	var slow []*WSConn
	h.mu.RLock()
	for _, conn := range h.rooms[room] {
		select {
		case conn.Send <- payload:
			conn.drops.Store(0)
		default:
			if conn.drops.Add(1) >= wsMaxDrops {
				slow = append(slow, conn)
			}
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range slow {
		if h.remove(room, conn.ID) {
			close(conn.Send)
			h.logger.Warn("ws subscriber too slow, disconnected", "conn_id", conn.ID, "room", room)
		}
	}
}

// ConnectionCount returns the number of subscribers across all rooms.
func (h *WSHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, members := range h.rooms {
		n += len(members)
	}
	return n
}

// RoomCount returns the number of rooms with at least one subscriber.
func (h *WSHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ServeRoom upgrades the request and streams room messages until the client
// goes away. Inbound messages are discarded; reads only service pings.
func (h *WSHub) ServeRoom(w http.ResponseWriter, r *http.Request, room string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err, "room", room)
		return
	}

	conn := &WSConn{ID: uuid.NewString(), Send: make(chan []byte, wsSendBuffer)}
	if !h.Join(room, conn) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(wsWriteWait))
		_ = ws.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.SetReadLimit(wsReadLimit)
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.writeLoop(ws, conn, done)
	h.Leave(room, conn.ID)
	_ = ws.Close()
}

func (h *WSHub) writeLoop(ws *websocket.Conn, conn *WSConn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-conn.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown disconnects every subscriber and refuses new ones.
func (h *WSHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for room, members := range h.rooms {
		for id, conn := range members {
			h.remove(room, id)
			close(conn.Send)
		}
	}
}
