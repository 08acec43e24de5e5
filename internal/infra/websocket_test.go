package infra

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *WSHub {
	return NewWSHub(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestWSHub_JoinPublishLeave(t *testing.T) {
	hub := newTestHub()
	a := &WSConn{ID: "a", Send: make(chan []byte, 1)}
	b := &WSConn{ID: "b", Send: make(chan []byte, 1)}
	hub.Join("leaderboard", a)
	hub.Join("leaderboard", b)
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.Equal(t, 1, hub.RoomCount())

	hub.Publish("leaderboard", "leaderboard.changed", map[string]int{"points": 7})
	var msg WSMessage
	require.NoError(t, json.Unmarshal(<-a.Send, &msg))
	assert.Equal(t, "leaderboard.changed", msg.Event)
	<-b.Send

	// A full buffer drops the message rather than blocking.
	hub.Publish("leaderboard", "first", nil)
	hub.Publish("leaderboard", "second", nil)
	require.NoError(t, json.Unmarshal(<-a.Send, &msg))
	assert.Equal(t, "first", msg.Event)
	assert.Empty(t, a.Send)

	hub.Leave("leaderboard", "a")
	hub.Leave("leaderboard", "b")
	assert.Zero(t, hub.ConnectionCount())
	assert.Zero(t, hub.RoomCount())
}

func TestWSHub_ServeRoom(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeRoom(w, r, "leaderboard")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("leaderboard", "leaderboard.changed", map[string]string{"result_id": "RESULT-1"})

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "leaderboard.changed", msg.Event)
	assert.Equal(t, "RESULT-1", msg.Data.(map[string]interface{})["result_id"])

	hub.Shutdown(context.Background())
	assert.Zero(t, hub.RoomCount())
}

func TestWSHub_DisconnectsSlowSubscriber(t *testing.T) {
	hub := newTestHub()
	slow := &WSConn{ID: "slow", Send: make(chan []byte)}
	fast := &WSConn{ID: "fast", Send: make(chan []byte, wsMaxDrops+1)}
	hub.Join("leaderboard", slow)
	hub.Join("leaderboard", fast)

	for i := 0; i < wsMaxDrops; i++ {
		hub.Publish("leaderboard", "leaderboard.changed", i)
	}

	assert.Equal(t, 1, hub.ConnectionCount())
	_, open := <-slow.Send
	assert.False(t, open, "evicted subscriber's channel is closed")
	assert.Len(t, fast.Send, wsMaxDrops)

	hub.Leave("leaderboard", "slow")
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestWSHub_RefusesJoinAfterShutdown(t *testing.T) {
	hub := newTestHub()
	hub.Shutdown(context.Background())

	conn := &WSConn{ID: "late", Send: make(chan []byte, 1)}
	assert.False(t, hub.Join("leaderboard", conn))
	_, open := <-conn.Send
	assert.False(t, open)
	assert.Zero(t, hub.ConnectionCount())
}
