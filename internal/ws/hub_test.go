package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dial opens a real WebSocket pair through an httptest server and registers
// the server side with the hub.
func dial(t *testing.T, hub *Hub, userID int64) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(userID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestHubPushDeliversToUser(t *testing.T) {
	hub := NewHub()
	client := dial(t, hub, 7)

	require.Eventually(t, func() bool { return hub.ConnectionCount(7) == 1 },
		time.Second, 10*time.Millisecond)

	hub.Push(7, map[string]string{"title": "Sprint Completed"})

	client.SetReadDeadline(time.Now().Add(time.Second))
	var payload map[string]string
	require.NoError(t, client.ReadJSON(&payload))
	assert.Equal(t, "Sprint Completed", payload["title"])
}

func TestHubPushToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Push(99, "hello")
	assert.Equal(t, 0, hub.ConnectionCount(99))
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	_ = dial(t, hub, 7)

	require.Eventually(t, func() bool { return hub.ConnectionCount(7) == 1 },
		time.Second, 10*time.Millisecond)

	hub.mu.RLock()
	var conn *websocket.Conn
	for c := range hub.conns[7] {
		conn = c
	}
	hub.mu.RUnlock()

	hub.Unregister(7, conn)
	assert.Equal(t, 0, hub.ConnectionCount(7))

	// Unregistering twice is harmless.
	hub.Unregister(7, conn)
}
