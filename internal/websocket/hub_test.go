package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyops/remedy/internal/models"
)

func dialTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHubWelcomeAndBroadcast(t *testing.T) {
	hub, conn := dialTestHub(t)

	welcome := readMessage(t, conn)
	assert.Equal(t, "welcome", welcome.Type)

	event := &models.IncidentEvent{
		ID:          "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		IncidentID:  "inc-1",
		Type:        models.EventIncidentDetected,
		Description: "Incident detected: test",
	}
	hub.EventRecorded(event)

	msg := readMessage(t, conn)
	assert.Equal(t, "timelineEvent", msg.Type)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "inc-1", data["incidentId"])
}

func TestHubPingPong(t *testing.T) {
	_, conn := dialTestHub(t)
	readMessage(t, conn) // welcome

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)
}

func TestHubClientCount(t *testing.T) {
	hub, conn := dialTestHub(t)
	readMessage(t, conn) // welcome, guarantees registration completed

	assert.Equal(t, 1, hub.ClientCount())

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 20*time.Millisecond)
}
