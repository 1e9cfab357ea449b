package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastecollect/waste-dispatch-api/models"
)

func dialHub(t *testing.T, hub *Hub, recipient string) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("recipient"))
	}))
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?recipient=" + recipient
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connected(recipient) == 1 }, time.Second, 5*time.Millisecond)
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestHub_SendReachesRecipientOnly(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	alice, closeAlice := dialHub(t, hub, "alice")
	defer closeAlice()
	bob, closeBob := dialHub(t, hub, "bob")
	defer closeBob()

	n := hub.Send("alice", models.Message{Type: models.MessageCollectorAssigned, Payload: map[string]string{"requestId": "r1"}})
	assert.Equal(t, 1, n)

	var got models.Message
	_ = alice.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, alice.ReadJSON(&got))
	assert.Equal(t, models.MessageCollectorAssigned, got.Type)

	_ = bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestHub_SendToUnknownRecipient(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	assert.Equal(t, 0, hub.Send("nobody", models.Message{Type: models.MessageNewRequest}))
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	conn, closeAll := dialHub(t, hub, "carol")
	defer closeAll()

	conn.Close()

	assert.Eventually(t, func() bool { return hub.Connected("carol") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseDisconnectsEveryone(t *testing.T) {
	hub := NewHub(nil)
	_, closeAll := dialHub(t, hub, "dave")
	defer closeAll()

	hub.Close()

	assert.Equal(t, 0, hub.Connected("dave"))
	assert.Equal(t, 0, hub.Send("dave", models.Message{Type: models.MessageNewRequest}))
}
