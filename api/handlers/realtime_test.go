package handlers_test

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

func TestWebsocketHandler(t *testing.T) {
	h := newHarness(t)
	server := httptest.NewServer(h.app.Router)
	defer server.Close()
	requester := asUser()
	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?access_token="+token(t, *requester), nil)
	require.NoError(t, err)
	defer conn.Close()
	hub := h.app.Services.Hub
	require.Eventually(t, func() bool { return hub.Connected(requester.ID) == 1 }, time.Second, 5*time.Millisecond)

	hub.Send(requester.ID, models.Message{Type: models.MessageCollectionStarted, Payload: map[string]string{"requestId": "r1"}})

	var msg models.Message
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.MessageCollectionStarted, msg.Type)
}
