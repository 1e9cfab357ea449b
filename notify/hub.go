package notify

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/metrics"
	"github.com/wastecollect/waste-dispatch-api/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 32
)

// Hub is the process-scoped registry of realtime websocket connections, keyed by
// recipient id. One recipient may hold several connections.
type Hub struct {
	clients  *xsync.Map[string, *client]
	upgrader websocket.Upgrader
	metrics  *metrics.Recorder
	closed   atomic.Bool
}

type client struct {
	id          string
	recipientID string
	conn        *websocket.Conn
	send        chan models.Message
	done        chan struct{}
	closeOnce   sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewHub returns an empty hub. rec may be nil.
func NewHub(rec *metrics.Recorder) *Hub {
	return &Hub{
		clients: xsync.NewMap[string, *client](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		metrics: rec,
	}
}

// ServeWS upgrades the request and keeps the connection registered for recipientID
// until the peer goes away. It blocks for the lifetime of the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, recipientID string) {
	if h.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "recipientId", recipientID, "error", err)
		return
	}

	c := &client{
		id:          uuid.NewString(),
		recipientID: recipientID,
		conn:        conn,
		send:        make(chan models.Message, clientSendSize),
		done:        make(chan struct{}),
	}
	h.clients.Store(c.id, c)
	zap.S().Debugw("websocket connected", "recipientId", recipientID, "connectionId", c.id)

	defer func() {
		h.clients.LoadAndDelete(c.id)
		c.close()
		zap.S().Debugw("websocket disconnected", "recipientId", recipientID, "connectionId", c.id)
	}()

	go h.writeLoop(c)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				zap.S().Warnw("websocket write failed",
					"recipientId", c.recipientID,
					"type", msg.Type,
					"error", err)
				h.metrics.RecordNotification("websocket", metrics.ResultFailed)
				c.close()
				return
			}
			h.metrics.RecordNotification("websocket", metrics.ResultDelivered)
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send queues msg on every connection of recipientID without waiting for the network.
// It returns how many connections accepted the message; a full connection buffer drops it.
func (h *Hub) Send(recipientID string, msg models.Message) int {
	queued := 0
	h.clients.Range(func(_ string, c *client) bool {
		if c.recipientID != recipientID {
			return true
		}
		select {
		case <-c.done:
		case c.send <- msg:
			queued++
		default:
			h.metrics.RecordNotification("websocket", metrics.ResultDropped)
			zap.S().Warnw("websocket buffer full, message dropped", "recipientId", recipientID, "type", msg.Type)
		}
		return true
	})
	return queued
}

// Connected returns the number of live connections of recipientID
func (h *Hub) Connected(recipientID string) int {
	n := 0
	h.clients.Range(func(_ string, c *client) bool {
		if c.recipientID == recipientID {
			n++
		}
		return true
	})
	return n
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.closed.Store(true)
	h.clients.Range(func(id string, c *client) bool {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
		h.clients.LoadAndDelete(id)
		return true
	})
}
