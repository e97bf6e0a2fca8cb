package httpapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sandevgo/momentum/pkg/log"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsPongTimeout    = 60 * time.Second
	wsPingInterval   = 30 * time.Second
	wsSendBuffer     = 64
	maxWSMessageSize = 64 * 1024
)

// Event is one realtime push to a user's open connections.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type wsClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks the open websocket connections per user and fans events
// out to them. Pushes are best effort: a slow or dead connection is
// dropped, never waited on.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]*wsClient
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[string]*wsClient)}
}

// Serve owns conn until it closes: registers the client, runs the write
// pump and blocks reading until the peer disconnects.
func (h *Hub) Serve(ctx context.Context, userID string, conn *websocket.Conn) {
	client := &wsClient{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
	}
	h.register(client)
	defer h.unregister(client)

	log.FromCtx(ctx).Debug().Str("user_id", userID).Str("client", client.id).Msg("websocket connected")

	go client.writePump()
	client.readPump(ctx)
}

// Send pushes an event to every open connection of the user. Returns
// the number of connections it reached.
func (h *Hub) Send(ctx context.Context, userID string, event Event) int {
	data, err := json.Marshal(event)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("websocket event marshal failed")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.clients[userID] {
		select {
		case c.send <- data:
			sent++
		default:
			// Buffer full, the event is dropped for this connection.
		}
	}
	return sent
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[string]*wsClient)
	}
	h.clients[c.userID][c.id] = c
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[c.userID], c.id)
	if len(h.clients[c.userID]) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// readPump discards inbound frames; the socket is push-only. It exists
// to notice disconnects and answer pings.
func (c *wsClient) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxWSMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.FromCtx(ctx).Debug().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
