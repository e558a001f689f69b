package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/library"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/metrics"
	"github.com/onnwee/storyreader/internal/readcache"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS middleware decides which origins reach this handler
		return true
	},
}

// WebSocketMessage is the envelope for every frame in either direction.
type WebSocketMessage struct {
	Type    string `json:"type"` // "state", "error"; clients send "refresh"
	Payload any    `json:"payload,omitempty"`
}

// StatePayload is one readcache.Result as seen by a websocket client.
type StatePayload struct {
	Key      string        `json:"key"`
	State    string        `json:"state"`
	Loading  bool          `json:"loading"`
	Value    any           `json:"value,omitempty"`
	Error    *apierr.Error `json:"error,omitempty"`
	StoredAt *time.Time    `json:"storedAt,omitempty"`
}

func statePayload(r readcache.Result) StatePayload {
	p := StatePayload{
		Key:     r.Key,
		State:   r.State.String(),
		Loading: r.Loading,
		Value:   r.Value,
	}
	if r.Err != nil {
		p.Error = apierr.From(r.Err)
	}
	if !r.StoredAt.IsZero() {
		at := r.StoredAt
		p.StoredAt = &at
	}
	return p
}

// Client is one websocket connection bound to one subscription.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  *readcache.Subscription
	// replies to client messages; writePump is the only writer on conn
	send chan WebSocketMessage
}

// Hub tracks open connections so shutdown can close them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketConnections.Inc()
	logger.Info("WebSocket client connected", "key", c.sub.Key(), "total_clients", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.WebSocketConnections.Dec()
		logger.Info("WebSocket client disconnected", "key", c.sub.Key(), "total_clients", n)
	}
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll ends every subscription. Each writePump then sends a close frame.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.sub.Close()
	}
}

// readPump handles client messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket unexpected close", "error", err)
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(WebSocketMessage{Type: "error", Payload: apierr.ValidationInvalidJSON()})
			continue
		}
		switch msg.Type {
		case "refresh":
			// a fresh entry starts no load, so answer with what is held
			if res := c.sub.Refresh(); !res.Loading {
				if errors.Is(res.Err, readcache.ErrClosed) {
					return
				}
				c.reply(WebSocketMessage{Type: "state", Payload: statePayload(res)})
			}
		default:
			c.reply(WebSocketMessage{Type: "error", Payload: apierr.ValidationInvalidValue("type", "Unknown message type")})
		}
	}
}

func (c *Client) reply(msg WebSocketMessage) {
	select {
	case c.send <- msg:
	default:
		logger.Warn("Client send buffer full, dropping reply", "key", c.sub.Key())
	}
}

// writePump forwards subscription updates and replies to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var msg WebSocketMessage
		select {
		case res, ok := <-c.sub.C:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			msg = WebSocketMessage{Type: "state", Payload: statePayload(res)}
		case msg = <-c.send:
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			logger.Debug("WebSocket write failed", "key", c.sub.Key(), "error", err)
			return
		}
		metrics.WebSocketMessagesSent.Inc()
	}
}

// WebSocketHandler streams cache state for one key per connection.
type WebSocketHandler struct {
	svc *library.Service
	hub *Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(svc *library.Service) *WebSocketHandler {
	return &WebSocketHandler{svc: svc, hub: NewHub()}
}

// Hub returns the connection registry.
func (h *WebSocketHandler) Hub() *Hub { return h.hub }

// HandleWebSocket upgrades the connection and subscribes it to ?key=.
// GET /api/ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("key"))
		return
	}
	producer, ttl, err := h.svc.Producer(key)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("key", "Unknown cache key"))
		return
	}
	if h.svc.Cache().Closed() {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Shutting down"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		logger.WarnContext(r.Context(), "Failed to upgrade to WebSocket", "error", err)
		return
	}

	sub, err := h.svc.Cache().Subscribe(key, producer, ttl)
	if err != nil {
		logger.WarnContext(r.Context(), "WebSocket subscribe failed", "key", key, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		sub:  sub,
		send: make(chan WebSocketMessage, 8),
	}
	h.hub.register(client)

	go client.writePump()
	go client.readPump()
}
