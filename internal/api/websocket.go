package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// ProgressMessage is one update pushed to websocket clients.
type ProgressMessage struct {
	Type      string         `json:"type"`      // "progress", "complete", "error"
	Operation string         `json:"operation"` // "assemble" or "job"
	Stage     string         `json:"stage"`
	Progress  int            `json:"progress"` // 0-100
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Client is one websocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *tokenBucket
}

// Hub fans progress messages out to every connected client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	now        func() time.Time
	logger     *slog.Logger

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
		logger:     logging.Component(logger, "websocket"),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			logging.WebSocketEvent("client_connected", len(h.clients))

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				logging.WebSocketEvent("client_disconnected", len(h.clients))
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					h.logger.Warn("client too slow, disconnecting")
					h.drop(c)
				}
			}
		}
	}
}

// drop is only called from Run.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast queues msg for every client. A full queue drops the message.
func (h *Hub) Broadcast(msg ProgressMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = h.now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal progress message", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "stage", msg.Stage)
	}
}

// Publish forwards an assembly event. It has the bookpkg.Observer
// signature so it can be registered on the assembler.
func (h *Hub) Publish(e bookpkg.Event) {
	msg := ProgressMessage{
		Type:      "progress",
		Operation: "assemble",
		Stage:     string(e.Status),
		Data: map[string]any{
			"assemblyId": e.AssemblyID,
			"key":        e.Key,
		},
	}
	if !e.Time.IsZero() {
		msg.Timestamp = e.Time.UTC().Format(time.RFC3339)
	}
	if e.Type != "" {
		msg.Data["type"] = e.Type
	}
	if e.Source != "" {
		msg.Data["source"] = e.Source
	}

	switch e.Status {
	case bookpkg.StatusStarted:
		msg.Message = "assembling " + e.Key
	case bookpkg.StatusFallback:
		msg.Message = string(e.Type) + ": " + e.Source + " unavailable, trying next"
		msg.Data["error"] = e.Error
	case bookpkg.StatusResolved:
		msg.Message = string(e.Type) + " resolved from " + e.Source
	case bookpkg.StatusMissing:
		msg.Type = "error"
		msg.Message = string(e.Type) + " unavailable"
		msg.Data["error"] = e.Error
	case bookpkg.StatusCompleted, bookpkg.StatusCached:
		msg.Type = "complete"
		msg.Progress = 100
		msg.Message = e.Key + " ready"
		msg.Data["resolved"] = e.Resolved
		msg.Data["total"] = e.Total
	}
	h.Broadcast(msg)
}

// isOriginAllowed supports exact matches, "*" and "*.example.com"
// subdomain patterns. An empty allow list admits every origin.
func isOriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, pattern := range allowed {
		switch {
		case pattern == "*", pattern == origin:
			return true
		case strings.HasPrefix(pattern, "*."):
			if strings.HasSuffix(origin, pattern[1:]) {
				return true
			}
		}
	}
	return false
}

// handleWebSocket upgrades the connection and subscribes it to the hub.
// Inbound messages are only read for liveness and rate limiting.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.WebSocket
	if cfg.RequireAuth && !authorized(r, s.cfg.Auth) {
		s.logger.Warn("websocket authentication failed", "remote", clientIP(r))
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid API key")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			ok := isOriginAllowed(r.Header.Get("Origin"), s.cfg.AllowedOrigins)
			if !ok {
				s.logger.Warn("websocket origin rejected", "origin", r.Header.Get("Origin"))
			}
			return ok
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	rate := float64(max(cfg.MaxMessageRate, 1))
	c := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: newTokenBucket(rate*2, rate, time.Now),
	}
	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket unexpected close", "error", err)
			}
			return
		}
		if !c.limiter.allow() {
			c.hub.logger.Warn("websocket message rate exceeded, closing connection")
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit exceeded"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
