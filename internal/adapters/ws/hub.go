// Package ws pushes relay snapshots and board events to browser viewers.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// Message types and rooms.
const (
	TypeJoinRoom   = "joinRoom"
	TypeSendData   = "sendData"
	TypeBoardState = "boardState"
	RoomScoreboard = "scoreboard"

	joinAttempts = 3
)

// Envelope is every frame exchanged with a viewer.
type Envelope struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	Data any    `json:"data,omitempty"`
}

type inbound struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// Hub tracks viewer connections and fans messages out to those that joined the room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	// published counts Publish calls; join uses it to detect a push racing the greeting.
	published atomic.Uint64

	upgrader websocket.Upgrader
	config   Config
	logger   logger.Logger
	snapshot func(ctx context.Context) (any, error)
	state    func(ctx context.Context) (any, error)
}

type client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	joined      bool
	connectedAt time.Time
}

// NewHub creates a Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		config:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("ws")
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.RecordErrorByComponent("ws", "upgrade")
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		id:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, h.config.SendBuffer),
		connectedAt: time.Now(),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	h.logger.Debug(r.Context(), "viewer connected",
		logger.String("connection_id", c.id),
		logger.String("remote", r.RemoteAddr))

	go h.writePump(c)
	h.readPump(context.WithoutCancel(r.Context()), c)
}

// Publish marshals payload under topic and delivers it to every joined viewer.
// Viewers whose buffer is full are dropped.
func (h *Hub) Publish(ctx context.Context, topic string, payload any) error {
	h.published.Add(1)
	b, err := json.Marshal(Envelope{Type: topic, Data: payload})
	if err != nil {
		metrics.RecordErrorByComponent("ws", "marshal")
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	var slow []*client
	delivered := 0
	for _, c := range h.clients {
		if !c.joined {
			continue
		}
		select {
		case c.send <- b:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(ctx, "viewer too slow, dropping connection", logger.String("connection_id", c.id))
		metrics.RecordClientDropped("slow")
		h.drop(c)
	}
	metrics.RecordBroadcast(topic)
	return nil
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Joined returns the number of connections that joined the room.
func (h *Hub) Joined() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.joined {
			n++
		}
	}
	return n
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	metrics.UpdateWebsocketClients(len(h.clients))
	return true
}

// unregister removes c and closes its outbox. It reports whether c was registered.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return false
	}
	delete(h.clients, c.id)
	close(c.send)
	metrics.UpdateWebsocketClients(len(h.clients))
	return true
}

func (h *Hub) drop(c *client) {
	if h.unregister(c) {
		_ = c.conn.Close()
	}
}

// join greets c with the current snapshot and board state and marks it joined in
// the same critical section, so no broadcast can reach c ahead of an older greeting.
// When a broadcast starts while the greeting is being built, the greeting is rebuilt.
func (h *Hub) join(ctx context.Context, c *client, room string) {
	if room != RoomScoreboard {
		h.logger.Debug(ctx, "invalid room", logger.String("connection_id", c.id), logger.String("room", room))
		return
	}

	for attempt := 1; ; attempt++ {
		seq := h.published.Load()
		frames := [][]byte{
			h.greeting(ctx, TypeSendData, h.snapshot),
			h.greeting(ctx, TypeBoardState, h.state),
		}

		h.mu.Lock()
		if _, ok := h.clients[c.id]; !ok {
			h.mu.Unlock()
			return
		}
		if h.published.Load() != seq && attempt < joinAttempts {
			h.mu.Unlock()
			continue
		}
		for _, b := range frames {
			if b == nil {
				continue
			}
			select {
			case c.send <- b:
			default:
			}
		}
		c.joined = true
		h.mu.Unlock()
		break
	}
	h.logger.Debug(ctx, "viewer joined", logger.String("connection_id", c.id))
}

// greeting renders the join frame for topic, or nil when source has nothing to offer.
func (h *Hub) greeting(ctx context.Context, topic string, source func(ctx context.Context) (any, error)) []byte {
	if source == nil {
		return nil
	}
	data, err := source(ctx)
	if err != nil {
		h.logger.Warn(ctx, "join payload unavailable", logger.String("type", topic), logger.Error(err))
		return nil
	}
	b, err := json.Marshal(Envelope{Type: topic, Data: data})
	if err != nil {
		metrics.RecordErrorByComponent("ws", "marshal")
		return nil
	}
	return b
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(h.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn(ctx, "unexpected websocket close", logger.String("connection_id", c.id), logger.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))

		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			h.logger.Debug(ctx, "ignoring malformed message", logger.String("connection_id", c.id))
			continue
		}
		if in.Type == TypeJoinRoom {
			h.join(ctx, c, in.Room)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		h.drop(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.config.AllowedOrigins, "*") {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	h.logger.Warn(r.Context(), "websocket origin rejected", logger.String("origin", origin))
	return false
}
