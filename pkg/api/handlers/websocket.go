package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	apievents "github.com/brilliox/brilliox/pkg/api/events"
	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/logger"
)

const (
	defaultWSMaxConnections = 100
	defaultPingInterval     = 30 * time.Second
	defaultPongTimeout      = 10 * time.Second
	wsWriteTimeout          = 10 * time.Second
	wsSendBuffer            = 32
	wsReadLimit             = 4 << 10
)

// WebSocketConfig configures the event stream.
type WebSocketConfig struct {
	AllowedOrigins []string
	MaxConnections int
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// EventMessage is one frame of the event stream.
type EventMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// controlMessage is sent by clients to change their filter:
//
//	{"type":"subscribe","kind":"lead_added"}
//	{"type":"unsubscribe","kind":"lead_added"}
//	{"type":"follow","user":"alice"}
//	{"type":"ping"}
type controlMessage struct {
	Type string `json:"type"`
	Kind string `json:"kind,omitempty"`
	User string `json:"user,omitempty"`
}

// controlReply acknowledges a control message.
type controlReply struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	User    string `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// streamFilter selects the events a client receives. An empty kind set
// passes every kind; an empty user passes every user.
type streamFilter struct {
	mu    sync.RWMutex
	kinds map[events.Kind]struct{}
	user  string
}

func (f *streamFilter) add(kind events.Kind) {
	f.mu.Lock()
	f.kinds[kind] = struct{}{}
	f.mu.Unlock()
}

func (f *streamFilter) remove(kind events.Kind) {
	f.mu.Lock()
	delete(f.kinds, kind)
	f.mu.Unlock()
}

func (f *streamFilter) follow(user string) {
	f.mu.Lock()
	f.user = user
	f.mu.Unlock()
}

func (f *streamFilter) match(ev EventMessage) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.kinds) > 0 {
		if _, ok := f.kinds[events.Kind(ev.Type)]; !ok {
			return false
		}
	}
	if f.user == "" {
		return true
	}
	return payloadMentions(ev.Payload, f.user)
}

// payloadMentions reports whether user owns, shared or received the event.
func payloadMentions(payload any, user string) bool {
	var fields map[string]any
	switch p := payload.(type) {
	case events.Payload:
		fields = p
	case map[string]any:
		fields = p
	default:
		return false
	}
	for _, key := range []string{"user_id", "shared_with", "shared_by"} {
		if v, ok := fields[key].(string); ok && strings.EqualFold(v, user) {
			return true
		}
	}
	return false
}

type streamClient struct {
	conn   *websocket.Conn
	send   chan []byte
	filter streamFilter

	mu     sync.Mutex
	closed bool
}

func newStreamClient(conn *websocket.Conn) *streamClient {
	return &streamClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		filter: streamFilter{kinds: make(map[events.Kind]struct{})},
	}
}

func (c *streamClient) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// enqueue queues a frame without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *streamClient) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// streamHub tracks connected clients. Clients that fall a full buffer
// behind are disconnected.
type streamHub struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	limit   int
	evicted atomic.Int64
}

func newStreamHub(limit int) *streamHub {
	if limit <= 0 {
		limit = defaultWSMaxConnections
	}
	return &streamHub{clients: make(map[*streamClient]struct{}), limit: limit}
}

func (h *streamHub) register(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= h.limit {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *streamHub) unregister(c *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *streamHub) full() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) >= h.limit
}

func (h *streamHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *streamHub) snapshot() []*streamClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *streamHub) publish(ev EventMessage) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	for _, c := range h.snapshot() {
		if !c.filter.match(ev) {
			continue
		}
		if !c.enqueue(frame) {
			h.evicted.Add(1)
			h.unregister(c)
		}
	}
	return nil
}

func (h *streamHub) closeAll() {
	for _, c := range h.snapshot() {
		h.unregister(c)
	}
}

// WebSocketHandler streams process-bus events on /ws/events. Filters may be
// set on connect with ?kinds=lead_added,lead_deleted&user=alice and changed
// later with control messages.
type WebSocketHandler struct {
	log          logger.Logger
	hub          *streamHub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewWebSocketHandler creates a websocket handler.
func NewWebSocketHandler(log logger.Logger, cfg WebSocketConfig) *WebSocketHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	origins := append([]string(nil), cfg.AllowedOrigins...)
	return &WebSocketHandler{
		log:          log,
		hub:          newStreamHub(cfg.MaxConnections),
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return originPermitted(r, origins) },
		},
	}
}

// ServeHTTP upgrades the connection and runs the client until it leaves.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	if h.hub.full() {
		http.Error(w, "websocket connection limit reached", http.StatusServiceUnavailable)
		return
	}

	client := newStreamClient(nil)
	if bad := client.applyQuery(r.URL.Query()); bad != "" {
		http.Error(w, "unknown event kind: "+bad, http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	client.conn = conn
	if !h.hub.register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many websocket connections"),
			time.Now().Add(wsWriteTimeout))
		_ = conn.Close()
		return
	}

	go h.writeLoop(client)
	h.readLoop(client)
}

// applyQuery seeds the filter from the connect URL. It returns the first
// unknown kind, if any.
func (c *streamClient) applyQuery(q url.Values) string {
	for _, raw := range strings.Split(q.Get("kinds"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		kind := events.Kind(raw)
		if !kind.Valid() {
			return raw
		}
		c.filter.add(kind)
	}
	c.filter.follow(strings.TrimSpace(q.Get("user")))
	return ""
}

func (h *WebSocketHandler) readLoop(c *streamClient) {
	defer h.hub.unregister(c)

	deadline := h.pingInterval + h.pongTimeout
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
		if reply, ok := h.control(c, data); ok {
			frame, err := json.Marshal(reply)
			if err == nil && !c.enqueue(frame) {
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeLoop(c *streamClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		h.hub.unregister(c)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteTimeout))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// control applies one client message and returns the reply to send back.
// Frames that are not JSON are ignored.
func (h *WebSocketHandler) control(c *streamClient, raw []byte) (controlReply, bool) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return controlReply{}, false
	}
	op := strings.ToLower(strings.TrimSpace(msg.Type))
	kind := events.Kind(strings.TrimSpace(msg.Kind))

	switch op {
	case "subscribe", "unsubscribe":
		if !kind.Valid() {
			return controlReply{Type: "error", Kind: string(kind), Message: "unknown event kind"}, true
		}
		if op == "subscribe" {
			c.filter.add(kind)
		} else {
			c.filter.remove(kind)
		}
		return controlReply{Type: op + "d", Kind: string(kind)}, true
	case "follow":
		user := strings.TrimSpace(msg.User)
		c.filter.follow(user)
		return controlReply{Type: "following", User: user}, true
	case "ping":
		return controlReply{Type: "pong"}, true
	default:
		return controlReply{Type: "error", Message: "unknown message type"}, true
	}
}

// Broadcast sends ev to every client whose filter matches.
func (h *WebSocketHandler) Broadcast(ev EventMessage) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return h.hub.publish(ev)
}

// Stream forwards broadcaster events to connected clients until ctx is done.
func (h *WebSocketHandler) Stream(ctx context.Context, b *apievents.Broadcaster) {
	b.Forward(ctx, wsSendBuffer*4, func(ev apievents.Event) {
		if err := h.Broadcast(EventMessage(ev)); err != nil {
			h.log.Warn("websocket broadcast failed", "type", ev.Type, "error", err)
		}
	})
}

// Clients returns the number of connected clients.
func (h *WebSocketHandler) Clients() int {
	return h.hub.count()
}

// Evicted returns how many clients were dropped for falling behind.
func (h *WebSocketHandler) Evicted() int64 {
	return h.hub.evicted.Load()
}

// Close disconnects every client.
func (h *WebSocketHandler) Close() {
	h.hub.closeAll()
}

// originPermitted accepts requests without an Origin header, listed
// origins, and same-host origins.
func originPermitted(r *http.Request, allowed []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimSpace(a), origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}
