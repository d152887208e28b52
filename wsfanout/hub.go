// Package wsfanout is the WebSocket fan-out layer (spec §4.4). It
// generalizes the teacher's ws.Hub from a single global broadcast channel
// into targeted topic delivery: a client subscribes to the window keys (or
// the signals stream) it cares about, and only those topics' messages ever
// reach its send buffer.
package wsfanout

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/logging"
	"github.com/quantedge/spreadarb/metrics"
)

// TopicGlobal is the wildcard topic: a client subscribed to it receives
// messages published on every topic. Clients not subscribed to it do not
// receive messages published on it. /ws/realtime and /ws/signals subscribe
// their clients to it.
const TopicGlobal = "*"

// Envelope wraps a payload with its message type, matching spec §6.3's
// wire format ({"type": "Spread", "payload": ...}) and grounded on the
// teacher's wscluster.BroadcastMessage shape.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one connected WebSocket peer and its topic subscriptions.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	endpoint string

	mu         sync.Mutex
	topics     map[string]struct{}
	lastSendOK int64 // unix nanos, atomic
}

func newClient(conn *websocket.Conn, endpoint string) *Client {
	return &Client{
		conn:       conn,
		send:       make(chan []byte, 1024),
		endpoint:   endpoint,
		topics:     make(map[string]struct{}),
		lastSendOK: time.Now().UnixNano(),
	}
}

// Subscribe adds topic to the set this client receives. Safe to call
// concurrently with dispatch.
func (c *Client) Subscribe(topic string) {
	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
}

// Unsubscribe removes topic from the client's set.
func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

func (c *Client) subscribedTo(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[TopicGlobal]; ok {
		return true
	}
	_, ok := c.topics[topic]
	return ok
}

// Hub owns the registry of connected clients and performs targeted,
// non-blocking, per-client-serialized delivery for a single named endpoint
// ("/ws/realtime_charts", "/ws/signals", ...). One Hub per endpoint.
type Hub struct {
	endpoint string
	cfg      config.WSConfig
	logger   *logging.Logger

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
}

// New constructs a Hub for one WebSocket endpoint.
func New(endpoint string, cfg config.WSConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO)
	}
	return &Hub{
		endpoint:   endpoint,
		cfg:        cfg,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run processes register/unregister events and periodic dead-client
// eviction until stop is closed. Must run in its own goroutine.
func (h *Hub) Run(stop <-chan struct{}) {
	evictTicker := time.NewTicker(10 * time.Second)
	defer evictTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.WithLabelValues(h.endpoint).Set(float64(n))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.WithLabelValues(h.endpoint).Set(float64(n))
		case <-evictTicker.C:
			h.evictDead()
		}
	}
}

// evictDead drops clients whose last successful send was more than 30s
// ago, per spec §4.4's dead-socket eviction bound.
func (h *Hub) evictDead() {
	cutoff := time.Now().Add(-30 * time.Second).UnixNano()
	h.mu.Lock()
	var dead []*Client
	for c := range h.clients {
		if atomic.LoadInt64(&c.lastSendOK) < cutoff {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if len(dead) > 0 {
		h.logger.Warn("evicted stale websocket clients", logging.Component("wsfanout"), logging.Int("count", len(dead)))
	}
}

// Publish delivers payload to every client subscribed to topic (or to
// TopicGlobal), with a non-blocking, per-client send bounded by the
// configured per-send timeout. A client whose buffer is full or who misses
// the timeout is not disconnected immediately — it simply misses this
// message and is reaped by evictDead if it stays unresponsive.
func (h *Hub) Publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal websocket payload", err, logging.Component("wsfanout"))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribedTo(topic) {
			continue
		}
		h.trySend(c, data)
	}
}

func (h *Hub) trySend(c *Client, data []byte) {
	select {
	case c.send <- data:
		atomic.StoreInt64(&c.lastSendOK, time.Now().UnixNano())
	case <-time.After(h.cfg.PerSendTimeout):
		metrics.WSSendErrors.WithLabelValues(h.endpoint).Inc()
	}
}

// ServeWs upgrades r to a WebSocket, registers the client, subscribes it to
// initialTopics, and runs its read/write pumps. Blocks until the
// connection closes.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, initialTopics ...string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Component("wsfanout"), logging.Any("error", err.Error()))
		return
	}

	c := newClient(conn, h.endpoint)
	for _, t := range initialTopics {
		c.Subscribe(t)
	}
	h.register <- c

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *Client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump handles inbound subscribe/unsubscribe control messages and
// blocks until the peer disconnects or sends an invalid frame.
func (h *Hub) readPump(c *Client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		var msg subscriptionMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Action {
		case "subscribe":
			c.Subscribe(msg.Topic)
		case "unsubscribe":
			c.Unsubscribe(msg.Topic)
		}
	}
}

// subscriptionMessage is the client->server control frame used to change a
// connection's topic subscriptions after it is established.
type subscriptionMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
