// Package ws pushes sale status updates to browser clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxControlSize = 4096
	sendQueue      = 32
)

// Frame types carried in the "type" field of every binary frame.
const (
	FrameSnapshot = "sale_snapshot"
	FrameUpdate   = "sale_update"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers on the dApp origin connect directly; CORS does not apply to
	// the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Config configures a Hub.
type Config struct {
	// Channels are the bus channels forwarded to clients.
	Channels []string
	// Snapshot returns the JSON document sent to a client right after it
	// connects and whenever it asks for one. Nil disables snapshots.
	Snapshot func() []byte
}

// Hub fans sale updates from the signal bus out to WebSocket clients. Every
// frame is a binary protobuf google.protobuf.Struct of the form
// {"type": ..., "channel": ..., "payload": {...}}.
//
// A client whose queue is full is disconnected instead of silently missing
// updates; on reconnect it receives a fresh snapshot.
type Hub struct {
	bus      domain.SignalBus
	channels []string
	snapshot func() []byte
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub that bridges bus to connected clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	return &Hub{
		bus:      bus,
		channels: cfg.Channels,
		snapshot: cfg.Snapshot,
		logger:   logger.With(slog.String("component", "ws_hub")),
		clients:  make(map[*client]struct{}),
	}
}

// Run subscribes to the configured channels and forwards their messages
// until ctx is cancelled. It then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, channel := range h.channels {
		msgs, err := h.bus.Subscribe(ctx, channel)
		if err != nil {
			h.logger.ErrorContext(ctx, "ws: subscribe failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.forward(ctx, channel, msgs)
		}()
	}

	<-ctx.Done()
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	wg.Wait()
	return ctx.Err()
}

func (h *Hub) forward(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				return
			}
			frame, err := EncodeFrame(FrameUpdate, channel, data)
			if err != nil {
				h.logger.WarnContext(ctx, "ws: dropping undecodable update",
					slog.String("channel", channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			h.deliver(channel, frame)
		}
	}
}

// deliver queues frame for every client following channel.
func (h *Hub) deliver(channel string, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.isSubscribed(channel) {
			continue
		}
		if !c.enqueue(frame) {
			h.logger.Warn("ws: client too slow, disconnecting")
			h.dropLocked(c)
		}
	}
}

// dropLocked removes c and closes its queue. h.mu must be held.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client disconnected", slog.Int("clients", n))
}

// snapshotFrame encodes the current status, or returns nil.
func (h *Hub) snapshotFrame() []byte {
	if h.snapshot == nil {
		return nil
	}
	channel := ""
	if len(h.channels) > 0 {
		channel = h.channels[0]
	}
	frame, err := EncodeFrame(FrameSnapshot, channel, h.snapshot())
	if err != nil {
		h.logger.Warn("ws: encode snapshot failed", slog.String("error", err.Error()))
		return nil
	}
	return frame
}

// resend queues a fresh snapshot for a connected client.
func (h *Hub) resend(c *client) {
	frame := h.snapshotFrame()
	if frame == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok && !c.enqueue(frame) {
		h.dropLocked(c)
	}
}

// HandleWS upgrades the request and starts streaming to the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(conn, h.channels)
	if frame := h.snapshotFrame(); frame != nil {
		c.enqueue(frame)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client connected", slog.Int("clients", n))

	go c.writeLoop()
	go c.readLoop(h)
}

// EncodeFrame wraps a JSON object payload in the hub's protobuf envelope.
func EncodeFrame(kind, channel string, payload []byte) ([]byte, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("ws: decode payload: %w", err)
	}
	s, err := structpb.NewStruct(map[string]any{
		"type":    kind,
		"channel": channel,
		"payload": body,
	})
	if err != nil {
		return nil, fmt.Errorf("ws: build frame: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(frame []byte) (kind, channel string, payload map[string]any, err error) {
	var s structpb.Struct
	if err := proto.Unmarshal(frame, &s); err != nil {
		return "", "", nil, fmt.Errorf("ws: decode frame: %w", err)
	}
	m := s.AsMap()
	kind, _ = m["type"].(string)
	channel, _ = m["channel"].(string)
	payload, _ = m["payload"].(map[string]any)
	return kind, channel, payload, nil
}

// controlMsg is a JSON text frame sent by a client. Actions are "subscribe",
// "unsubscribe" and "snapshot".
type controlMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs map[string]bool
}

func newClient(conn *websocket.Conn, channels []string) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendQueue),
		subs: make(map[string]bool, len(channels)),
	}
	for _, ch := range channels {
		c.subs[ch] = true
	}
	return c
}

// enqueue reports false when the queue is full. The caller must make sure
// send is still open.
func (c *client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// isSubscribed reports whether the client follows channel. A trailing "*"
// follows every channel with that prefix.
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

func (c *client) apply(msg controlMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range msg.Channels {
		switch msg.Action {
		case "subscribe":
			c.subs[ch] = true
		case "unsubscribe":
			delete(c.subs, ch)
		}
	}
}

func (c *client) readLoop(h *Hub) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxControlSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws: read failed", slog.String("error", err.Error()))
			}
			return
		}
		var msg controlMsg
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.Action == "snapshot" {
			h.resend(c)
			continue
		}
		c.apply(msg)
	}
}

func (c *client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
