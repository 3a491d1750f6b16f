package ws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/presalebot/internal/service"
)

func TestEncodeDecodeFrame(t *testing.T) {
	frame, err := EncodeFrame(FrameUpdate, "ch:sale", []byte(`{"phase":"presale_active","status":{"minted_count":3}}`))
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	kind, channel, payload, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if kind != FrameUpdate || channel != "ch:sale" {
		t.Errorf("kind, channel = %q, %q", kind, channel)
	}
	if payload["phase"] != "presale_active" {
		t.Errorf("payload phase = %v", payload["phase"])
	}
	status, _ := payload["status"].(map[string]any)
	if status["minted_count"] != float64(3) {
		t.Errorf("minted_count = %v, want 3", status["minted_count"])
	}
}

func TestEncodeFrame_RejectsNonObject(t *testing.T) {
	if _, err := EncodeFrame(FrameUpdate, "ch:sale", []byte(`[1,2]`)); err == nil {
		t.Error("EncodeFrame() accepted a JSON array")
	}
}

func TestIsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{"ch:sale": true, "ch:mint:*": true}}
	tests := []struct {
		channel string
		want    bool
	}{
		{"ch:sale", true},
		{"ch:mint:0xabc", true},
		{"ch:other", false},
	}
	for _, tt := range tests {
		if got := c.isSubscribed(tt.channel); got != tt.want {
			t.Errorf("isSubscribed(%q) = %v, want %v", tt.channel, got, tt.want)
		}
	}
}

func TestHub_SnapshotThenUpdates(t *testing.T) {
	bus := service.NewMemoryBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(bus, logger, Config{
		Channels: []string{service.SaleChannel},
		Snapshot: func() []byte { return []byte(`{"phase":"disconnected"}`) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	msgType, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", msgType)
	}
	kind, _, payload, err := DecodeFrame(frame)
	if err != nil || kind != FrameSnapshot || payload["phase"] != "disconnected" {
		t.Fatalf("snapshot = %q %v (%v)", kind, payload, err)
	}

	// The hub subscribes asynchronously; publish until an update arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = bus.Publish(ctx, service.SaleChannel, []byte(`{"phase":"presale_active"}`))
			}
		}
	}()

	_, frame, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read update: %v", err)
	}
	kind, channel, payload, err := DecodeFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if kind != FrameUpdate || channel != service.SaleChannel || payload["phase"] != "presale_active" {
		t.Errorf("update = %q %q %v", kind, channel, payload)
	}
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	hub := NewHub(service.NewMemoryBus(), slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Channels: []string{service.SaleChannel},
	})
	c := newClient(nil, []string{service.SaleChannel})
	other := newClient(nil, []string{"ch:other"})
	hub.clients[c] = struct{}{}
	hub.clients[other] = struct{}{}

	for i := 0; i < sendQueue; i++ {
		hub.deliver(service.SaleChannel, []byte{byte(i)})
	}
	if _, ok := hub.clients[c]; !ok {
		t.Fatal("client dropped before its queue was full")
	}

	hub.deliver(service.SaleChannel, []byte("overflow"))
	if _, ok := hub.clients[c]; ok {
		t.Error("slow client still registered")
	}
	if _, ok := hub.clients[other]; !ok {
		t.Error("client on another channel was dropped")
	}

	n := 0
	for range c.send {
		n++
	}
	if n != sendQueue {
		t.Errorf("queued frames = %d, want %d", n, sendQueue)
	}
}

func TestHub_SnapshotOnRequest(t *testing.T) {
	var calls int32
	hub := NewHub(service.NewMemoryBus(), slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Channels: []string{service.SaleChannel},
		Snapshot: func() []byte {
			n := atomic.AddInt32(&calls, 1)
			return []byte(fmt.Sprintf(`{"seq":%d}`, n))
		},
	})

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read first snapshot: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"snapshot"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read second snapshot: %v", err)
	}
	kind, _, payload, err := DecodeFrame(frame)
	if err != nil || kind != FrameSnapshot || payload["seq"] != float64(2) {
		t.Errorf("second snapshot = %q %v (%v)", kind, payload, err)
	}
}
