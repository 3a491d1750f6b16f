package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/presalebot/internal/config"
	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/alanyoungcy/presalebot/internal/service"
)

type memBlob struct {
	mu   sync.Mutex
	keys []string
}

func (m *memBlob) Put(_ context.Context, key string, _ io.Reader, _ string) error {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()
	return nil
}

func (m *memBlob) Exists(context.Context, string) (bool, error) { return false, nil }

// syncBuffer is a bytes.Buffer safe for a logger and a test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testApp(out io.Writer) *App {
	cfg := config.Defaults()
	cfg.Mode = "publish"
	cfg.Metadata.MaxTokens = 3
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Out: out})
}

func TestNeedsS3(t *testing.T) {
	tests := []struct {
		mode string
		want bool
	}{
		{"publish", true},
		{"full", true},
		{"watch", false},
		{"deploy", false},
	}
	for _, tt := range tests {
		if got := needsS3(tt.mode); got != tt.want {
			t.Errorf("needsS3(%q) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestPublishMode(t *testing.T) {
	var out bytes.Buffer
	blob := &memBlob{}
	a := testApp(&out)

	if err := a.PublishMode(context.Background(), &Dependencies{BlobWriter: blob, BlobReader: blob}); err != nil {
		t.Fatalf("PublishMode() error = %v", err)
	}
	if len(blob.keys) != 3 || blob.keys[0] != "metadata/1" {
		t.Errorf("keys = %v", blob.keys)
	}
	if !strings.Contains(out.String(), "Published 3 documents") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPublishMode_RequiresS3(t *testing.T) {
	a := testApp(io.Discard)
	if err := a.PublishMode(context.Background(), &Dependencies{}); err == nil {
		t.Error("PublishMode() without s3 succeeded")
	}
}

func TestWire_NothingConfigured(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Wire() error = %v", err)
	}
	defer cleanup()

	if deps.MintStore != nil || deps.SignalBus != nil || deps.BlobWriter != nil {
		t.Errorf("unexpected infrastructure wired: %+v", deps)
	}
	if deps.Notifier == nil {
		t.Error("Notifier is nil")
	}
}

func TestLogUpdates_KeepsUpdatesPublishedBeforeItRuns(t *testing.T) {
	var logs syncBuffer
	cfg := config.Defaults()
	a := New(&cfg, slog.New(slog.NewJSONHandler(&logs, nil)), Options{Out: io.Discard})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := service.NewMemoryBus()
	updates, err := subscribeUpdates(ctx, bus)
	if err != nil {
		t.Fatalf("subscribeUpdates() error = %v", err)
	}

	payload, err := json.Marshal(service.SaleUpdate{Event: "wallet_connected", Phase: domain.PhasePresaleActive})
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(ctx, service.SaleChannel, payload); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.logUpdates(ctx, updates) }()

	deadline := time.After(2 * time.Second)
	for !strings.Contains(logs.String(), `"event":"wallet_connected"`) {
		select {
		case <-deadline:
			t.Fatalf("wallet_connected update not logged, logs = %s", logs.String())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("logUpdates() error = %v", err)
	}
}
