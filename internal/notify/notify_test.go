package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventMintConfirmed, " "}, discardLogger())

	if err := n.Notify(context.Background(), EventPresaleStarted, "started", ""); err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), EventMintConfirmed, "minted", ""); err != nil {
		t.Fatal(err)
	}
	if len(s.titles) != 1 || s.titles[0] != "minted" {
		t.Errorf("delivered = %v, want [minted]", s.titles)
	}
}

func TestNotifier_EmptyFilterForwardsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())
	_ = n.Notify(context.Background(), EventDeployed, "deployed", "")
	_ = n.Notify(context.Background(), EventNetworkMismatch, "wrong network", "")
	if len(s.titles) != 2 {
		t.Errorf("delivered %d, want 2", len(s.titles))
	}
}

func TestNotifier_OneSenderFailureDoesNotStopOthers(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordingSender{name: "bad", err: boom}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventMintFailed, "failed", "")
	if !errors.Is(err, boom) {
		t.Errorf("Notify() error = %v, want wrapped boom", err)
	}
	if len(good.titles) != 1 {
		t.Error("second sender was skipped")
	}
}

func TestNotifier_NilAndEmpty(t *testing.T) {
	var n *Notifier
	if n.Enabled(EventDeployed) {
		t.Error("nil notifier reports enabled")
	}
	empty := NewNotifier(nil, nil, discardLogger())
	if err := empty.Notify(context.Background(), EventDeployed, "x", "y"); err != nil {
		t.Errorf("Notify() with no senders error = %v", err)
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL
	if err := s.Send(context.Background(), "Mint confirmed", "token #3"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if got["chat_id"] != "42" || got["text"] != "*Mint confirmed*\ntoken #3" {
		t.Errorf("payload = %v", got)
	}
}

func TestTelegramSender_ErrorHidesToken(t *testing.T) {
	s := NewTelegramSender("SECRET-TOKEN", "42")
	s.baseURL = "http://127.0.0.1:1"
	s.client.RetryMax = 0

	err := s.Send(context.Background(), "t", "m")
	if err == nil {
		t.Fatal("Send() to a closed port succeeded")
	}
	if strings.Contains(err.Error(), "SECRET-TOKEN") {
		t.Errorf("error leaks the token: %v", err)
	}
}

func TestDiscordSender(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"no content", http.StatusNoContent, false},
		{"bad request", http.StatusBadRequest, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewDiscordSender(srv.URL).Send(context.Background(), "Presale started", "ends in 5m")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got["content"] != "**Presale started**\nends in 5m" {
				t.Errorf("content = %q", got["content"])
			}
		})
	}
}
