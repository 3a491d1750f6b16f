package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type recordingLimiter struct {
	keys  []string
	allow bool
	err   error
}

func (l *recordingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "10.0.0.7:5123", "10.0.0.7"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.9"},
		{"forwarded garbage", map[string]string{"X-Forwarded-For": "nonsense", "X-Real-IP": "198.51.100.4"}, "10.0.0.1:80", "198.51.100.4"},
		{"bare remote", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimit_Buckets(t *testing.T) {
	tests := []struct {
		method  string
		path    string
		wantKey string
	}{
		{http.MethodGet, "/api/health", ""},
		{http.MethodGet, "/ws", ""},
		{http.MethodGet, "/api/status", "presale:read:192.0.2.1"},
		{http.MethodPost, "/api/actions/public_mint", "presale:actions:192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			lim := &recordingLimiter{allow: true}
			h := RateLimit(lim, 10, time.Minute, discardLogger())(okHandler)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			switch {
			case tt.wantKey == "" && len(lim.keys) != 0:
				t.Errorf("exempt route counted as %v", lim.keys)
			case tt.wantKey != "" && (len(lim.keys) != 1 || lim.keys[0] != tt.wantKey):
				t.Errorf("keys = %v, want [%s]", lim.keys, tt.wantKey)
			}
		})
	}
}

func TestRateLimit_DeniedAndFailOpen(t *testing.T) {
	denied := RateLimit(&recordingLimiter{}, 1, 90*time.Second, discardLogger())(okHandler)
	rec := httptest.NewRecorder()
	denied.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "90" {
		t.Errorf("Retry-After = %q, want 90", got)
	}

	broken := RateLimit(&recordingLimiter{err: errors.New("redis down")}, 1, time.Minute, discardLogger())(okHandler)
	rec = httptest.NewRecorder()
	broken.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status with limiter error = %d, want 200", rec.Code)
	}
}

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		header map[string]string
		want   int
	}{
		{"disabled", "", nil, http.StatusOK},
		{"missing", "k", nil, http.StatusUnauthorized},
		{"header", "k", map[string]string{"X-API-Key": "k"}, http.StatusOK},
		{"bearer", "k", map[string]string{"Authorization": "bearer k"}, http.StatusOK},
		{"wrong", "k", map[string]string{"X-API-Key": "x"}, http.StatusUnauthorized},
		{"basic scheme", "k", map[string]string{"Authorization": "Basic k"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireAPIKey(tt.key, discardLogger())(okHandler)
			r := httptest.NewRequest(http.MethodPost, "/api/actions/connect", nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://Mint.Example/"})(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/api/actions/presale_mint", nil)
	r.Header.Set("Origin", "https://mint.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://mint.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != corsMethods {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("foreign origin: status %d, allow-origin %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestAccessLog_TagsRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/actions/{action}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"transaction reverted"}`))
	})
	h := AccessLog(logger)(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/actions/public_mint", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":    "http request",
		"level":  "WARN",
		"route":  "POST /api/actions/{action}",
		"action": "public_mint",
		"status": float64(http.StatusBadGateway),
		"bytes":  float64(len(`{"error":"transaction reverted"}`)),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
}
