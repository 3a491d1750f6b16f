package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

// RateLimit caps requests per client IP in a sliding window. Action POSTs
// and reads are counted in separate buckets so polling the status cannot
// starve a mint. Health checks and the WebSocket upgrade are not counted.
// Limiter errors let the request through.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket := rateBucket(r)
			if bucket == "" {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			ok, err := limiter.Allow(r.Context(), "presale:"+bucket+":"+ip, limit, window)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("bucket", bucket),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateBucket names the bucket r is counted in, or "" when it is exempt.
func rateBucket(r *http.Request) string {
	switch {
	case r.URL.Path == "/api/health" || r.URL.Path == "/ws":
		return ""
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/actions/"):
		return "actions"
	default:
		return "read"
	}
}

// ClientIP returns the caller's address. The first valid X-Forwarded-For hop
// wins, then X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
