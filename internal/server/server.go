package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/alanyoungcy/presalebot/internal/server/handler"
	"github.com/alanyoungcy/presalebot/internal/server/middleware"
	"github.com/alanyoungcy/presalebot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Mints may be nil when no database is configured.
type Handlers struct {
	Health   *handler.HealthHandler
	Sale     *handler.SaleHandler
	Metadata *handler.MetadataHandler
	Mints    *handler.MintHandler
}

// Server is the HTTP + WebSocket API of the presale.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// Status, health and metadata are public; actions and mint history sit
// behind the API key. limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newHandler(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // actions block until confirmation
		IdleTimeout:  60 * time.Second,
	}
	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

func newHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	protected := middleware.RequireAPIKey(cfg.APIKey, logger)

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Sale.GetStatus)
	mux.HandleFunc("GET /api/metadata/{tokenId}", handlers.Metadata.GetMetadata)

	mux.Handle("POST /api/actions/{action}", protected(http.HandlerFunc(handlers.Sale.PostAction)))

	if handlers.Mints != nil {
		mux.Handle("GET /api/mints", protected(http.HandlerFunc(handlers.Mints.ListMints)))
		mux.Handle("GET /api/mints/{id}", protected(http.HandlerFunc(handlers.Mints.GetMint)))
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.AccessLog(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
