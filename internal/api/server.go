// Package api exposes the HTTP/JSON control surface over the session
// manager, plus a WebSocket stream of live session snapshots and the
// Prometheus metrics endpoint. Every route maps 1:1 onto a core control
// operation; the transport adds nothing beyond JSON framing.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mmsim/internal/config"
	"mmsim/internal/metrics"
	"mmsim/internal/session"
	"mmsim/pkg/types"
)

// Server runs the HTTP/WebSocket API.
type Server struct {
	cfg      config.ServerConfig
	manager  *session.Manager
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer wires the mux: control routes, the live stream, health, and
// metrics (when enabled).
func NewServer(
	cfg config.ServerConfig,
	manager *session.Manager,
	reports ReportLister,
	defaults types.ParamBundle,
	mets *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(manager, reports, defaults, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.HandleFunc("POST /api/sessions", handlers.HandleStart)
	mux.HandleFunc("POST /api/sessions/{id}/poll", handlers.HandlePoll)
	mux.HandleFunc("POST /api/sessions/{id}/stop", handlers.HandleStop)
	mux.HandleFunc("POST /api/sessions/{id}/trade", handlers.HandleTrade)
	mux.HandleFunc("POST /api/sessions/{id}/reset", handlers.HandleReset)
	mux.HandleFunc("PUT /api/sessions/{id}/params", handlers.HandleUpdateParams)
	mux.HandleFunc("GET /api/sessions/{id}/report", handlers.HandleReport)
	mux.HandleFunc("GET /api/reports", handlers.HandleReports)
	mux.HandleFunc("GET /ws", handlers.HandleWebSocket(cfg.AllowedOrigins))
	if mets != nil {
		mux.Handle("GET /metrics", mets.Handler())
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		manager:  manager,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start serves HTTP and runs the hub and the snapshot broadcaster until
// ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run()
	go s.broadcastLoop(ctx)

	s.logger.Info("api server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// broadcastLoop pushes a snapshot frame of every session to the hub at
// the configured interval. Snapshots never advance session time; only
// poll does.
func (s *Server) broadcastLoop(ctx context.Context) {
	interval := s.cfg.StreamInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.BroadcastSnapshots(s.manager.Snapshots())
		}
	}
}

// originAllowed checks a WebSocket origin against the allow list. Empty
// origins (non-browser clients) and same-host origins are accepted.
func originAllowed(origin string, allowed []string, host string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, host) {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
