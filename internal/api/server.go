// Package api exposes the process's liveness probe.
//
// This endpoint must never access engine state: it is a separate
// lightweight HTTP server bound only to the configured port, answering
// "OK" on / and /health regardless of what the Orchestrator Loop is doing.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ladderbot/internal/config"
)

// Server runs the liveness-probe HTTP server.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a health-only API server. It takes no reference to the
// engine or any other component by design.
func NewServer(cfg config.HealthConfig, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
	mux.HandleFunc("/", handler)
	mux.HandleFunc("/health", handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		logger: logger.With("component", "health-server"),
	}
}

// Start begins serving. Blocks until Stop is called or a fatal error occurs.
func (s *Server) Start() error {
	s.logger.Info("health server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping health server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
