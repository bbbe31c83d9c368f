// Package server provides HTTP server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tallyhq/pricekeeper/internal/core/config"
)

// HTTPServer manages HTTP server lifecycle.
type HTTPServer struct {
	server *http.Server
	config *config.ServerConfig
	logger *zap.Logger
}

// NewHTTPServer creates an HTTP server around the given handler.
func NewHTTPServer(cfg *config.ServerConfig, handler http.Handler, logger *zap.Logger) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,

		// The router applies the request timeout per route; these bound the
		// connection itself against slow clients.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return &HTTPServer{
		server: srv,
		config: cfg,
		logger: logger,
	}, nil
}

// Start binds the listener and serves HTTP requests.
// Blocks until Shutdown is called; returns nil on graceful shutdown.
func (s *HTTPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}

	s.logger.Info("listening", zap.String("addr", listener.Addr().String()))

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, forcing close after the configured
// shutdown timeout.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(drainCtx); err != nil {
		// Shutdown returned before the drain finished; close the remaining
		// connections rather than leak them.
		closeErr := s.server.Close()
		if closeErr != nil {
			return fmt.Errorf("graceful shutdown failed: %w (forced close: %v)", err, closeErr)
		}
		return fmt.Errorf("graceful shutdown timeout, forced close: %w", err)
	}
	return nil
}
