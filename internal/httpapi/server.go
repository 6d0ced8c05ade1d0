// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// Server serves the public API endpoints.
type Server struct {
	addr       string
	handler    *AuthHandler
	listener   net.Listener
	httpServer *http.Server
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer creates a new API server with a no-op logger.
// addr: listen address in "host:port" format (e.g., ":8081").
func NewServer(addr string, handler *AuthHandler) (*Server, error) {
	if handler == nil {
		return nil, oops.Errorf("auth handler is required")
	}
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  slog.New(slog.DiscardHandler),
	}, nil
}

// NewServerWithLogger creates a new API server with the provided logger.
func NewServerWithLogger(addr string, handler *AuthHandler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	s, err := NewServer(addr, handler)
	if err != nil {
		return nil, err
	}
	s.logger = logger
	return s, nil
}

// Start begins serving API requests. It returns an error channel that
// receives any error from the HTTP server after it starts; the channel is
// closed when the server stops gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	s.handler.Register(mux)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
