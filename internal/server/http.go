package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/insuratask/insuratask/internal/config"
)

// HTTPServer serves the REST API next to the health endpoints.
type HTTPServer struct {
	httpServer *http.Server
	health     *HealthChecker
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewHTTPServer mounts api under / and the health endpoints on their own paths.
func NewHTTPServer(cfg config.ServerConfig, api http.Handler, health *HealthChecker, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	if health != nil {
		health.RegisterHealthEndpoints(mux)
	}
	mux.Handle("/", api)

	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		health: health,
		logger: logger,
	}
}

// Start listens and serves until Shutdown. It blocks.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound address once Start has been called, else the
// configured one.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Shutdown fails readiness and drains open connections.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.health != nil {
		s.health.MarkShuttingDown()
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
