// Package server provides the HTTP server lifecycle management for Daybook.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/daybook/daybook/internal/api"
	"github.com/daybook/daybook/internal/service"
	"github.com/daybook/daybook/internal/storage"
)

const (
	// DefaultAddress is the default address the server listens on.
	DefaultAddress = "localhost:7633"
	// DefaultShutdownTimeout is the default timeout for graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds what the server needs to run.
type Config struct {
	// Addr is host:port; empty means DefaultAddress.
	Addr     string
	Services *service.Services
	// Store is closed once the HTTP server has drained.
	Store  storage.Store
	Logger *slog.Logger
	// ShutdownTimeout bounds graceful shutdown after a signal.
	ShutdownTimeout time.Duration
	// OnShutdown runs after the store is closed, e.g. to flush telemetry.
	OnShutdown []func(context.Context) error
}

// Server manages the HTTP server lifecycle.
type Server struct {
	httpServer      *http.Server
	store           storage.Store
	logger          *slog.Logger
	shutdownTimeout time.Duration
	onShutdown      []func(context.Context) error
	listener        net.Listener
	mu              sync.Mutex
	started         bool
}

// New creates a new Server instance.
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddress
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      api.NewRouter(cfg.Services, log),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:           cfg.Store,
		logger:          log,
		shutdownTimeout: timeout,
		onShutdown:      cfg.OnShutdown,
	}
}

// Start starts the HTTP server and blocks until the server is shut down.
// It returns http.ErrServerClosed when the server is gracefully shut down.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}

	// Create listener first so we know the actual address (for port 0 case)
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.listener = ln
	s.started = true
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", ln.Addr().String())

	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server without interrupting active
// connections, then closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("error closing store", "err", err)
			errs = append(errs, err)
		}
	}
	for _, fn := range s.onShutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("server stopped")
	return errors.Join(errs...)
}

// Addr returns the address the server is listening on.
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ListenAndServe starts the server and shuts it down gracefully on SIGINT,
// SIGTERM or when ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		s.logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
