package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows which routes it serves.
type Handler interface {
	http.Handler
	Routes() []Route
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route the handler declares
	Routes() []Route                                  // Routes lists what has been registered
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server runs a [Router] on a local address until shut down.
type Server struct {
	addr   string
	logger *log.Logger
	srv    *http.Server

	mu       sync.Mutex
	listener net.Listener
	done     chan error
}

// NewServer creates a [Server] for addr. Port 0 picks a free port.
func NewServer(addr string, router http.Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NopLogger()
	}

	return &Server{
		addr:   addr,
		logger: logger,
		srv: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start binds the address and serves in the background. Bind errors are returned immediately.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server already started on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.done = make(chan error, 1)
	s.logger.Debug("callback server listening", "addr", ln.Addr().String())

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
		close(s.done)
	}()

	return nil
}

// Addr returns the bound address, or the configured one before [Server.Start].
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting connections and waits for in-flight requests or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down callback server: %w", err)
	}

	return <-done
}

// RequestLogger logs each request at debug level. Query strings are never logged.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
