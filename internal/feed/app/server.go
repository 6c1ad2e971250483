package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/aurasocial/aura/internal/feed/api/httpapi"
	"github.com/aurasocial/aura/internal/feed/storage"
	"github.com/aurasocial/aura/internal/platform/timeouts"
)

// Server hosts the feed HTTP API and the storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      storage.Store
	closeStore func() error
}

// NewServer creates a configured feed server listening on the provided
// port. closeStore releases the store when the server shuts down; pass
// nil for stores without teardown.
func NewServer(port int, service *Service, store storage.Store, closeStore func() error) (*Server, error) {
	return NewServerWithAddr(fmt.Sprintf(":%d", port), service, store, closeStore)
}

// NewServerWithAddr creates a configured feed server for the provided
// address.
func NewServerWithAddr(addr string, service *Service, store storage.Store, closeStore func() error) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	httpapi.RegisterRoutes(mux, service)

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		store:      store,
		closeStore: closeStore,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("feed server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			log.Printf("close feed store: %v", err)
		}
	}
}
