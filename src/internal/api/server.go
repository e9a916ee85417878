package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/log"
)

// Server represents the HTTP server.
type Server struct {
	handler  http.Handler
	bindAddr string
}

// NewServer creates a new server for deps listening on bindAddr.
func NewServer(bindAddr string, deps Deps) *Server {
	return &Server{
		handler:  NewRouter(deps),
		bindAddr: bindAddr,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. It returns
// nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.bindAddr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.bindAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.bindAddr, err)
	}
	log.Infof("HTTP server listening on http://%s", ln.Addr())

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		log.Infof("Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error during server shutdown: %v", err)
			httpServer.Close()
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Infof("HTTP server stopped")
		return nil
	}
}
