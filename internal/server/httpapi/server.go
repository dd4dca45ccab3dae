// Package httpapi is the BurnStore's thin request-handling surface: it
// composes the BurnStore and RateLimiter components into the JSON/binary
// HTTP API described in spec.md §6.1. Handlers never
// hold cryptographic key material — every byte they touch is ciphertext,
// a salt, or an IV, exactly as the components beneath them expect.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/zerodrop/zerodrop/internal/logging"
	"github.com/zerodrop/zerodrop/internal/server/config"
	"github.com/zerodrop/zerodrop/internal/server/services"
)

// Deps bundles the components a Server composes into handlers.
type Deps struct {
	Config      *config.Config
	BurnStore   *services.BurnStore
	RateLimiter *services.RateLimiter
	Logger      logging.Logger
}

// Server is the public HTTP listener for the BurnStore API.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer builds a Server ready to Run on deps.Config.EndpointAddr.
func NewServer(deps Deps) *Server {
	h := &handlers{
		store:   deps.BurnStore,
		limiter: deps.RateLimiter,
		cfg:     deps.Config,
		logger:  deps.Logger,
	}

	mux := http.NewServeMux()
	h.register(mux)

	return &Server{
		httpServer: &http.Server{
			Addr:              deps.Config.EndpointAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Run starts serving and blocks until ctx is canceled, then shuts the
// server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http server shutdown error", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
