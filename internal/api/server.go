package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server wraps the HTTP listener and the pipeline's background anchor
// scheduler so cmd/vcpd's serve command has one thing to start and stop.
type Server struct {
	http     *http.Server
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewServer builds a Server bound to addr, serving p's routes.
func NewServer(addr string, p *Pipeline) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(p),
			ReadHeaderTimeout: 10 * time.Second,
		},
		pipeline: p,
		logger:   p.Logger,
	}
}

// Start begins serving HTTP and the anchor scheduler's ticking loop. It
// blocks until the listener stops (Shutdown was called, or a fatal
// listen error occurred).
func (s *Server) Start() error {
	s.pipeline.Scheduler.Start()
	s.logger.Info("vcpd listening", "addr", s.http.Addr, "tier", s.pipeline.Tier)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the anchor scheduler and drains in-flight HTTP requests
// within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.pipeline.Scheduler.Stop()
	return s.http.Shutdown(ctx)
}
