// Package diagnostics exposes an opt-in local HTTP surface for health and
// Prometheus metrics. It is never started unless explicitly configured,
// since the agent is an embedded library, not a service.
package diagnostics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openkit-go/openkit/internal/log"
)

// Config controls whether and where the diagnostics server listens.
type Config struct {
	// Addr is the listen address, e.g. ":9090". Empty disables the server.
	Addr string
}

// HealthFunc reports whether the agent considers itself healthy, used to
// back /healthz.
type HealthFunc func() bool

// Server is the optional local diagnostics HTTP server.
type Server struct {
	httpServer *http.Server
}

// New builds a diagnostics Server. Returns nil if cfg.Addr is empty.
func New(cfg Config, health HealthFunc) *Server {
	if cfg.Addr == "" {
		return nil
	}

	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(50, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if health != nil && !health() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{httpServer: &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start runs the diagnostics server until ctx is cancelled. Intended to be
// run in its own goroutine, typically supervised by an errgroup alongside
// the sender and eviction goroutines.
func (s *Server) Start(ctx context.Context) error {
	logger := log.WithComponent("diagnostics")
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.httpServer.Addr).Msg("diagnostics server starting")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
