// Package api serves the optional debug HTTP surface for a running harvest:
// health, Prometheus metrics, and a live stats snapshot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StatsFunc returns the snapshot served at /stats.
type StatsFunc func() any

// Server wraps the debug HTTP listener.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds the router. statsFn may be nil.
func NewServer(listen string, statsFn StatsFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var snapshot any
		if statsFn != nil {
			snapshot = statsFn()
		}
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			logger.Warn("encode stats snapshot failed", zap.Error(err))
		}
	})

	return &Server{
		srv: &http.Server{
			Addr:              listen,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("debug server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("debug server exited", zap.Error(err))
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
