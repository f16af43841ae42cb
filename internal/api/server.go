// SPDX-License-Identifier: MIT

// Package api exposes the HTTP control surface: health, Prometheus
// metrics, capability and pool introspection, and a live stats stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mediaforge/framecore/internal/cache"
	"github.com/mediaforge/framecore/internal/codec"
	"github.com/mediaforge/framecore/internal/device"
	"github.com/mediaforge/framecore/internal/log"
	"github.com/mediaforge/framecore/internal/pool"
)

const (
	readHeaderTimeout = 5 * time.Second
	statsInterval     = time.Second
)

// Deps carries the subsystems the API exposes. Nil fields disable the
// corresponding endpoints gracefully rather than panicking.
type Deps struct {
	Pool    *pool.Pool
	Cache   *cache.FrameCache
	Codecs  *codec.Manager
	GPUs    []device.GPU
	Version string
}

// Server wraps the HTTP surface area of the daemon.
type Server struct {
	deps       Deps
	logger     zerolog.Logger
	httpServer *http.Server
}

// New assembles a Server with its routes and middleware.
func New(addr string, deps Deps) *Server {
	s := &Server{
		deps:   deps,
		logger: log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pools", s.handlePools)
		r.Get("/cache", s.handleCache)
		r.Get("/codecs", s.handleCodecs)
		r.Get("/devices", s.handleDevices)
		r.Get("/stats/ws", s.handleStatsWS)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(r, "framecore-api"),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving HTTP until shutdown is requested.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("listener stopped")
	return nil
}

// Shutdown attempts a graceful shutdown within the supplied context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
