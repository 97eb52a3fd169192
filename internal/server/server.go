// Package server exposes the sketch registry over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
	"github.com/Sumatoshi-tech/streamsketch/pkg/config"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// ErrNotReady is reported by /readyz while the server is not accepting work.
var ErrNotReady = errors.New("server is not accepting requests")

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and lifecycle logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracer sets the tracer used by the request middleware.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithREDMetrics records rate, errors and duration per route.
func WithREDMetrics(red *observability.REDMetrics) Option {
	return func(s *Server) {
		s.red = red
	}
}

// WithMetricsHandler mounts a scrape handler at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// Server serves the registry API.
type Server struct {
	reg             *registry.Registry
	logger          *slog.Logger
	tracer          trace.Tracer
	red             *observability.REDMetrics
	metrics         http.Handler
	router          *mux.Router
	shutdownTimeout time.Duration
	ready           atomic.Bool
}

// New builds a server around reg. It is ready as soon as it is created.
func New(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		reg:             reg,
		logger:          slog.Default(),
		tracer:          noop.NewTracerProvider().Tracer(""),
		shutdownTimeout: defaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.ready.Store(true)
	s.router = s.routes()

	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return observability.HTTPMiddleware(s.tracer, s.red, routeOp, next)
	})

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/sketches", s.listSketches).Methods(http.MethodGet)
	api.HandleFunc("/sketches/{name}", s.querySketch).Methods(http.MethodGet)
	api.HandleFunc("/sketches/{name}", s.updateSketch).Methods(http.MethodPost)
	api.HandleFunc("/sketches/{name}", s.resetSketch).Methods(http.MethodDelete)

	r.Handle("/healthz", observability.HealthHandler()).Methods(http.MethodGet)
	r.Handle("/readyz", observability.ReadyHandler(s.readyCheck)).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeError(rw, http.StatusNotFound, "no such route")
	})

	return r
}

func (s *Server) readyCheck(_ context.Context) error {
	if !s.ready.Load() {
		return ErrNotReady
	}

	return nil
}

// routeOp names a request by method and matched route template so that
// /v1/sketches/{name} is one series regardless of the name.
func routeOp(hr *http.Request) string {
	if route := mux.CurrentRoute(hr); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return hr.Method + " " + tpl
		}
	}

	return observability.PathOp(hr)
}

// Run listens on cfg.Addr() and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}

	return s.Serve(ctx, ln, cfg)
}

// Serve serves on ln until ctx is cancelled, then drains in-flight
// requests within the shutdown timeout. Readiness turns false first.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.InfoContext(gctx, "http server listening", "addr", ln.Addr().String())

		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		s.ready.Store(false)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), s.shutdownTimeout)
		defer cancel()

		s.logger.InfoContext(shutdownCtx, "http server shutting down")

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	})

	return g.Wait()
}
