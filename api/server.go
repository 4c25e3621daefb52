// Package api serves the VPD manager's request surface over HTTP.
//
// Routes live under /v1 and take and return JSON. Byte values are base64
// encoded. Failures are returned as {"error", "error_type"} with a status
// derived from the failure class.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pithecene-io/vpd/log"
	"github.com/pithecene-io/vpd/manager"
	"github.com/pithecene-io/vpd/metrics"
	"github.com/pithecene-io/vpd/types"
)

// DefaultListen is the default listen address.
const DefaultListen = "127.0.0.1:8470"

// Service is the part of the manager the API exposes.
type Service interface {
	UpdateKeyword(ctx context.Context, path types.Path, params types.WriteParams) int
	ReadKeyword(ctx context.Context, path types.Path, params types.ReadParams) (types.BinaryVector, error)
	CollectSingleFruVPD(ctx context.Context, invPath types.Path) error
	DeleteSingleFruVPD(ctx context.Context, invPath types.Path) error
	PerformVPDRecollection(ctx context.Context) error
	GetExpandedLocationCode(ctx context.Context, invPath types.Path) (string, error)
	GetHwPath(ctx context.Context, invPath types.Path) (string, error)
	CollectionStatus(ctx context.Context, invPath types.Path) (types.CollectionStatus, error)
	SystemCollectionComplete() bool
	Frus(ctx context.Context) ([]manager.FruStatus, error)
}

var _ Service = (*manager.Manager)(nil)

// Config configures a Server.
type Config struct {
	// Service handles requests (required).
	Service Service
	// Listen is the TCP address (default DefaultListen).
	Listen string
	// Collector is exported on /metrics when set.
	Collector *metrics.Collector
	// Logger is optional.
	Logger *log.Logger
}

// Server is the HTTP request surface.
type Server struct {
	svc     Service
	listen  string
	logger  *log.Logger
	handler http.Handler
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("api: service is required")
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	s := &Server{svc: cfg.Service, listen: cfg.Listen, logger: cfg.Logger}
	s.handler = s.routes(cfg.Collector)
	return s, nil
}

func (s *Server) routes(collector *metrics.Collector) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/keyword/update", s.handleUpdateKeyword)
		r.Post("/keyword/read", s.handleReadKeyword)
		r.Post("/fru/collect", s.handleCollect)
		r.Post("/fru/delete", s.handleDelete)
		r.Post("/recollect", s.handleRecollect)
		r.Get("/fru/location-code", s.handleLocationCode)
		r.Get("/fru/hw-path", s.handleHwPath)
		r.Get("/fru/status", s.handleFruStatus)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if collector != nil {
		reg.MustRegister(collector)
	}
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on the configured address until ctx ends, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.listen, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", map[string]any{"addr": ln.Addr().String()})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}
