// Package server assembles the layout service and serves it over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/onnwee/forcegraph/backend/internal/api"
	"github.com/onnwee/forcegraph/backend/internal/cache"
	"github.com/onnwee/forcegraph/backend/internal/config"
	"github.com/onnwee/forcegraph/backend/internal/graph"
	"github.com/onnwee/forcegraph/backend/internal/logger"
	"github.com/onnwee/forcegraph/backend/internal/metrics"
	"github.com/onnwee/forcegraph/backend/internal/middleware"
)

const (
	cacheStatsInterval = 15 * time.Second
	shutdownTimeout    = 15 * time.Second
)

type Server struct {
	cfg       *config.Config
	cache     *cache.LRUCache
	collector *metrics.Collector
	limiter   *middleware.RateLimiter
	layout    *graph.Service
	http      *http.Server
}

// NewServer wires the cache, layout service and router from cfg. Call Close
// when the server is not started, Start cleans up after itself.
func NewServer(cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	var c cache.Cache
	if cfg.CacheMaxSizeMB > 0 && cfg.CacheTTL > 0 {
		lru, err := cache.NewLRU(cfg.CacheMaxSizeMB, cfg.CacheMaxEntries, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("layout cache: %w", err)
		}
		s.cache = lru
		s.collector = metrics.NewCollector(lru, "layout", cacheStatsInterval)
		c = lru
	} else {
		logger.Info("layout cache disabled")
	}

	layout, err := graph.NewService(c, cfg.ServiceOptions())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("layout service: %w", err)
	}
	s.layout = layout

	if cfg.EnableRateLimit {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst, cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
	}

	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.Deps{Layout: layout, Config: cfg, Limiter: s.limiter}),
		ReadHeaderTimeout: 10 * time.Second,
		// Layout requests may run up to LayoutTimeout before the body is written.
		WriteTimeout: cfg.LayoutTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start serves on cfg.HTTPAddr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		s.Close()
		return fmt.Errorf("listen %s: %w", s.cfg.HTTPAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	if s.collector != nil {
		go s.collector.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases background workers and the cache. It is idempotent.
func (s *Server) Close() {
	if s.collector != nil {
		s.collector.Stop()
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
		s.cache = nil
	}
}
