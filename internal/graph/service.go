package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/onnwee/forcegraph/backend/internal/cache"
	"github.com/onnwee/forcegraph/backend/internal/logger"
	"github.com/onnwee/forcegraph/backend/internal/metrics"
	"github.com/onnwee/forcegraph/backend/internal/tracing"
)

const cacheEndpoint = "layout"

// ServiceOptions bounds what a single request may ask for.
type ServiceOptions struct {
	Simulation        SimulationConfig
	MaxNodes          int
	DefaultIterations int
	MaxIterations     int
	CacheTTL          time.Duration
}

// LayoutRequest asks for iterations ticks over Graph. Iterations 0 selects the
// service default.
type LayoutRequest struct {
	Graph      Graph `json:"graph"`
	Iterations int   `json:"iterations,omitempty"`
}

// LayoutResult is the settled state returned to clients.
type LayoutResult struct {
	Positions []Position `json:"positions"`
	Ticks     int        `json:"ticks"`
	LastTick  TickStats  `json:"last_tick"`
	Cached    bool       `json:"cached"`
}

// Service computes layouts and caches finished results.
type Service struct {
	cache cache.Cache
	opts  ServiceOptions
	log   *slog.Logger
}

// NewService returns a layout service. c may be nil to disable caching.
func NewService(c cache.Cache, opts ServiceOptions) (*Service, error) {
	if err := opts.Simulation.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Simulation.Force.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxNodes <= 0 || opts.DefaultIterations <= 0 || opts.MaxIterations < opts.DefaultIterations {
		return nil, fmt.Errorf("%w: max nodes %d, iterations %d/%d",
			ErrInvalidConfig, opts.MaxNodes, opts.DefaultIterations, opts.MaxIterations)
	}
	return &Service{
		cache: c,
		opts:  opts,
		log:   logger.WithComponent("layout"),
	}, nil
}

// Options returns the service limits.
func (s *Service) Options() ServiceOptions { return s.opts }

func (s *Service) iterations(req LayoutRequest) (int, error) {
	switch {
	case req.Iterations < 0:
		return 0, fmt.Errorf("%w: iterations must not be negative", ErrInvalidConfig)
	case req.Iterations == 0:
		return s.opts.DefaultIterations, nil
	case req.Iterations > s.opts.MaxIterations:
		return 0, fmt.Errorf("%w: iterations %d exceeds limit %d", ErrInvalidConfig, req.Iterations, s.opts.MaxIterations)
	}
	return req.Iterations, nil
}

// NewSimulation validates req against the service limits and builds a
// simulation for it. Callers must Close the result.
func (s *Service) NewSimulation(req LayoutRequest) (*Simulation, int, error) {
	if n := len(req.Graph.Nodes); n > s.opts.MaxNodes {
		return nil, 0, fmt.Errorf("%w: %d nodes, limit %d", ErrTooManyNodes, n, s.opts.MaxNodes)
	}
	iters, err := s.iterations(req)
	if err != nil {
		return nil, 0, err
	}
	sim, err := NewSimulation(req.Graph, s.opts.Simulation)
	if err != nil {
		return nil, 0, err
	}
	return sim, iters, nil
}

// ComputeLayout runs the simulation to completion, or returns a cached result
// for an identical request.
func (s *Service) ComputeLayout(ctx context.Context, req LayoutRequest) (*LayoutResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Service.ComputeLayout")
	defer span.End()
	span.SetAttributes(
		attribute.Int("layout.nodes", len(req.Graph.Nodes)),
		attribute.Int("layout.links", len(req.Graph.Links)),
	)

	sim, iters, err := s.NewSimulation(req)
	if err != nil {
		metrics.LayoutRuns.WithLabelValues("failed").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer sim.Close()
	metrics.LayoutNodes.Observe(float64(sim.Len()))

	key, keyErr := s.cacheKey(req.Graph, iters)
	if keyErr != nil {
		s.log.WarnContext(ctx, "layout cache key failed", "error", keyErr)
	}
	if res, ok := s.lookup(key); ok {
		metrics.LayoutRuns.WithLabelValues("cached").Inc()
		span.SetAttributes(attribute.Bool("layout.cached", true))
		return res, nil
	}

	start := time.Now()
	var last TickStats
	err = sim.Run(ctx, iters, func(st TickStats) error {
		last = st
		return nil
	})
	if err != nil {
		status := "failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = "cancelled"
		}
		metrics.LayoutRuns.WithLabelValues(status).Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	elapsed := time.Since(start)
	metrics.LayoutRuns.WithLabelValues("success").Inc()
	metrics.LayoutRunDuration.Observe(elapsed.Seconds())

	res := &LayoutResult{Positions: sim.Positions(), Ticks: sim.Ticks(), LastTick: last}
	s.store(key, res)

	s.log.InfoContext(ctx, "layout computed",
		"nodes", sim.Len(),
		"links", len(req.Graph.Links),
		"ticks", res.Ticks,
		"tree_depth", last.TreeDepth,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (s *Service) cacheKey(g Graph, iters int) (string, error) {
	if s.cache == nil {
		return "", nil
	}
	body, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	sim, err := json.Marshal(s.opts.Simulation)
	if err != nil {
		return "", err
	}
	return cache.Key(cacheEndpoint, body, sim, []byte(strconv.Itoa(iters))), nil
}

func (s *Service) lookup(key string) (*LayoutResult, bool) {
	if key == "" {
		return nil, false
	}
	raw, ok := s.cache.Get(key)
	if !ok {
		metrics.APICacheMisses.WithLabelValues(cacheEndpoint).Inc()
		return nil, false
	}
	var res LayoutResult
	if err := json.Unmarshal(raw, &res); err != nil {
		s.log.Warn("dropping corrupt cached layout", "error", err)
		s.cache.Delete(key)
		metrics.APICacheMisses.WithLabelValues(cacheEndpoint).Inc()
		return nil, false
	}
	metrics.APICacheHits.WithLabelValues(cacheEndpoint).Inc()
	res.Cached = true
	return &res, true
}

func (s *Service) store(key string, res *LayoutResult) {
	if key == "" {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		s.log.Warn("layout not cached", "error", err)
		return
	}
	s.cache.Set(key, raw, s.opts.CacheTTL)
}
