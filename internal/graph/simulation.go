package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/forcegraph/backend/internal/force"
	"github.com/onnwee/forcegraph/backend/internal/metrics"
	"github.com/onnwee/forcegraph/backend/internal/quadtree"
	"github.com/onnwee/forcegraph/backend/internal/tracing"
)

// boundaryPadding widens the per-tick tree bounds so no node sits on the edge.
const boundaryPadding = 0.1

// SimulationConfig tunes the layout loop around the force engine.
type SimulationConfig struct {
	Force    force.Config
	MaxDepth int
	MinSize  float64
	// Damping is the fraction of velocity kept from one tick to the next.
	Damping float64
	// CenterStrength pulls every node toward (CenterX, CenterY).
	CenterStrength float64
	CenterX        float64
	CenterY        float64
	// MaxSpeed caps per-tick displacement. 0 means uncapped.
	MaxSpeed float64
}

// DefaultSimulationConfig returns the defaults used by the API.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Force:          force.DefaultConfig(),
		MaxDepth:       quadtree.DefaultMaxDepth,
		MinSize:        quadtree.DefaultMinSize,
		Damping:        0.7,
		CenterStrength: 0.01,
		MaxSpeed:       50,
	}
}

// Validate checks everything except Force, which NewCalculator validates.
func (c SimulationConfig) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth %d", ErrInvalidConfig, c.MaxDepth)
	}
	if c.MinSize < 0 || math.IsNaN(c.MinSize) {
		return fmt.Errorf("%w: min size %v", ErrInvalidConfig, c.MinSize)
	}
	if c.Damping < 0 || c.Damping > 1 || math.IsNaN(c.Damping) {
		return fmt.Errorf("%w: damping must be within [0,1], got %v", ErrInvalidConfig, c.Damping)
	}
	if c.CenterStrength < 0 || math.IsNaN(c.CenterStrength) {
		return fmt.Errorf("%w: center strength %v", ErrInvalidConfig, c.CenterStrength)
	}
	if c.MaxSpeed < 0 || math.IsNaN(c.MaxSpeed) {
		return fmt.Errorf("%w: max speed %v", ErrInvalidConfig, c.MaxSpeed)
	}
	return nil
}

// TickStats describes one simulation step.
type TickStats struct {
	Tick            int           `json:"tick"`
	TreeDepth       int           `json:"tree_depth"`
	TreePoints      int           `json:"tree_points"`
	MaxDisplacement float64       `json:"max_displacement"`
	Duration        time.Duration `json:"duration_ns"`
}

type body struct {
	id     string
	x, y   float64
	vx, vy float64
	mass   float64
	fixed  bool
}

type spring struct {
	source, target int
}

// Simulation drives the force engine over a fixed topology. Each Tick builds a
// fresh quadtree from the current positions, evaluates repulsion in parallel,
// adds spring attraction along links and integrates velocities.
//
// A Simulation is not safe for concurrent use.
type Simulation struct {
	cfg     SimulationConfig
	calc    *force.Calculator
	bodies  []body
	springs []spring
	ticks   int
	closed  bool
}

// NewSimulation resolves links against nodes and seeds missing positions.
func NewSimulation(g Graph, cfg SimulationConfig) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	calc, err := force.NewCalculator(cfg.Force)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(g.Nodes))
	bodies := make([]body, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node %d", ErrEmptyNodeID, i)
		}
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID)
		}
		index[n.ID] = i

		x, y := seedPosition(i, cfg.CenterX, cfg.CenterY)
		if n.X != nil && n.Y != nil && isFinite(*n.X) && isFinite(*n.Y) {
			if math.Abs(*n.X) > MaxCoordinate || math.Abs(*n.Y) > MaxCoordinate {
				return nil, fmt.Errorf("%w: %q at (%g, %g)", ErrInvalidPosition, n.ID, *n.X, *n.Y)
			}
			x, y = *n.X, *n.Y
		}
		mass := n.Mass
		if !(mass > 0) || math.IsInf(mass, 0) {
			mass = 1
		}
		bodies[i] = body{id: n.ID, x: x, y: y, mass: mass, fixed: n.Fixed}
	}

	springs := make([]spring, 0, len(g.Links))
	for _, l := range g.Links {
		s, ok := index[l.Source]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, l.Source)
		}
		t, ok := index[l.Target]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, l.Target)
		}
		if s == t {
			continue
		}
		springs = append(springs, spring{source: s, target: t})
	}

	return &Simulation{cfg: cfg, calc: calc, bodies: bodies, springs: springs}, nil
}

// seedPosition places node i on a phyllotaxis spiral, the same arrangement d3
// uses, so unplaced nodes never start coincident.
func seedPosition(i int, cx, cy float64) (float64, float64) {
	const initialRadius = 10.0
	initialAngle := math.Pi * (3 - math.Sqrt(5))
	r := initialRadius * math.Sqrt(0.5+float64(i))
	a := float64(i) * initialAngle
	return cx + r*math.Cos(a), cy + r*math.Sin(a)
}

// Ticks is the number of completed ticks.
func (s *Simulation) Ticks() int { return s.ticks }

// Len is the number of nodes.
func (s *Simulation) Len() int { return len(s.bodies) }

// Tick advances the layout by one step.
func (s *Simulation) Tick(ctx context.Context) (TickStats, error) {
	if s.closed {
		return TickStats{}, ErrClosed
	}
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "graph.Simulation.Tick")
	defer span.End()

	stats := TickStats{Tick: s.ticks + 1}
	if len(s.bodies) == 0 {
		s.ticks++
		return stats, nil
	}

	points := make([]quadtree.Point, len(s.bodies))
	for i, b := range s.bodies {
		points[i] = quadtree.Point{X: b.x, Y: b.y, Mass: b.mass}
	}

	tree, err := quadtree.New(quadtree.BoundaryFor(points, boundaryPadding),
		quadtree.WithMaxDepth(s.cfg.MaxDepth),
		quadtree.WithMinSize(s.cfg.MinSize),
	)
	if err != nil {
		return stats, fmt.Errorf("build tree: %w", err)
	}
	defer tree.Dispose()

	accepted, err := tree.InsertBatch(points)
	if err != nil {
		return stats, fmt.Errorf("insert positions: %w", err)
	}
	if rejected := len(points) - accepted; rejected > 0 {
		metrics.LayoutRejectedPoints.Add(float64(rejected))
	}
	root, err := tree.Root()
	if err != nil {
		return stats, err
	}
	if stats.TreeDepth, err = tree.Depth(); err != nil {
		return stats, err
	}
	if stats.TreePoints, err = tree.TotalPoints(); err != nil {
		return stats, err
	}

	forces, err := s.calc.CalculateForcesParallel(ctx, points, root)
	if err != nil {
		return stats, err
	}
	for _, sp := range s.springs {
		f, err := s.calc.CalculateAttraction(force.Edge{Source: points[sp.source], Target: points[sp.target]})
		if err != nil {
			return stats, err
		}
		forces[sp.source] = forces[sp.source].Add(f)
		forces[sp.target] = forces[sp.target].Add(f.Neg())
	}

	for i := range s.bodies {
		b := &s.bodies[i]
		if b.fixed {
			b.vx, b.vy = 0, 0
			continue
		}
		f := forces[i]
		f.FX += (s.cfg.CenterX - b.x) * s.cfg.CenterStrength
		f.FY += (s.cfg.CenterY - b.y) * s.cfg.CenterStrength

		b.vx = (b.vx + f.FX) * s.cfg.Damping
		b.vy = (b.vy + f.FY) * s.cfg.Damping
		if speed := math.Hypot(b.vx, b.vy); s.cfg.MaxSpeed > 0 && speed > s.cfg.MaxSpeed {
			scale := s.cfg.MaxSpeed / speed
			b.vx *= scale
			b.vy *= scale
		}
		b.x += b.vx
		b.y += b.vy
		stats.MaxDisplacement = math.Max(stats.MaxDisplacement, math.Hypot(b.vx, b.vy))
	}

	s.ticks++
	stats.Duration = time.Since(start)

	metrics.LayoutTicks.Inc()
	metrics.LayoutTickDuration.Observe(stats.Duration.Seconds())
	metrics.LayoutTreeDepth.Set(float64(stats.TreeDepth))
	metrics.LayoutTreePoints.Set(float64(stats.TreePoints))
	span.SetAttributes(
		attribute.Int("layout.tick", stats.Tick),
		attribute.Int("layout.tree_depth", stats.TreeDepth),
		attribute.Int("layout.nodes", len(s.bodies)),
	)
	return stats, nil
}

// Run performs up to iterations ticks, calling onTick after each one. It stops
// early when ctx is cancelled or onTick returns an error.
func (s *Simulation) Run(ctx context.Context, iterations int, onTick func(TickStats) error) error {
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats, err := s.Tick(ctx)
		if err != nil {
			return err
		}
		if onTick != nil {
			if err := onTick(stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// Positions returns a copy of the current node states in input order.
func (s *Simulation) Positions() []Position {
	out := make([]Position, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = Position{ID: b.id, X: b.x, Y: b.y, VX: b.vx, VY: b.vy}
	}
	return out
}

// Close disposes the force calculator. Further ticks fail with ErrClosed.
func (s *Simulation) Close() {
	s.closed = true
	s.calc.Dispose()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
