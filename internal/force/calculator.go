// Package force evaluates Barnes-Hut repulsion against a quadtree and linear
// spring attraction along edges.
package force

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/forcegraph/backend/internal/quadtree"
)

// Calculator is safe for concurrent use. It holds no per-call state.
type Calculator struct {
	cfg      Config
	disposed atomic.Bool
}

// NewCalculator validates cfg and returns a ready calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Config returns the configuration the calculator was built with.
func (c *Calculator) Config() Config { return c.cfg }

// CalculateForces returns the net repulsion on p from everything under node.
// Regions far enough away (width/distance < theta) and leaves are treated as a
// single mass at their center of mass. Coincident mass contributes nothing.
func (c *Calculator) CalculateForces(p quadtree.Point, node *quadtree.Node) (Force, error) {
	if c.disposed.Load() {
		return Force{}, ErrDisposed
	}
	return c.repulsion(p, node), nil
}

func (c *Calculator) repulsion(p quadtree.Point, node *quadtree.Node) Force {
	if node == nil || node.Mass() == 0 {
		return Force{}
	}

	com := node.CenterOfMass()
	dx := com.X - p.X
	dy := com.Y - p.Y
	distance := math.Sqrt(dx*dx + dy*dy)
	if distance == 0 {
		return Force{}
	}

	if node.IsLeaf() || node.Boundary().Width/distance < c.cfg.Theta {
		f := c.cfg.RepulsionStrength / (distance * distance)
		return Force{
			FX: -f * dx / distance,
			FY: -f * dy / distance,
		}
	}

	var total Force
	for _, child := range node.Children() {
		total = total.Add(c.repulsion(p, child))
	}
	return total
}

// CalculateAttraction is a linear spring pulling e.Source toward e.Target with
// magnitude attraction*distance. The force on the target is the negation.
func (c *Calculator) CalculateAttraction(e Edge) (Force, error) {
	if c.disposed.Load() {
		return Force{}, ErrDisposed
	}
	dx := e.Target.X - e.Source.X
	dy := e.Target.Y - e.Source.Y
	distance := math.Sqrt(dx*dx + dy*dy)
	if distance == 0 {
		return Force{}, nil
	}
	f := c.cfg.AttractionStrength * distance
	return Force{
		FX: f * dx / distance,
		FY: f * dy / distance,
	}, nil
}

// CalculateForcesParallel evaluates CalculateForces for every point, BatchSize
// points per task and at most Concurrency tasks at a time. Results are returned
// in input order. The tree must not be modified while this runs.
//
// Cancelling ctx abandons the remaining work and returns ctx.Err().
func (c *Calculator) CalculateForcesParallel(ctx context.Context, points []quadtree.Point, node *quadtree.Node) ([]Force, error) {
	if c.disposed.Load() {
		return nil, ErrDisposed
	}
	forces := make([]Force, len(points))
	if len(points) == 0 {
		return forces, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for start := 0; start < len(points); start += c.cfg.BatchSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+c.cfg.BatchSize, len(points))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				forces[i] = c.repulsion(points[i], node)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parallel force evaluation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parallel force evaluation: %w", err)
	}
	return forces, nil
}

// Dispose makes every later call fail with ErrDisposed. It is idempotent.
func (c *Calculator) Dispose() {
	c.disposed.Store(true)
}

// Disposed reports whether Dispose has been called.
func (c *Calculator) Disposed() bool {
	return c.disposed.Load()
}
