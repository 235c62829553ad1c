package force

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/onnwee/forcegraph/backend/internal/quadtree"
)

func ringPoints(n int) []quadtree.Point {
	points := make([]quadtree.Point, n)
	radius := 100.0 * math.Sqrt(float64(n)/1000.0+1)
	for i := range points {
		angle := 2 * math.Pi * float64(i) / float64(n)
		points[i] = quadtree.Point{X: radius * math.Cos(angle), Y: radius * math.Sin(angle), Mass: 1}
	}
	return points
}

// BenchmarkBarnesHutVsBruteForce compares one tick of tree-based repulsion
// against the O(n²) pairwise sum.
func BenchmarkBarnesHutVsBruteForce(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		points := ringPoints(n)
		cfg := DefaultConfig()
		cfg.RepulsionStrength = 10000
		calc := newTestCalculator(b, cfg)

		b.Run(fmt.Sprintf("BarnesHut_N=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				tree, _ := quadtree.New(quadtree.BoundaryFor(points, 0.1))
				_, _ = tree.InsertBatch(points)
				root, _ := tree.Root()
				for _, p := range points {
					_, _ = calc.CalculateForces(p, root)
				}
			}
		})

		b.Run(fmt.Sprintf("Parallel_N=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				tree, _ := quadtree.New(quadtree.BoundaryFor(points, 0.1))
				_, _ = tree.InsertBatch(points)
				root, _ := tree.Root()
				_, _ = calc.CalculateForcesParallel(context.Background(), points, root)
			}
		})

		b.Run(fmt.Sprintf("BruteForce_N=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				for _, p := range points {
					bruteForce(p, points, cfg.RepulsionStrength)
				}
			}
		})
	}
}
