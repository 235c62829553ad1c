package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/onnwee/forcegraph/backend/internal/cache"
	"github.com/onnwee/forcegraph/backend/internal/graph"
)

func testService(t *testing.T, c cache.Cache) *graph.Service {
	t.Helper()
	sim := graph.DefaultSimulationConfig()
	sim.Force.Concurrency = 2
	sim.Force.BatchSize = 4
	svc, err := graph.NewService(c, graph.ServiceOptions{
		Simulation:        sim,
		MaxNodes:          20,
		DefaultIterations: 10,
		MaxIterations:     500,
		CacheTTL:          time.Minute,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func chainGraph(n int) graph.Graph {
	g := graph.Graph{}
	for i := range n {
		g.Nodes = append(g.Nodes, graph.Node{ID: fmt.Sprintf("n%d", i)})
		if i > 0 {
			g.Links = append(g.Links, graph.Link{Source: fmt.Sprintf("n%d", i-1), Target: fmt.Sprintf("n%d", i)})
		}
	}
	return g
}

// failingComputer returns err from every call.
type failingComputer struct {
	err error
}

func (f failingComputer) ComputeLayout(context.Context, graph.LayoutRequest) (*graph.LayoutResult, error) {
	return nil, f.err
}

func (f failingComputer) Options() graph.ServiceOptions {
	return graph.ServiceOptions{MaxNodes: 20}
}
