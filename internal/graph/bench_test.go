package graph

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkSimulationTick measures one full tick, tree build included.
func BenchmarkSimulationTick(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		b.Run(fmt.Sprintf("N=%d", n), func(b *testing.B) {
			cfg := DefaultSimulationConfig()
			sim, err := NewSimulation(ringGraph(n), cfg)
			if err != nil {
				b.Fatal(err)
			}
			defer sim.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := sim.Tick(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
