package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/forcegraph/backend/internal/config"
	"github.com/onnwee/forcegraph/backend/internal/graph"
	"github.com/onnwee/forcegraph/backend/internal/logger"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "layout",
		Short:        "Barnes-Hut force-directed graph layout",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logger.SetDefault(logger.New(cmd.ErrOrStderr(), level, false))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchCmd())
	return root
}

// simFlags are the knobs shared by every subcommand. Defaults come from the
// environment, the same way the server reads them.
type simFlags struct {
	theta       float64
	repulsion   float64
	attraction  float64
	concurrency int
	iterations  int
}

func (f *simFlags) register(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().Float64Var(&f.theta, "theta", cfg.Theta, "Barnes-Hut opening threshold (0 = exact)")
	cmd.Flags().Float64Var(&f.repulsion, "repulsion", cfg.RepulsionStrength, "repulsion strength")
	cmd.Flags().Float64Var(&f.attraction, "attraction", cfg.AttractionStrength, "spring strength")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", cfg.ForceConcurrency, "force workers (0 = GOMAXPROCS)")
	cmd.Flags().IntVarP(&f.iterations, "iterations", "n", cfg.LayoutIterations, "ticks to run")
}

func (f *simFlags) simulationConfig(cfg *config.Config) graph.SimulationConfig {
	c := *cfg
	c.Theta = f.theta
	c.RepulsionStrength = f.repulsion
	c.AttractionStrength = f.attraction
	c.ForceConcurrency = f.concurrency
	return c.SimulationConfig()
}

func newRunCmd() *cobra.Command {
	cfg := config.Load()
	var (
		flags  simFlags
		output string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "run [graph.json]",
		Short: "Lay out a graph read from a file or stdin",
		Long: `Lay out a graph and write the settled positions as JSON.

The input has the same shape as the body of POST /api/layout's "graph" field:
{"nodes":[{"id":"a"}],"links":[{"source":"a","target":"b"}]}.
Reads stdin when no file is given or the file is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open graph: %w", err)
				}
				defer f.Close()
				in = f
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return runLayout(cmd, in, out, flags.simulationConfig(cfg), flags.iterations, pretty)
		},
	}
	flags.register(cmd, cfg)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	return cmd
}

func runLayout(cmd *cobra.Command, in io.Reader, out io.Writer, simCfg graph.SimulationConfig, iterations int, pretty bool) error {
	var g graph.Graph
	if err := json.NewDecoder(in).Decode(&g); err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}
	if iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	sim, err := graph.NewSimulation(g, simCfg)
	if err != nil {
		return err
	}
	defer sim.Close()

	start := time.Now()
	var last graph.TickStats
	err = sim.Run(cmd.Context(), iterations, func(st graph.TickStats) error {
		last = st
		logger.Debug("tick", "tick", st.Tick, "depth", st.TreeDepth, "max_displacement", st.MaxDisplacement)
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("layout complete", "nodes", sim.Len(), "ticks", sim.Ticks(), "duration", time.Since(start))

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(graph.LayoutResult{Positions: sim.Positions(), Ticks: sim.Ticks(), LastTick: last})
}

func newBenchCmd() *cobra.Command {
	cfg := config.Load()
	var (
		flags simFlags
		nodes int
		seed  uint64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time ticks on a synthetic random graph",
		Long: `Generate a random graph and report the mean tick time for the configured
theta alongside exact (theta=0) evaluation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if nodes <= 0 || flags.iterations <= 0 {
				return fmt.Errorf("nodes and iterations must be positive")
			}
			g := randomGraph(nodes, seed)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "nodes=%d links=%d iterations=%d\n", len(g.Nodes), len(g.Links), flags.iterations)

			for _, theta := range []float64{flags.theta, 0} {
				f := flags
				f.theta = theta
				perTick, depth, err := benchTicks(cmd, g, f.simulationConfig(cfg), flags.iterations)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "theta=%-5.2f mean_tick=%-12s tree_depth=%d\n", theta, perTick, depth)
				if theta == 0 {
					break
				}
			}
			return nil
		},
	}
	flags.register(cmd, cfg)
	cmd.Flags().Lookup("iterations").DefValue = "20"
	_ = cmd.Flags().Set("iterations", "20")
	cmd.Flags().IntVar(&nodes, "nodes", 2000, "number of nodes to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}

func benchTicks(cmd *cobra.Command, g graph.Graph, simCfg graph.SimulationConfig, iterations int) (time.Duration, int, error) {
	sim, err := graph.NewSimulation(g, simCfg)
	if err != nil {
		return 0, 0, err
	}
	defer sim.Close()

	var total time.Duration
	var depth int
	err = sim.Run(cmd.Context(), iterations, func(st graph.TickStats) error {
		total += st.Duration
		depth = st.TreeDepth
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return total / time.Duration(iterations), depth, nil
}

// randomGraph scatters n nodes over a square sized for unit density and links
// each to one earlier node, giving a random spanning tree.
func randomGraph(n int, seed uint64) graph.Graph {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	side := 10 * math.Sqrt(float64(n))
	g := graph.Graph{Nodes: make([]graph.Node, n)}
	for i := range n {
		x, y := rng.Float64()*side, rng.Float64()*side
		g.Nodes[i] = graph.Node{ID: fmt.Sprintf("n%d", i), X: &x, Y: &y}
		if i > 0 {
			g.Links = append(g.Links, graph.Link{Source: g.Nodes[rng.IntN(i)].ID, Target: g.Nodes[i].ID})
		}
	}
	return g
}
