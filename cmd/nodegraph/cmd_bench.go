package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-nodegraph/pkg/graph"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

var (
	benchItems   int
	benchRounds  int
	benchWorkers []int
	benchChunk   int

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Measure elementwise speedup across worker counts",
		Long: `Evaluates range -> sqrt -> sum over a long list with increasing
worker counts. The cache is cleared between rounds so every round
recomputes the whole network.`,
		Args: cobra.NoArgs,
		RunE: runBench,
	}
)

func init() {
	benchCmd.Flags().IntVar(&benchItems, "items", 200000, "list length")
	benchCmd.Flags().IntVar(&benchRounds, "rounds", 5, "evaluations per worker count")
	benchCmd.Flags().IntSliceVar(&benchWorkers, "worker-counts", []int{1, 2, 4, runtime.NumCPU()}, "worker counts to compare")
	benchCmd.Flags().IntVar(&benchChunk, "chunk", 0, "items per task (0 = config)")
}

// benchStats is the outcome of one worker count
type benchStats struct {
	Workers    int
	Duration   time.Duration
	Throughput float64
	Result     value.Value
}

func runBench(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s\n", titleStyle.Render("Elementwise Evaluation Benchmark"))
	fmt.Fprintf(out, "======================================\n\n")
	fmt.Fprintf(out, "Configuration:\n")
	fmt.Fprintf(out, "  Items:       %d\n", benchItems)
	fmt.Fprintf(out, "  Rounds:      %d\n", benchRounds)
	fmt.Fprintf(out, "  CPU Cores:   %d\n", runtime.NumCPU())
	fmt.Fprintf(out, "  Workers:     %v\n\n", benchWorkers)

	lib, err := benchLibrary(app.reg, benchItems)
	if err != nil {
		return err
	}

	var results []benchStats
	for _, w := range benchWorkers {
		st, err := benchWorkerCount(cmd.Context(), lib, w)
		if err != nil {
			return err
		}
		results = append(results, st)

		fmt.Fprintf(out, "Workers %d\n", w)
		fmt.Fprintf(out, "   Duration:      %s\n", st.Duration)
		fmt.Fprintf(out, "   Throughput:    %.0f items/sec\n", st.Throughput)
		if len(results) > 1 {
			fmt.Fprintf(out, "   Speedup:       %.2fx\n", speedup(results[0], st))
		}
		fmt.Fprintln(out)
	}

	for _, st := range results[1:] {
		if !st.Result.Equal(results[0].Result) {
			return fmt.Errorf("result with %d workers (%s) differs from %d workers (%s)",
				st.Workers, st.Result, results[0].Workers, results[0].Result)
		}
	}

	best := results[0]
	for _, st := range results {
		if st.Duration < best.Duration {
			best = st
		}
	}

	fmt.Fprintf(out, "Summary\n")
	fmt.Fprintf(out, "======================================\n")
	for _, st := range results {
		fmt.Fprintf(out, "Workers %-3d %s (%.2fx)\n", st.Workers, st.Duration, speedup(results[0], st))
	}
	fmt.Fprintf(out, "\nResult: %s\n", results[0].Result)
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Best: %.2fx with %d workers", speedup(results[0], best), best.Workers)))
	return nil
}

func benchWorkerCount(ctx context.Context, lib *graph.Library, workers int) (benchStats, error) {
	cfg := app.cfg
	cfg.Workers = workers
	if benchChunk > 0 {
		cfg.ChunkSize = benchChunk
	}
	if err := cfg.Validate(); err != nil {
		return benchStats{}, err
	}

	e, err := newEvaluator(lib, cfg)
	if err != nil {
		return benchStats{}, err
	}
	defer e.Close()

	var (
		total  time.Duration
		result value.Value
	)
	for i := 0; i < benchRounds; i++ {
		e.Reset()
		start := time.Now()
		result, err = e.EvaluateRendered(ctx)
		app.recordPass(e.LastPass(), err)
		if err != nil {
			return benchStats{}, err
		}
		total += time.Since(start)
	}

	avg := total / time.Duration(max(benchRounds, 1))
	return benchStats{
		Workers:    workers,
		Duration:   avg,
		Throughput: float64(benchItems) / avg.Seconds(),
		Result:     result,
	}, nil
}

func speedup(base, st benchStats) float64 {
	if st.Duration == 0 {
		return 0
	}
	return base.Duration.Seconds() / st.Duration.Seconds()
}

func benchLibrary(reg *registry.Registry, items int) (*graph.Library, error) {
	net := graph.NewNetwork("root")
	rng := net.MustAddNode(graph.NewNode("range1", "math.range"))
	root := net.MustAddNode(graph.NewNode("sqrt1", "math.sqrt"))
	total := net.MustAddNode(graph.NewNode("sum1", "math.sum"))
	graph.PopulateDefaultPorts(net, reg.Lookup)

	if err := net.SetDefault(rng, "end", value.Float(float64(items))); err != nil {
		return nil, err
	}
	if err := net.Connect(rng, graph.DefaultOutput, root, "value"); err != nil {
		return nil, err
	}
	if err := net.Connect(root, graph.DefaultOutput, total, "values"); err != nil {
		return nil, err
	}
	if err := net.SetRendered(total); err != nil {
		return nil, err
	}
	return graph.NewLibrary("bench", net), nil
}
