package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/akoshelev/metric-proto/internal/bench"
	"github.com/akoshelev/metric-proto/internal/core/export"
	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/internal/core/pipeline"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the metrics pipeline benchmark",
	Long: `Run writer tasks against the metrics pipeline until the reader observes a
target counter value, then report throughput and writer-call latency.

Pipeline mode (full engine):
  metricbench bench --mode pipeline --tasks 64 --max-val 100000000

Bare atomic baseline:
  metricbench bench --mode atomic --tasks 64 --max-val 100000000

With a pipeline config file:
  metricbench bench --config pipeline.yaml --tasks 64`,
	RunE: runBench,
}

func runBench(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")
	tasks, _ := cmd.Flags().GetInt("tasks")
	maxVal, _ := cmd.Flags().GetUint64("max-val")
	threads, _ := cmd.Flags().GetInt("threads")
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if threads > 0 {
		runtime.GOMAXPROCS(threads)
	}

	cfg := pipeline.DefaultConfig()
	if configFile != "" {
		f, err := os.Open(configFile)
		if err != nil {
			return fmt.Errorf("opening config: %w", err)
		}
		cfg, err = pipeline.LoadYAML(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	logger := log.New(log.Level(cfg.LogLevel))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []export.Sink
	if printSnaps, _ := cmd.Flags().GetBool("print"); printSnaps {
		sinks = append(sinks, export.NewConsoleSink(cmd.OutOrStdout()))
	}
	if cfg.Stream.Enabled {
		streamer := export.NewStreamer(cfg.Stream.Addr, logger)
		if err := streamer.Start(); err != nil {
			return fmt.Errorf("starting snapshot streamer: %w", err)
		}
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = streamer.Stop(shCtx)
		}()
		sinks = append(sinks, streamer)
	}

	opts := bench.Options{
		Mode:     bench.Mode(mode),
		Tasks:    tasks,
		MaxValue: maxVal,
		Pipeline: cfg,
	}
	if len(sinks) > 0 {
		opts.Sink = export.Tee(sinks...)
	}

	report, err := bench.Run(ctx, opts, logger)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, r *bench.Report) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgYellow)

	header.Fprintf(w, "benchmark %s (%s)\n", r.RunID, r.Mode)
	label.Fprint(w, "  tasks:      ")
	fmt.Fprintf(w, "%d\n", r.Tasks)
	label.Fprint(w, "  elapsed:    ")
	fmt.Fprintf(w, "%s\n", r.Elapsed.Round(time.Millisecond))
	label.Fprint(w, "  final:      ")
	fmt.Fprintf(w, "%d\n", r.Final)
	label.Fprint(w, "  throughput: ")
	fmt.Fprintf(w, "%.0f ops/s\n", r.Throughput)
	if r.Mode == bench.ModePipeline {
		label.Fprint(w, "  dropped:    ")
		fmt.Fprintf(w, "%d snapshots\n", r.Dropped)
		label.Fprint(w, "  gaps:       ")
		fmt.Fprintf(w, "%d\n", r.Gaps)
	}
	label.Fprint(w, "  latency:    ")
	fmt.Fprintf(w, "p50=%s p90=%s p99=%s max=%s (%d samples)\n",
		r.Latency.P50, r.Latency.P90, r.Latency.P99, r.Latency.Max, r.Latency.Samples)
}

func init() {
	benchCmd.Flags().String("mode", "pipeline", "Benchmark mode: pipeline or atomic")
	benchCmd.Flags().Int("tasks", runtime.NumCPU(), "Number of logical writer tasks")
	benchCmd.Flags().Uint64("max-val", 10_000_000, "Counter value that ends the run")
	benchCmd.Flags().Int("threads", 0, "Cap on OS threads executing Go code (0 = runtime default)")
	benchCmd.Flags().String("config", "", "Pipeline config file (YAML)")
	benchCmd.Flags().Bool("print", false, "Print each decoded snapshot to stdout")
	benchCmd.Flags().Bool("verbose", false, "Enable debug logging")
}
