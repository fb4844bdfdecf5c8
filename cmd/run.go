package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/montiglio/graphbench/internal/bench"
	"github.com/montiglio/graphbench/internal/config"
	"github.com/montiglio/graphbench/internal/graph"
	"github.com/montiglio/graphbench/internal/report"
	"github.com/montiglio/graphbench/internal/store"
	"github.com/montiglio/graphbench/internal/telemetry"
	"github.com/montiglio/graphbench/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [graph]",
	Short: "Benchmark personalized PageRank on a graph",
	Long: `Loads a Matrix Market graph (a local path or an http(s) URL) and runs the
split host/device PageRank solver from random source vertices. Every trial is
scored against the host reference; the mean top-k accuracy is printed on stdout.

With --watch, the benchmark re-runs every time the graph file is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.Int("trials", 0, "number of random source vertices to benchmark")
	f.Float64("alpha", 0, "damping factor in (0, 1)")
	f.Float64("threshold", 0, "convergence threshold on the L2 distance")
	f.Int("max-iterations", 0, "iteration cap per trial")
	f.Int("top-k", 0, "ranks compared against the reference")
	f.Float64("min-score", 0, "lowest accepted top-k accuracy")
	f.Uint64("seed", 0, "source selection seed")
	f.Int("groups", 0, "device worker groups")
	f.Int("group-size", 0, "lanes per worker group (power of two)")
	f.Int("host-workers", 0, "goroutines for the host SpMV")
	f.String("telemetry", "", "JSONL event log path")
	f.String("report", "", "TOML run report path")
	f.Bool("long", false, "print the first ranks instead of the mean score")
	f.Bool("watch", false, "re-run when the graph file changes")
	f.Bool("strict", false, "exit non-zero when any trial fails or mismatches")

	for key, flag := range map[string]string{
		"trials":            "trials",
		"alpha":             "alpha",
		"threshold":         "threshold",
		"max_iterations":    "max-iterations",
		"top_k":             "top-k",
		"min_score":         "min-score",
		"seed":              "seed",
		"device.groups":     "groups",
		"device.group_size": "group-size",
		"host_workers":      "host-workers",
		"telemetry":         "telemetry",
		"report":            "report",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(runCmd)
}

// sinks holds the optional outputs of a run.
type sinks struct {
	events *telemetry.Emitter
	db     *store.SQLiteStore
	report string
}

func (s *sinks) Close() {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("graph", args[0])
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Graph == "" {
		return errors.New("run: no graph given (argument or graph key)")
	}

	printer := ui.New()
	printer.Banner(version)

	ctx, cancel := setupSignalContext(printer)
	defer cancel()

	out, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	long, _ := cmd.Flags().GetBool("long")
	strict, _ := cmd.Flags().GetBool("strict")
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return runWatch(ctx, cfg, printer, out, long)
	}

	rep, err := runOnce(ctx, cfg, printer, out, long)
	if err != nil {
		return err
	}
	if strict {
		return rep.Err()
	}
	return nil
}

// openSinks opens the telemetry log and results database named in cfg.
func openSinks(ctx context.Context, cfg config.Config) (*sinks, error) {
	s := &sinks{report: cfg.Report}
	if cfg.Telemetry != "" {
		em, err := telemetry.NewEmitter(cfg.Telemetry)
		if err != nil {
			return nil, err
		}
		s.events = em
	}
	if cfg.DB != "" {
		db, err := store.NewSQLiteStore(ctx, cfg.DB)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.db = db
	}
	return s, nil
}

// runOnce loads the graph, runs every trial and records the report.
func runOnce(ctx context.Context, cfg config.Config, printer *ui.Printer, out *sinks, long bool) (*bench.Report, error) {
	g, err := graph.Open(cfg.Graph, loadOptions(cfg))
	if err != nil {
		return nil, err
	}
	printer.GraphStats(g.Source, g.Stats())

	runner := &bench.Runner{
		Graph:     g,
		Options:   benchOptions(cfg),
		UI:        printer,
		Telemetry: out.events,
	}
	rep, err := runner.Run(ctx)
	if err != nil {
		if rep == nil {
			return nil, err
		}
		printer.Error(err.Error())
	}

	printer.Summary(rep)
	printer.Result(rep, long)

	if out.db != nil {
		// A cancelled run is still recorded; use a fresh context for the write.
		if err := out.db.SaveRun(context.WithoutCancel(ctx), rep); err != nil {
			printer.Error(fmt.Sprintf("saving run: %v", err))
		}
	}
	if out.report != "" {
		if err := report.Save(out.report, rep); err != nil {
			printer.Error(fmt.Sprintf("writing report: %v", err))
		}
	}
	return rep, err
}

// runWatch runs once, then again after every write to the graph file until
// ctx is cancelled.
func runWatch(ctx context.Context, cfg config.Config, printer *ui.Printer, out *sinks, long bool) error {
	if graph.IsRemote(cfg.Graph) {
		return fmt.Errorf("run: --watch needs a local graph file, got %s", cfg.Graph)
	}
	w, err := graph.NewWatcher(cfg.Graph)
	if err != nil {
		return fmt.Errorf("run: watch %s: %w", cfg.Graph, err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("run: watch %s: %w", cfg.Graph, err)
	}
	defer w.Stop()

	for {
		if _, err := runOnce(ctx, cfg, printer, out, long); err != nil {
			printer.Error(err.Error())
		}
		if ctx.Err() != nil {
			return nil
		}
		printer.Info("watching " + w.Path + " for changes")
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Changes:
			if !ok {
				return nil
			}
		}
	}
}

// setupSignalContext returns a context that is canceled on SIGINT or SIGTERM.
func setupSignalContext(printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			printer.Info("\nshutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
