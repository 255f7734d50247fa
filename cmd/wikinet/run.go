package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/latebit/wikinet/internal/app"
	"github.com/latebit/wikinet/internal/config"
	"github.com/latebit/wikinet/internal/correlation"
	"github.com/latebit/wikinet/internal/events"
	"github.com/latebit/wikinet/internal/graph"
	"github.com/latebit/wikinet/internal/logging"
)

var (
	runSeed            string
	runThreshold       float64
	runMaxDepth        int
	runWorkers         int
	runCheckpointEvery int
	runOutput          string
	runFormat          string
	runStorePath       string
	runMetricsAddr     string
)

var runCmd = &cobra.Command{
	Use:   "run [seed]",
	Short: "Explore from a seed article and write the similarity network",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd, cfg)
		if len(args) == 1 {
			cfg.Run.Seed = args[0]
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if cfg.Metrics.Addr != "" {
			shutdown, err := app.ServeMetrics(cfg.Metrics.Addr, logger)
			if err != nil {
				return err
			}
			defer shutdown()
		}

		_, err := runNetwork(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted, partial network saved", "output", cfg.Run.Output)
			return nil
		}
		return err
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runSeed, "seed", "Network theory", "seed article title")
	f.Float64Var(&runThreshold, "threshold", 0.6, "minimum similarity for an edge, inclusive")
	f.IntVar(&runMaxDepth, "max-depth", 7, "maximum link hops from the seed")
	f.IntVar(&runWorkers, "workers", 4, "concurrent similarity lookups per article")
	f.IntVar(&runCheckpointEvery, "checkpoint-every", 0, "also checkpoint after every N edges (0 disables)")
	f.StringVarP(&runOutput, "output", "o", "output.gexf", "checkpoint file")
	f.StringVar(&runFormat, "format", "", "checkpoint format (gexf or json); inferred from --output when empty")
	f.StringVar(&runStorePath, "store", "", "badger directory for persistent similarity scores")
	f.StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	if changed(cmd, "seed") {
		c.Run.Seed = runSeed
	}
	if changed(cmd, "threshold") {
		c.Run.Threshold = runThreshold
	}
	if changed(cmd, "max-depth") {
		c.Run.MaxDepth = runMaxDepth
	}
	if changed(cmd, "workers") {
		c.Run.Workers = runWorkers
	}
	if changed(cmd, "checkpoint-every") {
		c.Run.CheckpointEvery = runCheckpointEvery
	}
	if changed(cmd, "output") {
		c.Run.Output = runOutput
	}
	if changed(cmd, "format") {
		c.Run.Format = runFormat
	}
	if changed(cmd, "store") {
		c.Store.Path = runStorePath
	}
	if changed(cmd, "metrics-addr") {
		c.Metrics.Addr = runMetricsAddr
	}
}

// runNetwork wires the configured components together and performs one
// exploration. On cancellation it returns the partial graph and ctx.Err();
// the final checkpoint has been written by then.
func runNetwork(ctx context.Context, c *config.Config, logger *slog.Logger, out io.Writer) (*graph.Graph, error) {
	runID := uuid.NewString()
	logger = logging.ForRun(logger, runID, c.Run.Seed)

	src, cleanup, err := app.NewSource(c, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	orc, err := app.NewOracle(c)
	if err != nil {
		return nil, err
	}

	store, err := app.NewStore(c, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	pub, err := app.NewPublisher(c)
	if err != nil {
		return nil, err
	}
	defer pub.Close()

	cp, err := app.NewCheckpointer(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	// Events must still go out after the run context is cancelled.
	evCtx := context.WithoutCancel(ctx)
	publish := func(topic string, event any) {
		if err := pub.Publish(evCtx, topic, event); err != nil {
			logger.Warn("publish event failed", "topic", topic, "err", err)
		}
	}

	cp.OnWritten = func(s graph.Snapshot) {
		publish(events.TopicCheckpointWritten, events.CheckpointWritten{
			RunID:   runID,
			Nodes:   len(s.Nodes),
			Edges:   len(s.Edges),
			TakenAt: s.TakenAt,
		})
	}

	scores := correlation.New(src, orc, correlation.Options{Store: store, Logger: logger})

	fmt.Fprintf(out, "Exploring from %q (threshold %.2f, depth %d)...\n", c.Run.Seed, c.Run.Threshold, c.Run.MaxDepth)
	start := time.Now()

	g, err := graph.Build(ctx, c.Run.Seed, src, scores, graph.Options{
		Threshold:       c.Run.Threshold,
		MaxDepth:        c.Run.MaxDepth,
		Workers:         c.Run.Workers,
		CheckpointEvery: c.Run.CheckpointEvery,
		Checkpointer:    cp,
		RunID:           runID,
		Logger:          logger,
		OnEdge: func(e graph.Edge, depth int) {
			fmt.Fprintf(out, "  %s -- %s (%.3f)\n", e.A, e.B, e.Score)
			publish(events.TopicEdgeAdmitted, events.EdgeAdmitted{
				RunID: runID,
				A:     e.A,
				B:     e.B,
				Score: e.Score,
				Depth: depth,
			})
		},
	})
	if g == nil {
		return nil, err
	}

	elapsed := time.Since(start)
	publish(events.TopicRunCompleted, events.RunCompleted{
		RunID:     runID,
		Seed:      c.Run.Seed,
		Nodes:     g.NodeCount(),
		Edges:     g.EdgeCount(),
		Cancelled: err != nil,
		Duration:  elapsed,
	})

	st := scores.Stats()
	logger.Info("run finished",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"score_hits", st.Hits,
		"score_misses", st.Misses,
		"unavailable", st.Unavailable,
		"oracle_calls", st.OracleCalls,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	fmt.Fprintf(out, "\nNetwork: %d nodes, %d edges -> %s\n", g.NodeCount(), g.EdgeCount(), c.Run.Output)
	return g, err
}
