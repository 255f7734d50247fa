package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/latebit/wikinet/internal/metrics"
)

// MaxDepthLimit bounds Options.MaxDepth. Expansion recurses once per level,
// so the bound also bounds the call stack.
const MaxDepthLimit = 32

// ErrInvalidOptions is returned by Build when the run parameters are out of
// range. No traversal happens in that case.
var ErrInvalidOptions = errors.New("graph: invalid options")

// ErrPartialCheckpoint marks a Checkpointer error where the snapshot was
// saved to some but not all of its destinations.
var ErrPartialCheckpoint = errors.New("graph: checkpoint partially written")

// LinkSource abstracts the ability to list the outbound links of an article.
// Implementations report a missing article with an error; Build treats any
// error as "no links".
type LinkSource interface {
	Links(ctx context.Context, title string) ([]string, error)
}

// Scorer returns the similarity of two distinct articles in [0, 1]. Failures
// are expected to degrade to 0 inside the scorer.
type Scorer interface {
	Score(ctx context.Context, a, b string) float64
}

// Checkpointer persists a snapshot of the graph. Errors are logged by Build
// and never abort the traversal.
type Checkpointer interface {
	Write(ctx context.Context, s Snapshot) error
}

// Options configures Build.
type Options struct {
	Threshold       float64      // minimum similarity for admission, inclusive, in (0, 1]
	MaxDepth        int          // maximum recursion depth from the seed, in [1, MaxDepthLimit]
	Workers         int          // concurrent sibling scorers (default: 4)
	CheckpointEvery int          // also checkpoint after every N admitted edges; 0 disables
	Checkpointer    Checkpointer // may be nil
	RunID           string       // copied into every snapshot
	OnEdge          func(e Edge, depth int)
	Logger          *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Validate reports whether the options describe a runnable traversal.
func (o Options) Validate() error {
	if !(o.Threshold > 0 && o.Threshold <= 1) {
		return fmt.Errorf("%w: threshold %v not in (0, 1]", ErrInvalidOptions, o.Threshold)
	}
	if o.MaxDepth < 1 || o.MaxDepth > MaxDepthLimit {
		return fmt.Errorf("%w: max depth %d not in [1, %d]", ErrInvalidOptions, o.MaxDepth, MaxDepthLimit)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers %d is negative", ErrInvalidOptions, o.Workers)
	}
	if o.CheckpointEvery < 0 {
		return fmt.Errorf("%w: checkpoint interval %d is negative", ErrInvalidOptions, o.CheckpointEvery)
	}
	return nil
}

type builder struct {
	g        *Graph
	seed     string
	links    LinkSource
	scorer   Scorer
	opts     Options
	expanded map[string]struct{}
	admitted int
}

// Build explores outbound links depth-first starting at seed and returns the
// graph of articles whose similarity to the article linking them is at least
// opts.Threshold.
//
// Each admitted edge is recursed into immediately, before the remaining links
// of the same article. An article is expanded at most once per run. Scores
// of sibling links are computed concurrently (opts.Workers), but admission
// always follows link order.
//
// A snapshot is written after every article expanded at depth MaxDepth-1 and
// once more when the traversal ends, including when ctx is cancelled. On
// cancellation Build returns the partial graph together with ctx.Err().
func Build(ctx context.Context, seed string, links LinkSource, scorer Scorer, opts Options) (*Graph, error) {
	if seed == "" {
		return nil, fmt.Errorf("%w: empty seed", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	b := &builder{
		g:        New(),
		seed:     seed,
		links:    links,
		scorer:   scorer,
		opts:     opts,
		expanded: make(map[string]struct{}),
	}

	b.expand(ctx, seed, 0)

	// The final checkpoint must survive cancellation of the run.
	b.checkpoint(context.WithoutCancel(ctx), "final")

	return b.g, ctx.Err()
}

func (b *builder) expand(ctx context.Context, article string, depth int) {
	if ctx.Err() != nil || depth >= b.opts.MaxDepth {
		return
	}
	if _, seen := b.expanded[article]; seen {
		return
	}
	b.expanded[article] = struct{}{}

	if depth == 0 {
		if b.g.AddNode(article, 0) {
			metrics.GraphNodes.Set(float64(b.g.NodeCount()))
		}
	}

	links, err := b.links.Links(ctx, article)
	if err != nil {
		b.opts.Logger.Debug("no links for article", "title", article, "err", err)
		links = nil
	}

	candidates := b.candidates(article, links)
	var scores []float64
	if b.opts.Workers > 1 {
		scores = b.scoreAll(ctx, article, candidates)
	}

	for i, link := range candidates {
		if ctx.Err() != nil {
			break
		}
		if b.g.HasEdge(article, link) {
			continue
		}
		var s float64
		if scores != nil {
			s = scores[i]
		} else {
			s = b.scorer.Score(ctx, article, link)
		}
		if s < b.opts.Threshold {
			continue
		}
		b.admit(ctx, article, link, s, depth)
		b.expand(ctx, link, depth+1)
	}

	if depth == b.opts.MaxDepth-1 && ctx.Err() == nil {
		b.checkpoint(ctx, "depth")
	}
}

// candidates drops self-links, duplicates and links already connected to
// article, preserving enumeration order.
func (b *builder) candidates(article string, links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		if link == article || link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		if b.g.HasEdge(article, link) {
			continue
		}
		out = append(out, link)
	}
	return out
}

// scoreAll scores every candidate against article with at most
// opts.Workers calls in flight.
func (b *builder) scoreAll(ctx context.Context, article string, candidates []string) []float64 {
	scores := make([]float64, len(candidates))
	eg := new(errgroup.Group)
	eg.SetLimit(b.opts.Workers)
	for i, link := range candidates {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			scores[i] = b.scorer.Score(ctx, article, link)
			return nil
		})
	}
	_ = eg.Wait()
	return scores
}

func (b *builder) admit(ctx context.Context, article, link string, score float64, depth int) {
	b.g.AddNode(link, depth+1)
	created, err := b.g.AddEdge(article, link, score)
	if err != nil {
		b.opts.Logger.Error("add edge failed", "a", article, "b", link, "err", err)
		return
	}
	if !created {
		return
	}

	b.opts.Logger.Info("adding edge", "a", article, "b", link, "score", score, "depth", depth)
	metrics.EdgesAdmitted.Inc()
	metrics.GraphNodes.Set(float64(b.g.NodeCount()))
	metrics.GraphEdges.Set(float64(b.g.EdgeCount()))

	if b.opts.OnEdge != nil {
		p := orderedPair(article, link)
		b.opts.OnEdge(Edge{A: p.a, B: p.b, Score: score}, depth)
	}

	b.admitted++
	if b.opts.CheckpointEvery > 0 && b.admitted%b.opts.CheckpointEvery == 0 {
		b.checkpoint(ctx, "interval")
	}
}

func (b *builder) checkpoint(ctx context.Context, reason string) {
	if b.opts.Checkpointer == nil {
		return
	}
	snap := b.g.Snapshot()
	snap.RunID = b.opts.RunID
	snap.Seed = b.seed
	err := b.opts.Checkpointer.Write(ctx, snap)
	switch {
	case errors.Is(err, ErrPartialCheckpoint):
		b.opts.Logger.Warn("checkpoint incomplete", "reason", reason, "err", err)
	case err != nil:
		b.opts.Logger.Error("checkpoint failed", "reason", reason, "err", err)
		return
	}
	b.opts.Logger.Info("file updated", "reason", reason, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
}
