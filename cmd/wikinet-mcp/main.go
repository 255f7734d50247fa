// Command wikinet-mcp is an MCP server that exposes article links, pairwise
// similarity and similarity network exploration as tools for LLM agents,
// over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/latebit/wikinet/internal/app"
	"github.com/latebit/wikinet/internal/article"
	"github.com/latebit/wikinet/internal/checkpoint"
	"github.com/latebit/wikinet/internal/config"
	"github.com/latebit/wikinet/internal/correlation"
	"github.com/latebit/wikinet/internal/graph"
	"github.com/latebit/wikinet/internal/logging"
)

// Limits for agent-initiated explorations.
const (
	maxToolDepth = 4
	maxToolEdges = 200
)

// linkSource is what the handlers need from an article source.
type linkSource interface {
	Links(ctx context.Context, title string) ([]string, error)
}

type handler struct {
	links  linkSource
	scores *correlation.Cache
	cfg    *config.Config
	logger *slog.Logger
}

// Tool definitions.

func buildNetworkTool() mcp.Tool {
	return mcp.NewTool("build_network",
		mcp.WithDescription(
			"Explore outbound links from a seed article and return the network of "+
				"articles whose similarity to the article linking them reaches the threshold. "+
				"Exploration is depth-first and stops at max_depth link hops.",
		),
		mcp.WithString("seed",
			mcp.Required(),
			mcp.Description("seed article title, e.g. Network theory"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("minimum similarity in (0, 1], inclusive (default from config, usually 0.6)"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description(fmt.Sprintf("maximum link hops from the seed (default 2, max %d)", maxToolDepth)),
		),
		mcp.WithString("output",
			mcp.Description("optional checkpoint path (.gexf or .json) to write the network to"),
		),
	)
}

func articleLinksTool() mcp.Tool {
	return mcp.NewTool("article_links",
		mcp.WithDescription("List the articles an article links to, in document order."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("article title"),
		),
	)
}

func articleSimilarityTool() mcp.Tool {
	return mcp.NewTool("article_similarity",
		mcp.WithDescription(
			"Return the similarity of two articles in [0, 1]. Scores are remembered "+
				"for the lifetime of the server.",
		),
		mcp.WithString("a",
			mcp.Required(),
			mcp.Description("first article title"),
		),
		mcp.WithString("b",
			mcp.Required(),
			mcp.Description("second article title"),
		),
	)
}

// Tool handlers.
// Handler signatures are dictated by mcp-go's ToolHandlerFunc type.

func (h *handler) articleLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	title, err := req.RequireString("title")
	if err != nil || strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("title is required"), nil
	}

	links, err := h.links.Links(ctx, title)
	if errors.Is(err, article.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("article %q does not exist", title)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("links failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d links from %s\n", len(links), title)
	for _, l := range links {
		fmt.Fprintf(&b, "  %s\n", l)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *handler) articleSimilarity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	a, err := req.RequireString("a")
	if err != nil {
		return mcp.NewToolResultError("a is required"), nil
	}
	b, err := req.RequireString("b")
	if err != nil {
		return mcp.NewToolResultError("b is required"), nil
	}
	if a == b {
		return mcp.NewToolResultError("a and b must be different articles"), nil
	}

	s := h.scores.Score(ctx, a, b)
	if err := ctx.Err(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cancelled: %v", err)), nil
	}
	if e, ok := h.scores.Lookup(a, b); ok && !e.Available {
		return mcp.NewToolResultText(fmt.Sprintf("similarity(%s, %s) = %.4f (content unavailable)", a, b, s)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("similarity(%s, %s) = %.4f", a, b, s)), nil
}

func (h *handler) buildNetwork(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	seed, err := req.RequireString("seed")
	if err != nil || strings.TrimSpace(seed) == "" {
		return mcp.NewToolResultError("seed is required"), nil
	}

	threshold := req.GetFloat("threshold", h.cfg.Run.Threshold)
	depth := max(1, min(req.GetInt("max_depth", 2), maxToolDepth))
	output := req.GetString("output", "")

	opts := graph.Options{
		Threshold: threshold,
		MaxDepth:  depth,
		Workers:   h.cfg.Run.Workers,
		RunID:     uuid.NewString(),
		Logger:    h.logger,
	}
	if err := opts.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if output != "" {
		opts.Checkpointer = checkpoint.New(checkpoint.FormatFromPath(output), h.logger, &checkpoint.FileDestination{Path: output})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var admitted int
	opts.OnEdge = func(graph.Edge, int) {
		admitted++
		if admitted >= maxToolEdges {
			cancel()
		}
	}

	g, err := graph.Build(ctx, seed, h.links, h.scores, opts)
	if g == nil {
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}
	truncated := admitted >= maxToolEdges

	return mcp.NewToolResultText(formatNetwork(g, seed, threshold, depth, truncated, output)), nil
}

// formatNetwork renders a network as a plain-text summary for LLM consumption.
func formatNetwork(g *graph.Graph, seed string, threshold float64, depth int, truncated bool, output string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Network from %s: %d articles, %d edges (threshold %.2f, depth %d)\n",
		seed, g.NodeCount(), g.EdgeCount(), threshold, depth)
	if truncated {
		fmt.Fprintf(&b, "Stopped early at the %d edge limit.\n", maxToolEdges)
	}
	if output != "" {
		fmt.Fprintf(&b, "Written to %s\n", output)
	}

	nodes := g.AllNodes()
	if len(nodes) > 0 {
		b.WriteString("\nArticles:\n")
		for _, n := range nodes {
			fmt.Fprintf(&b, "  [depth %d] %s\n", n.Depth, n.Title)
		}
	}

	edges := g.GetEdges()
	if len(edges) > 0 {
		sort.SliceStable(edges, func(i, j int) bool { return edges[i].Score > edges[j].Score })
		b.WriteString("\nEdges (most similar first):\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "  %.3f  %s -- %s\n", e.Score, e.A, e.B)
		}
	}
	return b.String()
}

var (
	configPath string
	sourceDir  string
	language   string
	oracleKind string
	storePath  string
)

var rootCmd = &cobra.Command{
	Use:          "wikinet-mcp",
	Short:        "Serve wikinet tools over MCP stdio",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("dir") {
			c.Source.Kind, c.Source.Dir = "dir", sourceDir
		}
		if cmd.Flags().Changed("lang") {
			c.Source.Language = language
		}
		if cmd.Flags().Changed("oracle") {
			c.Oracle.Kind = oracleKind
		}
		if cmd.Flags().Changed("store") {
			c.Store.Path = storePath
		}
		if err := c.Validate(); err != nil {
			return err
		}

		// stdout carries the protocol.
		logger := logging.New(c.Log.Format, c.Log.Level, os.Stderr)

		src, cleanup, err := app.NewSource(c, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		orc, err := app.NewOracle(c)
		if err != nil {
			return err
		}
		store, err := app.NewStore(c, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		h := &handler{
			links:  src,
			scores: correlation.New(src, orc, correlation.Options{Store: store, Logger: logger}),
			cfg:    c,
			logger: logger,
		}

		s := server.NewMCPServer("wikinet-mcp", "0.1.0")
		s.AddTool(buildNetworkTool(), h.buildNetwork)
		s.AddTool(articleLinksTool(), h.articleLinks)
		s.AddTool(articleSimilarityTool(), h.articleSimilarity)

		return server.ServeStdio(s)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", os.Getenv("WIKINET_CONFIG"), "config file (.toml, .yaml)")
	f.StringVar(&sourceDir, "dir", "", "serve articles from a directory of markdown files")
	f.StringVar(&language, "lang", "en", "Wikipedia language code")
	f.StringVar(&oracleKind, "oracle", "lexical", "similarity oracle (lexical, openai or ollama)")
	f.StringVar(&storePath, "store", "", "badger directory for persistent similarity scores")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
