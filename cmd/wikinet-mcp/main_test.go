package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/latebit/wikinet/internal/app"
	"github.com/latebit/wikinet/internal/checkpoint"
	"github.com/latebit/wikinet/internal/config"
	"github.com/latebit/wikinet/internal/correlation"
	"github.com/latebit/wikinet/internal/logging"
	"github.com/latebit/wikinet/internal/oracle"
)

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name         string
		tool         mcp.Tool
		wantName     string
		wantRequired []string
		wantOptional []string
	}{
		{
			name:         "build_network",
			tool:         buildNetworkTool(),
			wantName:     "build_network",
			wantRequired: []string{"seed"},
			wantOptional: []string{"threshold", "max_depth", "output"},
		},
		{
			name:         "article_links",
			tool:         articleLinksTool(),
			wantName:     "article_links",
			wantRequired: []string{"title"},
		},
		{
			name:         "article_similarity",
			tool:         articleSimilarityTool(),
			wantName:     "article_similarity",
			wantRequired: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("description is empty")
			}
			schema := tt.tool.InputSchema
			for _, req := range tt.wantRequired {
				if !slices.Contains(schema.Required, req) {
					t.Errorf("required params %v missing %q", schema.Required, req)
				}
				if _, ok := schema.Properties[req]; !ok {
					t.Errorf("properties missing %q", req)
				}
			}
			for _, opt := range tt.wantOptional {
				if slices.Contains(schema.Required, opt) {
					t.Errorf("%q should be optional", opt)
				}
				if _, ok := schema.Properties[opt]; !ok {
					t.Errorf("properties missing %q", opt)
				}
			}
		})
	}
}

// newCallToolRequest builds a CallToolRequest with the given arguments.
func newCallToolRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// newTestHandler serves A, which links to B and C. B shares A's vocabulary
// and C shares none of it.
func newTestHandler(t *testing.T) *handler {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"A.md": "# A\n\ngraph network theory nodes edges\n\n[B](B.md) and [C](C.md)\n",
		"B.md": "# B\n\ngraph network theory nodes edges\n",
		"C.md": "# C\n\ncooking pasta tomato sauce basil\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	c := config.Default()
	c.Source.Kind = "dir"
	c.Source.Dir = dir
	c.Run.Threshold = 0.5

	src, cleanup, err := app.NewSource(c, logging.Discard())
	if err != nil {
		t.Fatalf("NewSource() error: %v", err)
	}
	t.Cleanup(cleanup)

	return &handler{
		links:  src,
		scores: correlation.New(src, oracle.Lexical{}, correlation.Options{Store: correlation.NewMemoryStore(), Logger: logging.Discard()}),
		cfg:    c,
		logger: logging.Discard(),
	}
}

func TestHandlerArticleLinks_MissingTitle(t *testing.T) {
	h := &handler{}
	result, err := h.articleLinks(context.Background(), newCallToolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertIsToolError(t, result, "title is required")
}

func TestHandlerArticleLinks(t *testing.T) {
	h := newTestHandler(t)
	result, err := h.articleLinks(context.Background(), newCallToolRequest(map[string]any{"title": "A"}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "2 links from A") || !strings.Contains(text, "  B\n  C\n") {
		t.Errorf("unexpected result %q", text)
	}
}

func TestHandlerArticleLinks_NotFound(t *testing.T) {
	h := newTestHandler(t)
	result, err := h.articleLinks(context.Background(), newCallToolRequest(map[string]any{"title": "Nowhere"}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertIsToolError(t, result, "does not exist")
}

func TestHandlerArticleSimilarity_MissingArgs(t *testing.T) {
	h := &handler{}
	ctx := context.Background()

	result, err := h.articleSimilarity(ctx, newCallToolRequest(map[string]any{"b": "B"}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertIsToolError(t, result, "a is required")

	result, err = h.articleSimilarity(ctx, newCallToolRequest(map[string]any{"a": "A"}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertIsToolError(t, result, "b is required")

	result, err = h.articleSimilarity(ctx, newCallToolRequest(map[string]any{"a": "A", "b": "A"}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertIsToolError(t, result, "must be different")
}

func TestHandlerArticleSimilarity(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	tests := []struct {
		a, b string
		want string
	}{
		{"A", "B", "similarity(A, B) = 1.0000"},
		{"A", "C", "similarity(A, C) = 0.0000"},
		{"A", "Nowhere", "similarity(A, Nowhere) = 0.0000 (content unavailable)"},
	}
	for _, tt := range tests {
		t.Run(tt.a+"-"+tt.b, func(t *testing.T) {
			result, err := h.articleSimilarity(ctx, newCallToolRequest(map[string]any{"a": tt.a, "b": tt.b}))
			if err != nil {
				t.Fatalf("unexpected Go error: %v", err)
			}
			if got := resultText(t, result); got != tt.want {
				t.Errorf("result = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandlerBuildNetwork_MissingSeed(t *testing.T) {
	h := &handler{}
	result, err := h.buildNetwork(context.Background(), newCallToolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertIsToolError(t, result, "seed is required")
}

func TestHandlerBuildNetwork_InvalidThreshold(t *testing.T) {
	h := newTestHandler(t)
	result, err := h.buildNetwork(context.Background(), newCallToolRequest(map[string]any{
		"seed":      "A",
		"threshold": 1.5,
	}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertIsToolError(t, result, "threshold")
}

func TestHandlerBuildNetwork(t *testing.T) {
	h := newTestHandler(t)
	out := filepath.Join(t.TempDir(), "net.json")

	result, err := h.buildNetwork(context.Background(), newCallToolRequest(map[string]any{
		"seed":      "A",
		"max_depth": 10, // capped
		"output":    out,
	}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{
		"Network from A: 2 articles, 1 edges (threshold 0.50, depth 4)",
		"Written to " + out,
		"[depth 0] A",
		"[depth 1] B",
		"1.000  A -- B",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Stopped early") {
		t.Errorf("small network reported as truncated:\n%s", text)
	}

	snap, err := checkpoint.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if snap.Seed != "A" || len(snap.Nodes) != 2 || len(snap.Edges) != 1 {
		t.Errorf("checkpoint = seed %q, %d nodes, %d edges", snap.Seed, len(snap.Nodes), len(snap.Edges))
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result.Content)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

// assertIsToolError checks that a CallToolResult is an error containing the given substring.
func assertIsToolError(t *testing.T, result *mcp.CallToolResult, substr string) {
	t.Helper()
	if !result.IsError {
		t.Fatal("expected tool error result")
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content in error result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	if !strings.Contains(text.Text, substr) {
		t.Errorf("error text %q does not contain %q", text.Text, substr)
	}
}
