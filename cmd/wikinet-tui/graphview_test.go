package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/latebit/wikinet/internal/graph"
)

func sampleNetwork(t *testing.T) *network {
	t.Helper()
	n, err := newNetwork(graph.Snapshot{
		Seed:  "A",
		RunID: "0123456789abcdef",
		Nodes: []graph.Node{
			{Title: "A", Depth: 0},
			{Title: "B", Depth: 1},
			{Title: "C", Depth: 1},
			{Title: "D", Depth: 2},
		},
		Edges: []graph.Edge{
			{A: "A", B: "B", Score: 0.65},
			{A: "A", B: "C", Score: 0.9},
			{A: "B", B: "D", Score: 0.7},
			{A: "C", B: "D", Score: 0.61},
		},
	})
	if err != nil {
		t.Fatalf("newNetwork() error: %v", err)
	}
	return n
}

func TestNewNetworkRejectsDanglingEdge(t *testing.T) {
	_, err := newNetwork(graph.Snapshot{
		Nodes: []graph.Node{{Title: "A"}},
		Edges: []graph.Edge{{A: "A", B: "Z", Score: 1}},
	})
	if err == nil {
		t.Fatal("expected error for edge to unknown node")
	}
}

func TestNewNetworkInfersSeed(t *testing.T) {
	n, err := newNetwork(graph.Snapshot{
		Nodes: []graph.Node{{Title: "B", Depth: 1}, {Title: "A", Depth: 0}},
		Edges: []graph.Edge{{A: "A", B: "B", Score: 0.8}},
	})
	if err != nil {
		t.Fatalf("newNetwork() error: %v", err)
	}
	if n.seed != "A" {
		t.Errorf("seed = %q, want A", n.seed)
	}
}

func TestFlattenGraphNil(t *testing.T) {
	if items := flattenGraph(nil); items != nil {
		t.Errorf("expected nil, got %d items", len(items))
	}
}

func TestFlattenGraphBFS(t *testing.T) {
	items := flattenGraph(sampleNetwork(t))
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	want := []graphListItem{
		{title: "A", depth: 0, score: 0},
		{title: "C", depth: 1, score: 0.9}, // most similar neighbour first
		{title: "B", depth: 1, score: 0.65},
		{title: "D", depth: 2, score: 0.61}, // reached through C, no duplicate via B
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestFindItem(t *testing.T) {
	items := []graphListItem{{title: "Network theory"}, {title: "Graph theory"}, {title: "Graph"}}
	tests := []struct {
		query string
		want  int
	}{
		{"Graph", 2},
		{"graph t", 1},
		{"  network", 0},
		{"Tree", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := findItem(items, tt.query); got != tt.want {
			t.Errorf("findItem(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestRenderGraphViewEmpty(t *testing.T) {
	result := renderGraphView(nil, 0, 80)
	if !strings.Contains(result, "No articles") {
		t.Errorf("expected empty message, got %q", result)
	}
}

func TestRenderGraphViewCursorAndScores(t *testing.T) {
	items := []graphListItem{
		{title: "A", depth: 0},
		{title: "B", depth: 1, score: 0.65},
	}
	result := renderGraphView(items, 1, 80)

	foundSelected := false
	for _, line := range strings.Split(result, "\n") {
		if strings.HasPrefix(line, "> ") && strings.Contains(line, "B") {
			foundSelected = true
			if !strings.Contains(line, "0.65") {
				t.Errorf("selected line lacks score: %q", line)
			}
		}
	}
	if !foundSelected {
		t.Errorf("expected selected cursor on item B, output:\n%s", result)
	}
}

func TestRenderGraphViewIcons(t *testing.T) {
	items := []graphListItem{
		{title: "A", depth: 0},
		{title: "B", depth: 1, score: 0.85},
		{title: "C", depth: 1, score: 0.65},
		{title: "D", depth: 1, score: 0.4},
	}
	result := renderGraphView(items, 0, 80)
	for _, icon := range []string{"◆", "●", "◐", "○"} {
		if !strings.Contains(result, icon) {
			t.Errorf("expected icon %s in output:\n%s", icon, result)
		}
	}
}

func TestArticleMarkdown(t *testing.T) {
	md := articleMarkdown(sampleNetwork(t), "D", "Some text about D.")
	for _, want := range []string{"# D", "depth **2**", "- B (0.700)", "- C (0.610)", "Some text about D."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "- B") > strings.Index(md, "- C") {
		t.Error("neighbours should be ordered by similarity")
	}
}

type stubTexts struct {
	text string
	err  error
}

func (s stubTexts) Text(context.Context, string) (string, error) {
	return s.text, s.err
}

func sized(t *testing.T, m model) model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(model)
}

func press(t *testing.T, m model, key tea.KeyMsg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	return next.(model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelNavigation(t *testing.T) {
	m := sized(t, initialModel("out.gexf", sampleNetwork(t), nil))

	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("j"))
	if m.graphIdx != 2 {
		t.Fatalf("graphIdx = %d, want 2", m.graphIdx)
	}
	m, _ = press(t, m, runes("k"))
	if m.graphIdx != 1 {
		t.Fatalf("graphIdx = %d, want 1", m.graphIdx)
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != viewArticle || m.current != "C" {
		t.Fatalf("mode = %v current = %q, want article view of C", m.mode, m.current)
	}
	if cmd != nil {
		t.Error("no fetch expected without a text source")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	if m.mode != viewGraph {
		t.Errorf("mode = %v, want graph view after esc", m.mode)
	}
}

func TestModelFetchesArticleText(t *testing.T) {
	m := sized(t, initialModel("out.gexf", sampleNetwork(t), stubTexts{text: "Article body."}))

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.loading || cmd == nil {
		t.Fatal("expected a pending fetch after opening an article")
	}
	res, ok := cmd().(articleResult)
	if !ok {
		t.Fatalf("cmd returned %T, want articleResult", cmd())
	}
	if res.title != "A" || res.text != "Article body." {
		t.Errorf("result = %+v", res)
	}

	next, _ := m.Update(res)
	m = next.(model)
	if m.loading || m.err != nil {
		t.Errorf("loading = %v err = %v after result", m.loading, m.err)
	}
}

func TestModelIgnoresStaleArticle(t *testing.T) {
	m := sized(t, initialModel("out.gexf", sampleNetwork(t), stubTexts{err: errors.New("offline")}))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	next, _ := m.Update(articleResult{title: "old", err: errors.New("stale"), seq: m.seq - 1})
	m = next.(model)
	if !m.loading || m.err != nil {
		t.Errorf("stale result must be ignored, loading = %v err = %v", m.loading, m.err)
	}
}

func TestModelSearch(t *testing.T) {
	m := sized(t, initialModel("out.gexf", sampleNetwork(t), nil))

	m, _ = press(t, m, runes("/"))
	if m.focus != focusSearch {
		t.Fatal("expected search focus after /")
	}
	m, _ = press(t, m, runes("d"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.items[m.graphIdx].title != "D" {
		t.Errorf("selected %q, want D", m.items[m.graphIdx].title)
	}
	if m.focus != focusViewport {
		t.Error("search should release focus after a match")
	}

	m, _ = press(t, m, runes("/"))
	m, _ = press(t, m, runes("zzz"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.err == nil {
		t.Error("expected error for unmatched search")
	}
}
