package main

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/latebit/wikinet/internal/graph"
)

// viewMode distinguishes between network exploration and article reading.
type viewMode int

const (
	viewGraph viewMode = iota
	viewArticle
)

// graphListItem is a flattened node for display in the tree view.
type graphListItem struct {
	title string
	depth int     // hops from the seed in the displayed tree
	score float64 // similarity to the parent in the tree; 0 for the root
}

// network is a loaded checkpoint with fast edge score lookup.
type network struct {
	g      *graph.Graph
	seed   string
	runID  string
	scores map[[2]string]float64
}

func newNetwork(s graph.Snapshot) (*network, error) {
	g, err := graph.FromSnapshot(s)
	if err != nil {
		return nil, err
	}
	n := &network{
		g:      g,
		seed:   s.Seed,
		runID:  s.RunID,
		scores: make(map[[2]string]float64, len(s.Edges)),
	}
	for _, e := range s.Edges {
		n.scores[edgeKey(e.A, e.B)] = e.Score
	}
	if n.seed == "" {
		// Fall back to the shallowest node.
		best := -1
		for _, node := range s.Nodes {
			if best < 0 || node.Depth < best {
				n.seed, best = node.Title, node.Depth
			}
		}
	}
	return n, nil
}

func edgeKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (n *network) score(a, b string) float64 {
	return n.scores[edgeKey(a, b)]
}

// neighbor is an adjacent article and the similarity of the connecting edge.
type neighbor struct {
	title string
	score float64
}

// neighbors returns the articles adjacent to title, most similar first.
func (n *network) neighbors(title string) []neighbor {
	var out []neighbor
	for _, t := range n.g.Neighbors(title) {
		out = append(out, neighbor{title: t, score: n.score(title, t)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].title < out[j].title
	})
	return out
}

// flattenGraph builds a display list using BFS from the seed. The seed
// appears first, followed by its neighbours, then theirs.
func flattenGraph(n *network) []graphListItem {
	if n == nil || n.g.GetNode(n.seed) == nil {
		return nil
	}

	var items []graphListItem
	visited := map[string]bool{n.seed: true}
	queue := []graphListItem{{title: n.seed}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		items = append(items, item)

		for _, nb := range n.neighbors(item.title) {
			if !visited[nb.title] {
				visited[nb.title] = true
				queue = append(queue, graphListItem{title: nb.title, depth: item.depth + 1, score: nb.score})
			}
		}
	}

	return items
}

// findItem returns the index of the item whose title matches query, exactly
// or else by case-insensitive prefix. It returns -1 when nothing matches.
func findItem(items []graphListItem, query string) int {
	query = strings.TrimSpace(query)
	if query == "" {
		return -1
	}
	for i, it := range items {
		if it.title == query {
			return i
		}
	}
	lower := strings.ToLower(query)
	for i, it := range items {
		if strings.HasPrefix(strings.ToLower(it.title), lower) {
			return i
		}
	}
	return -1
}

// renderGraphView renders the tree list as a string for the viewport.
func renderGraphView(items []graphListItem, selectedIdx, width int) string {
	if len(items) == 0 {
		return "\n  No articles in this network.\n"
	}

	var b strings.Builder
	b.WriteString("\n  Similarity Network\n\n")

	for i, item := range items {
		indent := strings.Repeat("    ", item.depth)

		connector := ""
		score := ""
		if item.depth > 0 {
			connector = "├─ "
			score = fmt.Sprintf("  %.2f", item.score)
		}

		cursor := "  "
		if i == selectedIdx {
			cursor = "> "
		}

		line := fmt.Sprintf("%s%s%s%s %s%s", cursor, indent, connector, scoreIcon(item), item.title, score)

		if width > 8 && len(line) > width-2 {
			line = line[:width-5] + "..."
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString("\n  [Enter] read  [/] find  [q] quit\n")
	return b.String()
}

func scoreIcon(item graphListItem) string {
	switch {
	case item.depth == 0:
		return "◆"
	case item.score >= 0.8:
		return "●"
	case item.score >= 0.6:
		return "◐"
	default:
		return "○"
	}
}

// articleMarkdown renders the header of an article page: its place in the
// network followed by its text.
func articleMarkdown(n *network, title, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if node := n.g.GetNode(title); node != nil {
		fmt.Fprintf(&b, "Admitted at depth **%d**.\n\n", node.Depth)
	}

	if nbs := n.neighbors(title); len(nbs) > 0 {
		b.WriteString("## Similar articles\n\n")
		for _, nb := range nbs {
			fmt.Fprintf(&b, "- %s (%.3f)\n", nb.title, nb.score)
		}
		b.WriteString("\n")
	}

	if strings.TrimSpace(text) != "" {
		b.WriteString("## Text\n\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// handleGraphKey processes key events when the graph view is active.
func (m model) handleGraphKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.focus = focusSearch
		m.search.Focus()
		return m, nil
	case "j", "down":
		if m.graphIdx < len(m.items)-1 {
			m.graphIdx++
			m.refreshGraph()
		}
		return m, nil
	case "k", "up":
		if m.graphIdx > 0 {
			m.graphIdx--
			m.refreshGraph()
		}
		return m, nil
	case "enter":
		if m.graphIdx >= 0 && m.graphIdx < len(m.items) {
			return m.openArticle(m.items[m.graphIdx].title)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}
