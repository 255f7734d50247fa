// Package graph provides the article similarity graph and the traversal that
// builds it by exploring outbound links from a seed article.
package graph

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNodeNotFound is returned by AddEdge when an endpoint was never added.
	ErrNodeNotFound = errors.New("graph: node not found")
	// ErrSelfLoop is returned by AddEdge when both endpoints are the same title.
	ErrSelfLoop = errors.New("graph: self-loop")
)

// Node represents an article in the graph.
type Node struct {
	Title string `json:"title"`
	Depth int    `json:"depth"` // traversal depth at which the node was first admitted
}

// Edge is an undirected connection between two articles. A is always the
// lexically smaller title.
type Edge struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"` // similarity that admitted the edge
}

type pair struct{ a, b string }

func orderedPair(a, b string) pair {
	if b < a {
		a, b = b, a
	}
	return pair{a: a, b: b}
}

// Graph is a concurrency-safe simple undirected graph of articles. It only
// grows: nodes and edges are never removed.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	edges   []Edge
	edgeSet map[pair]struct{}
	adj     map[string][]string
	mu      sync.RWMutex
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edgeSet: make(map[pair]struct{}),
		adj:     make(map[string][]string),
	}
}

// AddNode adds a node for title at the given depth. Adding an existing title
// is a no-op and reports false.
func (g *Graph) AddNode(title string, depth int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[title]; exists {
		return false
	}
	g.nodes[title] = &Node{Title: title, Depth: depth}
	g.order = append(g.order, title)
	return true
}

// AddEdge connects a and b. Both nodes must already exist. Adding an edge
// that is already present (in either direction) is a no-op and reports false.
func (g *Graph) AddEdge(a, b string, score float64) (bool, error) {
	if a == b {
		return false, ErrSelfLoop
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[a]; !ok {
		return false, ErrNodeNotFound
	}
	if _, ok := g.nodes[b]; !ok {
		return false, ErrNodeNotFound
	}
	p := orderedPair(a, b)
	if _, exists := g.edgeSet[p]; exists {
		return false, nil
	}
	g.edgeSet[p] = struct{}{}
	g.edges = append(g.edges, Edge{A: p.a, B: p.b, Score: score})
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
	return true, nil
}

// HasNode reports whether title is in the graph.
func (g *Graph) HasNode(title string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[title]
	return ok
}

// HasEdge reports whether a and b are connected. HasEdge(a, b) == HasEdge(b, a).
func (g *Graph) HasEdge(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edgeSet[orderedPair(a, b)]
	return ok
}

// GetNode returns the node for a title, or nil if not found.
func (g *Graph) GetNode(title string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[title]
	if !ok {
		return nil
	}
	cp := *n
	return &cp
}

// Neighbors returns the titles adjacent to title in admission order.
func (g *Graph) Neighbors(title string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.adj[title]))
	copy(out, g.adj[title])
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// GetEdges returns a copy of the edge list in admission order.
func (g *Graph) GetEdges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// AllNodes returns a copy of all nodes in admission order.
func (g *Graph) AllNodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes := make([]Node, 0, len(g.order))
	for _, t := range g.order {
		nodes = append(nodes, *g.nodes[t])
	}
	return nodes
}

// Snapshot is an immutable copy of the graph taken at a point in time.
// Nodes are sorted by title and edges by (A, B) so exports are stable.
type Snapshot struct {
	RunID   string    `json:"run_id,omitempty"`
	Seed    string    `json:"seed,omitempty"`
	TakenAt time.Time `json:"taken_at"`
	Nodes   []Node    `json:"nodes"`
	Edges   []Edge    `json:"edges"`
}

// Snapshot copies the current nodes and edges. Later mutations of the graph
// do not affect the returned value.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	nodes := make([]Node, 0, len(g.order))
	for _, t := range g.order {
		nodes = append(nodes, *g.nodes[t])
	}
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	g.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Title < nodes[j].Title })
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return Snapshot{
		TakenAt: time.Now().UTC(),
		Nodes:   nodes,
		Edges:   edges,
	}
}

// FromSnapshot rebuilds a graph from a snapshot, for viewers and tools that
// load a checkpoint back into memory.
func FromSnapshot(s Snapshot) (*Graph, error) {
	g := New()
	for _, n := range s.Nodes {
		g.AddNode(n.Title, n.Depth)
	}
	for _, e := range s.Edges {
		if _, err := g.AddEdge(e.A, e.B, e.Score); err != nil {
			return nil, err
		}
	}
	return g, nil
}
