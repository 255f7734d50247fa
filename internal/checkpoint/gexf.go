package checkpoint

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/latebit/wikinet/internal/graph"
)

const (
	gexfVersion = "1.2"
	depthAttrID = "depth"
)

type gexfDoc struct {
	XMLName xml.Name  `xml:"http://www.gexf.net/1.2draft gexf"`
	Version string    `xml:"version,attr"`
	Meta    gexfMeta  `xml:"meta"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfMeta struct {
	LastModified string `xml:"lastmodifieddate,attr,omitempty"`
	Creator      string `xml:"creator"`
	Description  string `xml:"description,omitempty"`
}

type gexfGraph struct {
	DefaultEdgeType string           `xml:"defaultedgetype,attr"`
	Mode            string           `xml:"mode,attr"`
	Attributes      []gexfAttributes `xml:"attributes"`
	Nodes           []gexfNode       `xml:"nodes>node"`
	Edges           []gexfEdge       `xml:"edges>edge"`
}

type gexfAttributes struct {
	Class      string          `xml:"class,attr"`
	Attributes []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNode struct {
	ID        string         `xml:"id,attr"`
	Label     string         `xml:"label,attr"`
	AttValues []gexfAttValue `xml:"attvalues>attvalue"`
}

type gexfAttValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type gexfEdge struct {
	ID     string  `xml:"id,attr"`
	Source string  `xml:"source,attr"`
	Target string  `xml:"target,attr"`
	Weight float64 `xml:"weight,attr"`
}

func encodeGEXF(w io.Writer, snap graph.Snapshot) error {
	doc := gexfDoc{
		Version: gexfVersion,
		Meta: gexfMeta{
			Creator: "wikinet",
		},
		Graph: gexfGraph{
			DefaultEdgeType: "undirected",
			Mode:            "static",
			Attributes: []gexfAttributes{{
				Class:      "node",
				Attributes: []gexfAttribute{{ID: depthAttrID, Title: "depth", Type: "integer"}},
			}},
		},
	}
	if !snap.TakenAt.IsZero() {
		doc.Meta.LastModified = snap.TakenAt.UTC().Format(time.DateOnly)
	}
	if snap.Seed != "" {
		doc.Meta.Description = fmt.Sprintf("similarity network from seed %q", snap.Seed)
	}

	for _, n := range snap.Nodes {
		doc.Graph.Nodes = append(doc.Graph.Nodes, gexfNode{
			ID:        n.Title,
			Label:     n.Title,
			AttValues: []gexfAttValue{{For: depthAttrID, Value: strconv.Itoa(n.Depth)}},
		})
	}
	for i, e := range snap.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, gexfEdge{
			ID:     strconv.Itoa(i),
			Source: e.A,
			Target: e.B,
			Weight: e.Score,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode gexf: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func decodeGEXF(r io.Reader) (graph.Snapshot, error) {
	var doc gexfDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return graph.Snapshot{}, fmt.Errorf("decode gexf: %w", err)
	}

	var snap graph.Snapshot
	if doc.Meta.LastModified != "" {
		if t, err := time.Parse(time.DateOnly, doc.Meta.LastModified); err == nil {
			snap.TakenAt = t
		}
	}

	for _, n := range doc.Graph.Nodes {
		node := graph.Node{Title: n.Label}
		if node.Title == "" {
			node.Title = n.ID
		}
		for _, av := range n.AttValues {
			if av.For == depthAttrID {
				node.Depth, _ = strconv.Atoi(av.Value)
			}
		}
		if node.Depth == 0 && snap.Seed == "" {
			snap.Seed = node.Title
		}
		snap.Nodes = append(snap.Nodes, node)
	}

	// Edge endpoints reference node ids; map them back to titles.
	titles := make(map[string]string, len(doc.Graph.Nodes))
	for i, n := range doc.Graph.Nodes {
		titles[n.ID] = snap.Nodes[i].Title
	}
	for _, e := range doc.Graph.Edges {
		a, b := titles[e.Source], titles[e.Target]
		if a == "" || b == "" {
			return graph.Snapshot{}, fmt.Errorf("decode gexf: edge %s references unknown node", e.ID)
		}
		if b < a {
			a, b = b, a
		}
		snap.Edges = append(snap.Edges, graph.Edge{A: a, B: b, Score: e.Weight})
	}
	return snap, nil
}
