package checkpoint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/latebit/wikinet/internal/graph"
)

func sampleSnapshot() graph.Snapshot {
	g := graph.New()
	g.AddNode("Network theory", 0)
	g.AddNode("Graph theory", 1)
	g.AddNode("Small-world network", 1)
	_, _ = g.AddEdge("Network theory", "Graph theory", 0.71)
	_, _ = g.AddEdge("Network theory", "Small-world network", 0.64)
	snap := g.Snapshot()
	snap.Seed = "Network theory"
	snap.RunID = "run-1"
	snap.TakenAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return snap
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"gexf", GEXF, false},
		{"JSON", JSON, false},
		{"graphml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = (%q, %v)", tt.in, got, err)
		}
	}
	if FormatFromPath("out/graph.JSON") != JSON || FormatFromPath("output.gexf") != GEXF {
		t.Error("FormatFromPath() chose the wrong format")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	data, err := Marshal(snap, JSON)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	got, err := Decode(strings.NewReader(string(data)), JSON)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Seed != snap.Seed || got.RunID != snap.RunID || !got.TakenAt.Equal(snap.TakenAt) {
		t.Errorf("metadata = %+v, want %+v", got, snap)
	}
	if len(got.Nodes) != 3 || len(got.Edges) != 2 {
		t.Fatalf("decoded %d nodes %d edges, want 3 and 2", len(got.Nodes), len(got.Edges))
	}
}

func TestGEXFEncoding(t *testing.T) {
	data, err := Marshal(sampleSnapshot(), GEXF)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`xmlns="http://www.gexf.net/1.2draft"`,
		`version="1.2"`,
		`defaultedgetype="undirected"`,
		`<node id="Network theory" label="Network theory">`,
		`<attvalue for="depth" value="1"></attvalue>`,
		`source="Graph theory" target="Network theory" weight="0.71"`,
		`lastmodifieddate="2026-03-01"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("GEXF output missing %q\n%s", want, out)
		}
	}
}

func TestGEXFRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	data, err := Marshal(snap, GEXF)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	got, err := Decode(strings.NewReader(string(data)), GEXF)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Seed != "Network theory" {
		t.Errorf("Seed = %q, want Network theory", got.Seed)
	}
	if len(got.Nodes) != len(snap.Nodes) || len(got.Edges) != len(snap.Edges) {
		t.Fatalf("decoded %d nodes %d edges, want %d and %d", len(got.Nodes), len(got.Edges), len(snap.Nodes), len(snap.Edges))
	}
	for i := range snap.Edges {
		if got.Edges[i] != snap.Edges[i] {
			t.Errorf("edge %d = %+v, want %+v", i, got.Edges[i], snap.Edges[i])
		}
	}
	for i := range snap.Nodes {
		if got.Nodes[i] != snap.Nodes[i] {
			t.Errorf("node %d = %+v, want %+v", i, got.Nodes[i], snap.Nodes[i])
		}
	}
	if _, err := graph.FromSnapshot(got); err != nil {
		t.Errorf("decoded snapshot is not a valid graph: %v", err)
	}
}

func TestDecodeGEXFWithoutAttributes(t *testing.T) {
	in := `<?xml version='1.0' encoding='utf-8'?>
<gexf xmlns="http://www.gexf.net/1.2draft" version="1.2">
  <graph defaultedgetype="undirected" mode="static" name="">
    <nodes>
      <node id="Network theory" label="Network theory" />
      <node id="Graph theory" label="Graph theory" />
    </nodes>
    <edges>
      <edge source="Network theory" target="Graph theory" id="0" />
    </edges>
  </graph>
</gexf>`
	snap, err := Decode(strings.NewReader(in), GEXF)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(snap.Nodes) != 2 || len(snap.Edges) != 1 {
		t.Fatalf("decoded %d nodes %d edges, want 2 and 1", len(snap.Nodes), len(snap.Edges))
	}
	if e := snap.Edges[0]; e.A != "Graph theory" || e.B != "Network theory" {
		t.Errorf("edge = %+v, want canonical order", e)
	}
}

func TestDecodeGEXFDanglingEdge(t *testing.T) {
	in := `<gexf xmlns="http://www.gexf.net/1.2draft" version="1.2"><graph><nodes><node id="a" label="A"/></nodes><edges><edge id="0" source="a" target="b"/></edges></graph></gexf>`
	if _, err := Decode(strings.NewReader(in), GEXF); err == nil {
		t.Error("Decode() should reject edges to unknown nodes")
	}
}

func TestFileDestinationAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "output.gexf")
	d := &FileDestination{Path: path}

	if err := d.Write(context.Background(), []byte("first"), "text/plain"); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := d.Write(context.Background(), []byte("second"), "text/plain"); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the output file", len(entries))
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	snap := sampleSnapshot()
	for _, name := range []string{"out.json", "out.gexf"} {
		path := filepath.Join(dir, name)
		c := New(FormatFromPath(path), quietLogger(), &FileDestination{Path: path})
		if err := c.Write(context.Background(), snap); err != nil {
			t.Fatalf("Write(%s) error: %v", name, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) error: %v", name, err)
		}
		if len(got.Nodes) != 3 || len(got.Edges) != 2 {
			t.Errorf("%s: %d nodes %d edges, want 3 and 2", name, len(got.Nodes), len(got.Edges))
		}
	}
}

type failingDestination struct{}

func (failingDestination) Name() string { return "broken" }

func (failingDestination) Write(context.Context, []byte, string) error {
	return errors.New("disk full")
}

type memDestination struct {
	mu          sync.Mutex
	data        []byte
	contentType string
}

func (m *memDestination) Name() string { return "memory" }

func (m *memDestination) Write(_ context.Context, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.contentType = contentType
	return nil
}

func TestCheckpointerContinuesPastFailures(t *testing.T) {
	good := &memDestination{}
	c := New(JSON, quietLogger(), failingDestination{}, good)

	var notified int
	c.OnWritten = func(graph.Snapshot) { notified++ }

	err := c.Write(context.Background(), sampleSnapshot())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Write() error = %v, want joined destination error", err)
	}
	if !errors.Is(err, graph.ErrPartialCheckpoint) {
		t.Errorf("Write() error = %v, want graph.ErrPartialCheckpoint", err)
	}
	if len(good.data) == 0 {
		t.Error("healthy destination was not written")
	}
	if good.contentType != "application/json" {
		t.Errorf("content type = %q, want application/json", good.contentType)
	}
	if notified != 1 {
		t.Errorf("OnWritten called %d times, want 1", notified)
	}
}

func TestCheckpointerAllFailedDoesNotNotify(t *testing.T) {
	c := New(GEXF, quietLogger(), failingDestination{})
	c.OnWritten = func(graph.Snapshot) { t.Error("OnWritten must not fire when nothing was written") }
	err := c.Write(context.Background(), sampleSnapshot())
	if err == nil {
		t.Fatal("Write() expected error")
	}
	if errors.Is(err, graph.ErrPartialCheckpoint) {
		t.Errorf("Write() error = %v, must not report a partial success", err)
	}
}

func TestS3Destination(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotBody  string
		gotCType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		gotCType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	home := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(home, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(home, "credentials"))

	ctx := context.Background()
	d, err := NewS3Destination(ctx, "graphs", "runs/output.gexf", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Destination() error: %v", err)
	}
	c := New(GEXF, quietLogger(), d)
	if err := c.Write(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/graphs/runs/output.gexf" {
		t.Errorf("path = %q, want /graphs/runs/output.gexf", gotPath)
	}
	if !strings.Contains(gotBody, "Network theory") {
		t.Errorf("uploaded body does not contain the graph: %q", gotBody)
	}
	if gotCType != "application/gexf+xml" {
		t.Errorf("content type = %q, want application/gexf+xml", gotCType)
	}
}
