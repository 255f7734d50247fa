// Package checkpoint serialises graph snapshots and writes them to one or
// more destinations.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/latebit/wikinet/internal/graph"
)

// Format is a snapshot interchange format.
type Format string

const (
	// GEXF is the Gephi exchange format.
	GEXF Format = "gexf"
	// JSON is the snapshot as an indented JSON document.
	JSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case GEXF:
		return GEXF, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("unknown checkpoint format %q (want gexf or json)", s)
}

// FormatFromPath infers the format from a file extension, defaulting to GEXF.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return GEXF
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == JSON {
		return "application/json"
	}
	return "application/gexf+xml"
}

// Encode writes snap to w in the given format.
func Encode(w io.Writer, snap graph.Snapshot, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case GEXF:
		return encodeGEXF(w, snap)
	}
	return fmt.Errorf("unknown checkpoint format %q", f)
}

// Marshal returns snap encoded in the given format.
func Marshal(snap graph.Snapshot, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a snapshot in the given format.
func Decode(r io.Reader, f Format) (graph.Snapshot, error) {
	switch f {
	case JSON:
		var snap graph.Snapshot
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return graph.Snapshot{}, fmt.Errorf("decode json snapshot: %w", err)
		}
		return snap, nil
	case GEXF:
		return decodeGEXF(r)
	}
	return graph.Snapshot{}, fmt.Errorf("unknown checkpoint format %q", f)
}

// ReadFile loads a snapshot from disk, choosing the format by extension.
func ReadFile(path string) (graph.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return graph.Snapshot{}, err
	}
	defer f.Close()
	return Decode(f, FormatFromPath(path))
}
