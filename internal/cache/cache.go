// Package cache provides local file-based caching for article source responses.
package cache

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Kinds of cached records. The text and the link list of an article are
// fetched separately and cached separately.
const (
	KindText  = "text"
	KindLinks = "links"
)

// Cache stores article source responses on the local filesystem.
type Cache struct {
	Dir    string
	MaxAge time.Duration // entries older than this are treated as missing; 0 keeps forever
}

// Record is a single cached response. Missing records remember that the
// article does not exist.
type Record struct {
	Title   string
	Missing bool
	Body    string
}

// Entry is a cached record with metadata about when it was stored.
type Entry struct {
	Record   Record
	CachedAt time.Time
}

// meta is the TOML-serializable cache metadata.
type meta struct {
	Title    string    `toml:"title"`
	Kind     string    `toml:"kind"`
	Missing  bool      `toml:"missing"`
	CachedAt time.Time `toml:"cached_at"`
}

// New creates a cache rooted at the given directory.
func New(dir string) *Cache {
	return &Cache{Dir: dir}
}

// DefaultDir returns the default cache directory, honoring WIKINET_CACHE_DIR.
func DefaultDir() string {
	if dir := os.Getenv("WIKINET_CACHE_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "wikinet")
	}
	return filepath.Join(base, "wikinet")
}

// Put writes a record to the cache under the given namespace (typically the
// source host) and kind.
func (c *Cache) Put(namespace, kind string, rec Record) error {
	filePath := c.filePath(namespace, rec.Title, kind)
	metaPath := filePath + ".meta"

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(filePath, []byte(rec.Body), 0o644); err != nil {
		return err
	}

	m := meta{
		Title:    rec.Title,
		Kind:     kind,
		Missing:  rec.Missing,
		CachedAt: time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return err
	}
	return os.WriteFile(metaPath, buf.Bytes(), 0o644)
}

// Get reads a cached record. Returns nil if not cached or expired.
func (c *Cache) Get(namespace, title, kind string) (*Entry, error) {
	filePath := c.filePath(namespace, title, kind)
	metaPath := filePath + ".meta"

	body, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m meta
	if _, err := toml.DecodeFile(metaPath, &m); err != nil {
		return nil, nil
	}
	if m.Title != title || m.Kind != kind {
		return nil, nil
	}
	if c.MaxAge > 0 && time.Since(m.CachedAt) > c.MaxAge {
		return nil, nil
	}

	return &Entry{
		Record: Record{
			Title:   m.Title,
			Missing: m.Missing,
			Body:    string(body),
		},
		CachedAt: m.CachedAt,
	}, nil
}

// filePath returns the cache file path for a namespace, title, and kind.
func (c *Cache) filePath(namespace, title, kind string) string {
	safeNS := strings.ReplaceAll(namespace, "..", "_")
	safeNS = strings.ReplaceAll(safeNS, string(filepath.Separator), "_")
	if safeNS == "" {
		safeNS = "_"
	}

	name := url.PathEscape(title)
	if strings.HasPrefix(name, ".") || name == "" {
		// Keep "." and ".." style titles inside the namespace directory.
		name = "%2E" + strings.TrimPrefix(name, ".")
	}

	return filepath.Join(c.Dir, safeNS, kind, name)
}
