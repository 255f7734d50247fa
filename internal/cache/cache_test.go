package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPutAndGet(t *testing.T) {
	c := New(t.TempDir())

	rec := Record{Title: "Network theory", Body: "Network theory is the study of graphs."}
	if err := c.Put("en.wikipedia.org", KindText, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	entry, err := c.Get("en.wikipedia.org", "Network theory", KindText)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected cached entry, got nil")
	}
	if entry.Record.Body != rec.Body {
		t.Errorf("body: got %q, want %q", entry.Record.Body, rec.Body)
	}
	if entry.Record.Missing {
		t.Error("missing: got true, want false")
	}
	if entry.CachedAt.IsZero() {
		t.Error("cached_at should not be zero")
	}
}

func TestCacheMiss(t *testing.T) {
	c := New(t.TempDir())

	entry, err := c.Get("en.wikipedia.org", "Nonexistent", KindText)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry != nil {
		t.Error("expected nil for cache miss")
	}
}

func TestTextAndLinksSeparate(t *testing.T) {
	c := New(t.TempDir())

	if err := c.Put("ns", KindText, Record{Title: "A", Body: "text of A"}); err != nil {
		t.Fatalf("put text: %v", err)
	}
	if err := c.Put("ns", KindLinks, Record{Title: "A", Body: "B\nC"}); err != nil {
		t.Fatalf("put links: %v", err)
	}

	text, err := c.Get("ns", "A", KindText)
	if err != nil || text == nil {
		t.Fatalf("get text: %v, %v", text, err)
	}
	links, err := c.Get("ns", "A", KindLinks)
	if err != nil || links == nil {
		t.Fatalf("get links: %v, %v", links, err)
	}
	if text.Record.Body != "text of A" {
		t.Errorf("text body: got %q", text.Record.Body)
	}
	if links.Record.Body != "B\nC" {
		t.Errorf("links body: got %q", links.Record.Body)
	}
}

func TestMissingRecord(t *testing.T) {
	c := New(t.TempDir())

	if err := c.Put("ns", KindText, Record{Title: "Ghost", Missing: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	entry, err := c.Get("ns", "Ghost", KindText)
	if err != nil || entry == nil {
		t.Fatalf("get: %v, %v", entry, err)
	}
	if !entry.Record.Missing {
		t.Error("missing: got false, want true")
	}
}

func TestMaxAgeExpires(t *testing.T) {
	c := New(t.TempDir())
	c.MaxAge = time.Nanosecond

	if err := c.Put("ns", KindText, Record{Title: "A", Body: "x"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(time.Millisecond)

	entry, err := c.Get("ns", "A", KindText)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry != nil {
		t.Error("expected expired entry to be treated as a miss")
	}
}

func TestTitlesStayInsideCacheDir(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	titles := []string{"..", "../../etc/passwd", "AC/DC", ".hidden", "Dr. No"}
	for _, title := range titles {
		if err := c.Put("ns", KindText, Record{Title: title, Body: title}); err != nil {
			t.Fatalf("put %q: %v", title, err)
		}
		p := c.filePath("ns", title, KindText)
		rel, err := filepath.Rel(filepath.Join(dir, "ns", KindText), p)
		if err != nil || strings.Contains(rel, string(filepath.Separator)) || strings.HasPrefix(rel, "..") {
			t.Errorf("title %q escaped cache dir: %s", title, p)
		}

		entry, err := c.Get("ns", title, KindText)
		if err != nil || entry == nil {
			t.Fatalf("get %q: %v, %v", title, entry, err)
		}
		if entry.Record.Body != title {
			t.Errorf("body for %q: got %q", title, entry.Record.Body)
		}
	}
}

func TestCorruptMetaIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	if err := c.Put("ns", KindText, Record{Title: "A", Body: "x"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	metaPath := c.filePath("ns", "A", KindText) + ".meta"
	if err := os.WriteFile(metaPath, []byte("not = [valid"), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}

	entry, err := c.Get("ns", "A", KindText)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry != nil {
		t.Error("expected nil for corrupt metadata")
	}
}

func TestDefaultDirHonorsEnv(t *testing.T) {
	t.Setenv("WIKINET_CACHE_DIR", "/tmp/wikinet-test-cache")
	if got := DefaultDir(); got != "/tmp/wikinet-test-cache" {
		t.Errorf("DefaultDir() = %q, want env value", got)
	}
}
