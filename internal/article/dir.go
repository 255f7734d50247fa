package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/latebit/wikinet/internal/links"
	"github.com/latebit/wikinet/internal/store"
)

// Dir reads articles from a directory of markdown files, one file per
// article. Links are markdown links to other article files or [[wiki]] links.
type Dir struct {
	store  *store.Store
	logger *slog.Logger
}

// NewDir creates a Source over the markdown files in root.
func NewDir(root string, logger *slog.Logger) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("article dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("article dir: %s is not a directory", root)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{store: store.New(root), logger: logger}, nil
}

// Host names the directory for cache namespacing.
func (d *Dir) Host() string {
	return "dir:" + d.store.Root()
}

// Titles lists every article in the directory.
func (d *Dir) Titles() ([]string, error) {
	return d.store.Titles()
}

func (d *Dir) read(title string) (string, error) {
	doc, err := d.store.Get(title)
	if errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("article does not exist", "title", title)
		return "", fmt.Errorf("read %q: %w", title, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %q: %w", title, err)
	}
	return string(doc.Content), nil
}

// Exists reports whether a file exists for the article.
func (d *Dir) Exists(_ context.Context, title string) (bool, error) {
	ok := d.store.Exists(title)
	observe("exists", nil)
	return ok, nil
}

// Text returns the readable text of the article's markdown.
func (d *Dir) Text(ctx context.Context, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := d.read(title)
	observe("text", err)
	if err != nil {
		return "", err
	}
	return links.PlainText(body), nil
}

// Links returns the distinct article titles linked from the article, in
// document order.
func (d *Dir) Links(ctx context.Context, title string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := d.read(title)
	observe("links", err)
	if err != nil {
		return nil, err
	}
	return links.Titles(body), nil
}
