// Package store provides read access to a directory of markdown articles.
//
// Each article is a single file named after its title:
//
//	root/
//	  Network theory.md
//	  Graph_theory.md     ← underscores stand for spaces
//	  .drafts/            ← dot-files are ignored
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const ext = ".md"

// Document holds an article's content and metadata.
type Document struct {
	Title    string
	Content  []byte
	Modified time.Time
}

// Store provides read access to an article directory.
type Store struct {
	root string
}

// New creates a store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the content directory path.
func (s *Store) Root() string {
	return s.root
}

// Get retrieves the article with the given title. Returns os.ErrNotExist if
// no file matches the title.
func (s *Store) Get(title string) (*Document, error) {
	filePath, err := s.find(title)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", title)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return &Document{
		Title:    title,
		Content:  data,
		Modified: info.ModTime().UTC().Truncate(time.Second),
	}, nil
}

// Exists reports whether an article file exists for title.
func (s *Store) Exists(title string) bool {
	_, err := s.find(title)
	return err == nil
}

// Titles returns the titles of all articles in the root directory, sorted,
// excluding dot-files.
func (s *Store) Titles() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var titles []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		titles = append(titles, strings.ReplaceAll(strings.TrimSuffix(name, ext), "_", " "))
	}
	sort.Strings(titles)
	return titles, nil
}

// find locates the file for a title, trying the literal title first and then
// the underscore form.
func (s *Store) find(title string) (string, error) {
	if title == "" || strings.ContainsAny(title, `/\`) || strings.HasPrefix(title, ".") {
		return "", os.ErrNotExist
	}

	candidates := []string{title + ext}
	if underscored := strings.ReplaceAll(title, " ", "_"); underscored != title {
		candidates = append(candidates, underscored+ext)
	}

	for _, name := range candidates {
		p, err := s.resolve(name)
		if err != nil {
			return "", err
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", os.ErrNotExist
}

// resolve validates and resolves a file name to an absolute filesystem path
// within the content directory. Returns os.ErrNotExist for invalid paths.
func (s *Store) resolve(name string) (string, error) {
	cleaned := filepath.Clean(name)
	cleaned = strings.TrimLeft(cleaned, "/")
	joined := filepath.Join(s.root, cleaned)

	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolve root symlinks: %w", err)
	}
	absRoot = resolved

	absPath, err := filepath.EvalSymlinks(joined)
	if err != nil {
		absPath, err = filepath.Abs(joined)
		if err != nil {
			return "", err
		}
	}

	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", os.ErrNotExist
	}
	return absPath, nil
}
