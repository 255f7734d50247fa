package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/latebit/wikinet/internal/cache"
	"github.com/latebit/wikinet/internal/metrics"
)

type memo struct {
	body    string
	links   []string
	missing bool
}

// Cached memoises another Source for the lifetime of a run. Texts and link
// lists are kept in memory and, when a disk cache is configured, persisted
// across runs. Missing articles are remembered; transient errors are not.
type Cached struct {
	src       Source
	disk      *cache.Cache
	namespace string
	logger    *slog.Logger

	mu    sync.RWMutex
	text  map[string]memo
	links map[string]memo
	group singleflight.Group
}

// NewCached wraps src. disk may be nil. namespace separates entries of
// different sources inside the disk cache, typically the API host.
func NewCached(src Source, disk *cache.Cache, namespace string, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		src:       src,
		disk:      disk,
		namespace: namespace,
		logger:    logger,
		text:      make(map[string]memo),
		links:     make(map[string]memo),
	}
}

// Exists answers from memoised lookups when possible.
func (c *Cached) Exists(ctx context.Context, title string) (bool, error) {
	c.mu.RLock()
	m, ok := c.text[title]
	if !ok {
		m, ok = c.links[title]
	}
	c.mu.RUnlock()
	if ok {
		metrics.ArticleRequests.WithLabelValues("exists", "cached").Inc()
		return !m.missing, nil
	}
	return c.src.Exists(ctx, title)
}

// Text returns the article text, fetching it at most once.
func (c *Cached) Text(ctx context.Context, title string) (string, error) {
	m, err := c.load(ctx, cache.KindText, c.text, title, func() (memo, error) {
		body, err := c.src.Text(ctx, title)
		return memo{body: body}, err
	})
	if err != nil {
		return "", err
	}
	return m.body, nil
}

// Links returns the article's links, fetching them at most once.
func (c *Cached) Links(ctx context.Context, title string) ([]string, error) {
	m, err := c.load(ctx, cache.KindLinks, c.links, title, func() (memo, error) {
		l, err := c.src.Links(ctx, title)
		return memo{links: l}, err
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(m.links), nil
}

func (c *Cached) load(ctx context.Context, kind string, mem map[string]memo, title string, fetch func() (memo, error)) (memo, error) {
	if m, ok := c.lookup(kind, mem, title); ok {
		metrics.ArticleRequests.WithLabelValues(kind, "cached").Inc()
		return result(m, title)
	}

	for {
		v, err, shared := c.group.Do(kind+"\x00"+title, func() (any, error) {
			return c.fill(kind, mem, title, fetch)
		})
		if err == nil {
			return result(v.(memo), title)
		}
		// The caller that ran a shared fetch may have been cancelled while
		// this one is still live: fetch again under this caller's context.
		if shared && ctx.Err() == nil && isCancellation(err) {
			continue
		}
		return memo{}, err
	}
}

func (c *Cached) fill(kind string, mem map[string]memo, title string, fetch func() (memo, error)) (memo, error) {
	if m, ok := c.lookup(kind, mem, title); ok {
		return m, nil
	}

	m, err := fetch()
	if errors.Is(err, ErrNotFound) {
		m = memo{missing: true}
	} else if err != nil {
		return memo{}, err
	}

	c.mu.Lock()
	mem[title] = m
	c.mu.Unlock()
	c.persist(kind, title, m)
	return m, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func result(m memo, title string) (memo, error) {
	if m.missing {
		return memo{}, fmt.Errorf("%q: %w", title, ErrNotFound)
	}
	return m, nil
}

// lookup checks memory, then disk, promoting disk hits into memory.
func (c *Cached) lookup(kind string, mem map[string]memo, title string) (memo, bool) {
	c.mu.RLock()
	m, ok := mem[title]
	c.mu.RUnlock()
	if ok || c.disk == nil {
		return m, ok
	}

	entry, err := c.disk.Get(c.namespace, title, kind)
	if err != nil {
		c.logger.Debug("cache read failed", "title", title, "kind", kind, "err", err)
		return memo{}, false
	}
	if entry == nil {
		return memo{}, false
	}

	m = memo{missing: entry.Record.Missing}
	if !m.missing {
		if kind == cache.KindLinks {
			if entry.Record.Body != "" {
				m.links = strings.Split(entry.Record.Body, "\n")
			}
		} else {
			m.body = entry.Record.Body
		}
	}

	c.mu.Lock()
	mem[title] = m
	c.mu.Unlock()
	return m, true
}

func (c *Cached) persist(kind, title string, m memo) {
	if c.disk == nil {
		return
	}
	body := m.body
	if kind == cache.KindLinks {
		body = strings.Join(m.links, "\n")
	}
	rec := cache.Record{Title: title, Missing: m.missing, Body: body}
	if err := c.disk.Put(c.namespace, kind, rec); err != nil {
		c.logger.Warn("cache write failed", "title", title, "kind", kind, "err", err)
	}
}
