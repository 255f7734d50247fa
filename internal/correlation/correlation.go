// Package correlation memoises pairwise article similarity for a run.
//
// Scores are keyed by the unordered pair of titles. On a miss the cache
// fetches both texts and asks the oracle; a failed oracle call is retried
// once, and pairs whose content or score cannot be obtained are recorded as
// unavailable with score 0 so they are never retried within the run.
package correlation

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/latebit/wikinet/internal/metrics"
	"github.com/latebit/wikinet/internal/oracle"
)

// Pair is an unordered pair of titles in canonical order (A <= B).
type Pair struct {
	A, B string
}

// NewPair returns the canonical pair for a and b.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Entry is a cached correlation result. Unavailable entries score 0.
type Entry struct {
	Score     float64
	Available bool
}

// TextSource supplies article texts.
type TextSource interface {
	Text(ctx context.Context, title string) (string, error)
}

// Stats summarises cache activity.
type Stats struct {
	Hits        int64
	Misses      int64
	Unavailable int64
	OracleCalls int64
}

// Options configures a Cache.
type Options struct {
	Store  Store // defaults to a MemoryStore
	Logger *slog.Logger
}

// Cache computes and remembers pairwise similarity scores.
type Cache struct {
	texts  TextSource
	oracle oracle.Oracle
	store  Store
	logger *slog.Logger
	group  singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	unavailable atomic.Int64
	oracleCalls atomic.Int64
}

// New creates a cache that reads texts from texts and scores them with o.
func New(texts TextSource, o oracle.Oracle, opts Options) *Cache {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Cache{
		texts:  texts,
		oracle: o,
		store:  opts.Store,
		logger: opts.Logger,
	}
}

// Score returns the similarity of a and b in [0, 1]. The order of the
// arguments does not matter. The oracle runs at most once per pair, also
// under concurrent callers. If ctx is cancelled before a score is known,
// Score returns 0 without recording anything; other callers waiting on the
// same pair are not affected.
func (c *Cache) Score(ctx context.Context, a, b string) float64 {
	p := NewPair(a, b)

	if e, ok := c.lookup(p); ok {
		c.hits.Add(1)
		metrics.CorrelationLookups.WithLabelValues("hit").Inc()
		return e.Score
	}

	for {
		v, err, shared := c.group.Do(p.A+"\x00"+p.B, func() (any, error) {
			return c.fill(ctx, p)
		})
		if err == nil {
			return v.(Entry).Score
		}
		// A shared flight fails only when the caller that ran it was
		// cancelled; callers that are still live compute again.
		if !shared || ctx.Err() != nil {
			return 0
		}
	}
}

// fill computes and records the entry for p unless another flight already did.
func (c *Cache) fill(ctx context.Context, p Pair) (Entry, error) {
	if e, ok := c.lookup(p); ok {
		return e, nil
	}

	e, err := c.compute(ctx, p)
	if err != nil {
		return Entry{}, err
	}
	c.misses.Add(1)
	metrics.CorrelationLookups.WithLabelValues("miss").Inc()
	if !e.Available {
		c.unavailable.Add(1)
	}
	if err := c.store.Put(p, e); err != nil {
		c.logger.Warn("correlation store write failed", "a", p.A, "b", p.B, "err", err)
	}
	return e, nil
}

// Lookup returns the cached entry for a and b without computing it.
func (c *Cache) Lookup(a, b string) (Entry, bool) {
	return c.lookup(NewPair(a, b))
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Unavailable: c.unavailable.Load(),
		OracleCalls: c.oracleCalls.Load(),
	}
}

func (c *Cache) lookup(p Pair) (Entry, bool) {
	e, ok, err := c.store.Get(p)
	if err != nil {
		c.logger.Debug("correlation store read failed", "a", p.A, "b", p.B, "err", err)
		return Entry{}, false
	}
	return e, ok
}

// compute fetches both texts and scores them. It returns an error only when
// ctx was cancelled; every other failure yields an unavailable entry.
func (c *Cache) compute(ctx context.Context, p Pair) (Entry, error) {
	ta, ok, err := c.text(ctx, p.A)
	if err != nil || !ok {
		return Entry{}, err
	}
	tb, ok, err := c.text(ctx, p.B)
	if err != nil || !ok {
		return Entry{}, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		s, err := c.similarity(ctx, ta, tb)
		if err == nil {
			return Entry{Score: clamp(s), Available: true}, nil
		}
		if ctx.Err() != nil {
			return Entry{}, ctx.Err()
		}
		c.logger.Warn("similarity failed", "a", p.A, "b", p.B, "attempt", attempt+1, "err", err)
	}
	return Entry{}, nil
}

// text returns the text of title. ok is false when the article has no usable
// content; err is set only on cancellation.
func (c *Cache) text(ctx context.Context, title string) (string, bool, error) {
	t, err := c.texts.Text(ctx, title)
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	if err != nil {
		c.logger.Warn("content unavailable, skipping", "title", title, "err", err)
		return "", false, nil
	}
	if strings.TrimSpace(t) == "" {
		c.logger.Warn("content unavailable, skipping", "title", title, "err", "empty text")
		return "", false, nil
	}
	return t, true, nil
}

func (c *Cache) similarity(ctx context.Context, a, b string) (s float64, err error) {
	c.oracleCalls.Add(1)
	start := time.Now()
	defer func() {
		metrics.OracleDuration.Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.OracleCalls.WithLabelValues(result).Inc()
	}()
	return c.oracle.Similarity(ctx, a, b)
}

func clamp(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
