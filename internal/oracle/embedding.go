package oracle

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Embedder converts text into a vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultMaxInputChars bounds the text sent to an embedder, in runes.
const DefaultMaxInputChars = 8000

// Embedding scores texts by the cosine similarity of their embeddings.
// Embeddings are memoised by text digest, so an article compared against
// many neighbours is embedded once.
type Embedding struct {
	embedder Embedder
	maxChars int

	mu    sync.RWMutex
	memo  map[[sha256.Size]byte][]float32
	group singleflight.Group
}

// NewEmbedding creates an embedding oracle. maxChars <= 0 selects
// DefaultMaxInputChars.
func NewEmbedding(e Embedder, maxChars int) *Embedding {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	return &Embedding{
		embedder: e,
		maxChars: maxChars,
		memo:     make(map[[sha256.Size]byte][]float32),
	}
}

// Similarity embeds both texts and returns their clamped cosine similarity.
func (o *Embedding) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := o.embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := o.embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return Cosine(va, vb)
}

func (o *Embedding) embed(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text, o.maxChars)
	key := sha256.Sum256([]byte(text))

	o.mu.RLock()
	v, ok := o.memo[key]
	o.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := o.group.Do(string(key[:]), func() (any, error) {
		vec, err := o.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("embed: %w", ErrEmptyVector)
		}
		o.mu.Lock()
		o.memo[key] = vec
		o.mu.Unlock()
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
