// Package oracle scores the semantic similarity of two article texts.
package oracle

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/blas/gonum"
)

// Oracle returns a similarity score in [0, 1] for two texts. Implementations
// must be deterministic for a given pair of inputs.
type Oracle interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, a, b string) (float64, error)

// Similarity calls f.
func (f Func) Similarity(ctx context.Context, a, b string) (float64, error) {
	return f(ctx, a, b)
}

var (
	// ErrDimensionMismatch is returned when two vectors differ in length.
	ErrDimensionMismatch = errors.New("vectors must have the same length")
	// ErrEmptyVector is returned for zero-length vectors.
	ErrEmptyVector = errors.New("empty vector")
)

var engine gonum.Implementation

// Cosine returns the cosine similarity of a and b clamped to [0, 1].
// Anti-correlated vectors score 0, as do zero vectors.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	if len(a) == 0 {
		return 0, ErrEmptyVector
	}
	na := engine.Snrm2(len(a), a, 1)
	nb := engine.Snrm2(len(b), b, 1)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	dot := engine.Sdot(len(a), a, 1, b, 1)
	sim := float64(dot) / (float64(na) * float64(nb))
	if math.IsNaN(sim) {
		return 0, nil
	}
	return math.Max(0, math.Min(1, sim)), nil
}
