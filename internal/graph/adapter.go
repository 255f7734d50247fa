package graph

import "context"

// LinkFunc adapts a plain function into a LinkSource. This avoids a direct
// dependency on the article package.
type LinkFunc func(ctx context.Context, title string) ([]string, error)

// Links implements the LinkSource interface.
func (f LinkFunc) Links(ctx context.Context, title string) ([]string, error) {
	return f(ctx, title)
}

// ScoreFunc adapts a plain function into a Scorer.
type ScoreFunc func(ctx context.Context, a, b string) float64

// Score implements the Scorer interface.
func (f ScoreFunc) Score(ctx context.Context, a, b string) float64 {
	return f(ctx, a, b)
}

// CheckpointFunc adapts a plain function into a Checkpointer.
type CheckpointFunc func(ctx context.Context, s Snapshot) error

// Write implements the Checkpointer interface.
func (f CheckpointFunc) Write(ctx context.Context, s Snapshot) error {
	return f(ctx, s)
}
