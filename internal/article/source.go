// Package article provides access to encyclopedia articles: their existence,
// plain text, and outgoing article links.
package article

import (
	"context"
	"errors"

	"github.com/latebit/wikinet/internal/metrics"
)

// ErrNotFound is returned when an article does not exist in the source.
var ErrNotFound = errors.New("article not found")

// Source is a read-only view of an encyclopedia.
type Source interface {
	Exists(ctx context.Context, title string) (bool, error)
	Text(ctx context.Context, title string) (string, error)
	Links(ctx context.Context, title string) ([]string, error)
}

// observe records the outcome of a source request.
func observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	metrics.ArticleRequests.WithLabelValues(op, result).Inc()
}
