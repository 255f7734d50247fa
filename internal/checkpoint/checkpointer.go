package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/latebit/wikinet/internal/graph"
	"github.com/latebit/wikinet/internal/metrics"
)

// Checkpointer encodes snapshots once and writes them to every destination.
// It satisfies graph.Checkpointer. A failing destination does not prevent
// writes to the others; failures are logged, counted, and joined into the
// returned error, which wraps graph.ErrPartialCheckpoint when at least one
// destination succeeded.
type Checkpointer struct {
	format       Format
	destinations []Destination
	logger       *slog.Logger

	// OnWritten, if set, is called after a snapshot reached at least one
	// destination.
	OnWritten func(snap graph.Snapshot)
}

// New creates a Checkpointer.
func New(format Format, logger *slog.Logger, destinations ...Destination) *Checkpointer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checkpointer{
		format:       format,
		destinations: destinations,
		logger:       logger,
	}
}

// Write implements graph.Checkpointer.
func (c *Checkpointer) Write(ctx context.Context, snap graph.Snapshot) error {
	data, err := Marshal(snap, c.format)
	if err != nil {
		c.logger.Error("checkpoint encode failed", "format", c.format, "err", err)
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	var errs []error
	written := 0
	for _, dest := range c.destinations {
		if err := dest.Write(ctx, data, c.format.ContentType()); err != nil {
			metrics.CheckpointWrites.WithLabelValues(dest.Name(), "error").Inc()
			c.logger.Error("checkpoint destination write failed", "destination", dest.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", dest.Name(), err))
			continue
		}
		metrics.CheckpointWrites.WithLabelValues(dest.Name(), "ok").Inc()
		written++
	}

	if written > 0 && c.OnWritten != nil {
		c.OnWritten(snap)
	}
	c.logger.Debug("checkpoint written", "destinations", written, "bytes", len(data))
	if len(errs) > 0 && written > 0 {
		return fmt.Errorf("%w: %w", graph.ErrPartialCheckpoint, errors.Join(errs...))
	}
	return errors.Join(errs...)
}
