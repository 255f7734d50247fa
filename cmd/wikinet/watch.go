package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/latebit/wikinet/internal/events"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print progress events published by running explorations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Events.NATSURL == "" {
			return errors.New("no NATS server configured (use --nats-url or WIKINET_NATS_URL)")
		}
		sub, err := events.NewNATSSubscriber(cfg.Events.NATSURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, err := sub.Subscribe(cmd.Context(), events.TopicAll)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for msg := range ch {
			line, err := formatEvent(msg)
			if err != nil {
				logger.Warn("undecodable event", "topic", msg.Topic, "err", err)
				continue
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

// formatEvent renders one event as a single line. Topics this version does
// not know are printed raw.
func formatEvent(msg events.Message) (string, error) {
	ev, err := msg.Decode()
	if errors.Is(err, events.ErrUnknownTopic) {
		return fmt.Sprintf("%s %s", msg.Topic, msg.Data), nil
	}
	if err != nil {
		return "", err
	}
	switch e := ev.(type) {
	case events.EdgeAdmitted:
		return fmt.Sprintf("[%s] edge %s -- %s score=%.3f depth=%d", short(e.RunID), e.A, e.B, e.Score, e.Depth), nil
	case events.CheckpointWritten:
		return fmt.Sprintf("[%s] checkpoint nodes=%d edges=%d", short(e.RunID), e.Nodes, e.Edges), nil
	case events.RunCompleted:
		status := "completed"
		if e.Cancelled {
			status = "cancelled"
		}
		return fmt.Sprintf("[%s] run %s seed=%q nodes=%d edges=%d in %s",
			short(e.RunID), status, e.Seed, e.Nodes, e.Edges, e.Duration.Round(time.Millisecond)), nil
	}
	return "", fmt.Errorf("unhandled event %T", ev)
}

// short trims a run ID to its first UUID group.
func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
